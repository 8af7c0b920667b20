package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sirupsen/logrus"
)

// WebSource is a RemoteSource that fetches a YAML record document from a
// remote HTTP endpoint.
type WebSource struct {
	Name   string       // Name of the source
	URL    *url.URL     // URL of the remote HTTP endpoint
	APIKey string       // Optional API key for X-API-Key header authentication
	Client *http.Client // HTTP client; http.DefaultClient when nil
}

// GetName returns the name of the source.
func (w *WebSource) GetName() string {
	return w.Name
}

// GetData performs a GET on the URL and decodes the body. Any non-2xx
// response is a fetch failure.
func (w *WebSource) GetData(ctx context.Context) ([]model.Record, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL.String(), nil)
	if err != nil {
		logrus.Debug("error creating request")
		return nil, model.NewFetchError(w.Name, err)
	}

	// Optional API key header
	if w.APIKey != "" {
		request.Header.Set("X-API-Key", w.APIKey)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(request)
	if err != nil {
		logrus.Debug("error doing request")
		return nil, model.NewFetchError(w.Name, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.WithError(err).Debug("error closing response body")
		}
	}(resp.Body)

	// Anything but 2xx is a failed fetch, whatever the body says
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, model.NewFetchError(w.Name, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.Debug("error reading body")
		return nil, model.NewFetchError(w.Name, err)
	}

	records, err := model.Decode(data)
	if err != nil {
		logrus.Debug("error unmarshalling body")
		return nil, model.NewFetchError(w.Name, err)
	}
	return records, nil
}
