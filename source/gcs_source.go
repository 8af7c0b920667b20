package source

import (
	"context"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/sardine-ai/go-remote-records/model"
)

// GcpStorageSource is a RemoteSource that reads a YAML record document
// stored as an object in a GCS bucket.
type GcpStorageSource struct {
	Name       string          // Name of the source
	BucketName string          // Name of the GCS bucket
	ObjectName string          // Name of the YAML document within the bucket
	Client     *storage.Client // GCS client instance; created on first use when nil

	clientOnce    sync.Once
	clientInitErr error
	ownsClient    bool
}

// GetName returns the name of the source.
func (g *GcpStorageSource) GetName() string {
	return g.Name
}

// GetData reads the object and decodes its records.
func (g *GcpStorageSource) GetData(ctx context.Context) ([]model.Record, error) {
	g.clientOnce.Do(func() {
		if g.Client == nil {
			g.Client, g.clientInitErr = storage.NewClient(ctx)
			g.ownsClient = g.clientInitErr == nil
		}
	})
	if g.clientInitErr != nil {
		return nil, model.NewFetchError(g.Name, g.clientInitErr)
	}

	reader, err := g.Client.Bucket(g.BucketName).Object(g.ObjectName).NewReader(ctx)
	if err != nil {
		return nil, model.NewFetchError(g.Name, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, model.NewFetchError(g.Name, err)
	}

	records, err := model.Decode(content)
	if err != nil {
		return nil, model.NewFetchError(g.Name, err)
	}
	return records, nil
}

// Close releases the client if this source created it.
func (g *GcpStorageSource) Close() error {
	if !g.ownsClient {
		return nil
	}
	return g.Client.Close()
}
