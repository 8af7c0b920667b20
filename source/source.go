package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sardine-ai/go-remote-records/model"
)

// RemoteSource produces the current batch of records from a remote origin.
// Every failure is returned as a *model.FetchError. Sources keep no cache of
// their own; caching is the job of the local store.
type RemoteSource interface {
	GetName() string
	GetData(ctx context.Context) ([]model.Record, error)
}

// NewFromURL builds a RemoteSource from a location string:
//
//	static:                          fixed two record batch
//	file:///path/records.yaml        YAML file on disk
//	http(s)://host/records.yaml      YAML document over HTTP
//	s3://bucket/key                  object in an S3 bucket
//	gs://bucket/key                  object in a GCS bucket
//	git+https://host/repo.git#path   file in a git repository (?branch=main)
func NewFromURL(name, raw string) (RemoteSource, error) {
	if raw == "static:" || raw == "static" {
		return NewStaticSource(name), nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse source url %q: %w", raw, err)
	}

	switch parsed.Scheme {
	case "file":
		path := parsed.Path
		if parsed.Host != "" {
			path = parsed.Host + path
		}
		return &FileSource{Name: name, Path: path}, nil
	case "http", "https":
		return &WebSource{Name: name, URL: parsed}, nil
	case "s3":
		return &AwsS3Source{Name: name, BucketName: parsed.Host, ObjectName: strings.TrimPrefix(parsed.Path, "/")}, nil
	case "gs":
		return &GcpStorageSource{Name: name, BucketName: parsed.Host, ObjectName: strings.TrimPrefix(parsed.Path, "/")}, nil
	case "git+https", "git+http", "git+file":
		if parsed.Fragment == "" {
			return nil, fmt.Errorf("git source %q needs the file path as #fragment", raw)
		}
		repoURL := *parsed
		repoURL.Scheme = strings.TrimPrefix(parsed.Scheme, "git+")
		repoURL.Fragment = ""
		query := repoURL.Query()
		branch := query.Get("branch")
		query.Del("branch")
		repoURL.RawQuery = query.Encode()
		return &GitSource{Name: name, URL: &repoURL, Path: parsed.Fragment, Branch: branch}, nil
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", parsed.Scheme)
	}
}
