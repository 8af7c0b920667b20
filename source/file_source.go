package source

import (
	"context"
	"os"

	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sirupsen/logrus"
)

// FileSource is a RemoteSource that reads a YAML record document from disk.
type FileSource struct {
	Name string // Name of the source
	Path string // File path of the YAML record document
}

// GetName returns the name of the source.
func (f *FileSource) GetName() string {
	return f.Name
}

// GetData reads the YAML file and decodes its records.
func (f *FileSource) GetData(ctx context.Context) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError(f.Name, err)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		logrus.WithField("path", f.Path).Debug("error reading file")
		return nil, model.NewFetchError(f.Name, err)
	}

	records, err := model.Decode(data)
	if err != nil {
		logrus.WithField("path", f.Path).Debug("error unmarshalling file")
		return nil, model.NewFetchError(f.Name, err)
	}
	return records, nil
}
