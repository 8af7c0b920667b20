// Package wire assembles sources, stores, repositories, controllers and the
// HTTP server from a Config. It is the only place that knows the concrete
// types.
package wire

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sardine-ai/go-remote-records/config"
	"github.com/sardine-ai/go-remote-records/controller"
	"github.com/sardine-ai/go-remote-records/repository"
	"github.com/sardine-ai/go-remote-records/server"
	"github.com/sardine-ai/go-remote-records/source"
	"github.com/sardine-ai/go-remote-records/store"
	"github.com/sirupsen/logrus"
)

// App is the assembled graph.
type App struct {
	Controllers map[string]*controller.Controller
	Server      *server.Server

	closers []io.Closer
}

// Build creates one source, store, repository and controller per configured
// source, and a server over all of them. Every controller starts its initial
// fetch before Build returns.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Controllers: make(map[string]*controller.Controller, len(cfg.Sources))}
	repos := make(map[string]repository.Repository, len(cfg.Sources))

	for _, sc := range cfg.Sources {
		remote, err := NewSource(sc)
		if err != nil {
			app.Close()
			return nil, err
		}
		if closer, ok := remote.(io.Closer); ok {
			app.closers = append(app.closers, closer)
		}

		local, err := NewStore(cfg.Store, sc.Name)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("store for %s: %w", sc.Name, err)
		}
		if closer, ok := local.(io.Closer); ok {
			app.closers = append(app.closers, closer)
		}

		repos[sc.Name] = repository.New(remote, local, repository.WithTimeout(cfg.FetchTimeout))
	}

	publishers := make(map[string]server.Publisher, len(repos))
	for name, repo := range repos {
		c := controller.New(ctx, repo,
			controller.WithRefreshInterval(cfg.RefreshInterval),
			controller.WithLogger(logrus.WithField("source", name)),
		)
		app.Controllers[name] = c
		publishers[name] = c
	}

	app.Server = server.NewServer(publishers)
	app.Server.AuthKey = cfg.AuthKey
	return app, nil
}

// NewSource builds the RemoteSource for one source entry.
func NewSource(sc config.SourceConfig) (source.RemoteSource, error) {
	remote, err := source.NewFromURL(sc.Name, sc.URL)
	if err != nil {
		return nil, err
	}
	switch s := remote.(type) {
	case *source.WebSource:
		s.APIKey = sc.APIKey
	case *source.AwsS3Source:
		s.Region = sc.Region
		s.Endpoint = sc.Endpoint
		s.AccessKey = sc.AccessKey
		s.SecretKey = sc.SecretKey
	}
	return remote, nil
}

// NewStore builds the LocalStore of the configured kind for one source.
func NewStore(sc config.StoreConfig, name string) (store.LocalStore, error) {
	switch sc.Kind {
	case config.StoreMemory, "":
		return store.NewMemoryStore(), nil
	case config.StoreLRU:
		return store.NewLRUStore(sc.LRUSize)
	case config.StoreFile:
		return store.NewFileStore(filepath.Join(sc.Dir, name+".yaml"))
	case config.StorePostgres:
		return store.NewPostgresStore(sc.DSN, "records_"+name)
	default:
		return nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}
}

// Close stops every controller, then releases stores and sources.
func (a *App) Close() {
	for _, c := range a.Controllers {
		c.Close()
	}
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Error("error closing resource")
		}
	}
	a.closers = nil
}
