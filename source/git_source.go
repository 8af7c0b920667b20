package source

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sirupsen/logrus"
)

// GitSource is a RemoteSource that reads a YAML record document from a file
// inside a git repository. The repository is cloned into memory on the first
// call and pulled on every later call.
// Prefer publishing the document to a bucket from CI: hosted git providers
// rate limit clone and pull traffic.
type GitSource struct {
	Name   string          // Name of the source
	URL    *url.URL        // Git repository URL
	Path   string          // Path to the YAML document within the repository
	Branch string          // Branch to check out; the remote HEAD when empty
	Auth   *http.BasicAuth // Optional basic auth for clone and pull

	mu            sync.Mutex
	gitRepository *git.Repository
	fs            billy.Filesystem
}

// GetName returns the name of the source.
func (g *GitSource) GetName() string {
	return g.Name
}

// GetData clones or pulls the repository and decodes the document.
func (g *GitSource) GetData(ctx context.Context) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.sync(ctx); err != nil {
		return nil, model.NewFetchError(g.Name, err)
	}

	// Read the document from the in-memory worktree
	file, err := g.fs.Open(g.Path)
	if err != nil {
		return nil, model.NewFetchError(g.Name, err)
	}
	defer func(file billy.File) {
		err := file.Close()
		if err != nil {
			logrus.WithError(err).Error("error closing file")
		}
	}(file)

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, model.NewFetchError(g.Name, err)
	}

	records, err := model.Decode(content)
	if err != nil {
		logrus.Debug("error unmarshalling file")
		return nil, model.NewFetchError(g.Name, err)
	}
	return records, nil
}

func (g *GitSource) sync(ctx context.Context) error {
	// First call: clone into memory
	if g.gitRepository == nil {
		fs := memfs.New()
		logrus.Debugf("Cloning %s into memory", g.URL.String())

		cloneOptions := &git.CloneOptions{
			URL:  g.URL.String(),
			Auth: g.auth(),
		}
		// Only fetch the configured branch
		if g.Branch != "" {
			cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
			cloneOptions.SingleBranch = true
		}

		r, err := git.CloneContext(ctx, memory.NewStorage(), fs, cloneOptions)
		if err != nil {
			return err
		}
		logrus.Debug("Cloned")
		g.gitRepository = r
		g.fs = fs
		return nil
	}

	// Later calls: pull into the existing worktree
	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	logrus.Debug("Pulling")

	pullOptions := &git.PullOptions{
		Auth:  g.auth(),
		Force: true, // discard anything that diverged from the remote
	}
	if g.Branch != "" {
		pullOptions.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
		pullOptions.SingleBranch = true
	}

	err = w.PullContext(ctx, pullOptions)
	// Nothing new is not an error
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		logrus.Debug("Already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	logrus.Debug("Pulled")
	return nil
}

// auth avoids handing go-git a typed nil, which it would treat as set.
func (g *GitSource) auth() transport.AuthMethod {
	if g.Auth == nil {
		return nil
	}
	return g.Auth
}
