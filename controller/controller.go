package controller

import (
	"context"
	"sync"
	"time"

	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sardine-ai/go-remote-records/observable"
	"github.com/sardine-ai/go-remote-records/repository"
	"github.com/sirupsen/logrus"
)

// Phase is where a controller stands in its fetch lifecycle.
type Phase int

const (
	Initial Phase = iota
	Loaded
	FetchFailed
)

func (p Phase) String() string {
	switch p {
	case Initial:
		return "initial"
	case Loaded:
		return "loaded"
	case FetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// Status is the explicit fetch state of a controller.
type Status struct {
	Phase     Phase
	Err       error     // Error of the last cycle when Phase is FetchFailed
	UpdatedAt time.Time // Time the last cycle resolved
	Fetches   int       // Number of resolved cycles
}

// Controller holds a Repository and exposes the records it fetched through
// an observable holder.
//
// Data starts empty and is overwritten once per successful fetch. A failed
// fetch leaves Data untouched, so a consumer of Data alone sees "still
// loading". Consumers that need to tell the two apart watch State instead.
type Controller struct {
	Repository      repository.Repository
	RefreshInterval time.Duration

	data     *observable.Value[[]model.Record]
	setData  func([]model.Record)
	state    *observable.Value[Status]
	setState func(Status)

	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc

	// cycleMu serializes fetch cycles on one controller.
	cycleMu  sync.Mutex
	first    chan struct{}
	firstErr error
	wg       sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithRefreshInterval makes the controller fetch again every d after the
// initial fetch. Zero disables periodic refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.RefreshInterval = d
	}
}

// WithLogger sets the log entry the controller writes to.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// New creates a Controller and starts exactly one asynchronous fetch. When a
// refresh interval is set, a background goroutine keeps fetching until ctx
// is cancelled or Close is called.
func New(ctx context.Context, repo repository.Repository, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(ctx)

	c := &Controller{
		Repository: repo,
		log:        logrus.NewEntry(logrus.StandardLogger()),
		ctx:        ctx,
		cancel:     cancel,
		first:      make(chan struct{}),
	}
	c.data, c.setData = observable.NewWithCopy([]model.Record{}, model.Clone)
	c.state, c.setState = observable.New(Status{Phase: Initial})
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.run()

	return c
}

func (c *Controller) run() {
	defer c.wg.Done()

	// Initial fetch
	err := c.fetch(c.ctx)
	c.firstErr = err
	// Release Wait callers
	close(c.first)
	if err != nil {
		c.log.WithError(err).Error("error fetching records")
	}

	if c.RefreshInterval <= 0 {
		return
	}

	// Keep refreshing until the controller is closed
	ticker := time.NewTicker(c.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.fetch(c.ctx); err != nil {
				c.log.WithError(err).Error("error refreshing records")
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// fetch runs one cycle and publishes its outcome. Nothing is published once
// the controller is closed.
func (c *Controller) fetch(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	records, err := c.Repository.FetchData(ctx)
	// Closed while fetching: drop the result
	if c.ctx.Err() != nil {
		if err == nil {
			err = c.ctx.Err()
		}
		return err
	}

	prev := c.state.Get()
	// Data keeps the last good records on failure
	if err != nil {
		c.setState(Status{Phase: FetchFailed, Err: err, UpdatedAt: time.Now(), Fetches: prev.Fetches + 1})
		return err
	}

	// Data first, so State observers see the records already published
	c.setData(records)
	c.setState(Status{Phase: Loaded, UpdatedAt: time.Now(), Fetches: prev.Fetches + 1})
	c.log.WithField("count", len(records)).Debug("records published")
	return nil
}

// Data returns the read-only holder of the latest fetched records.
// Subscribers run inside the fetch cycle and must not call Refresh.
func (c *Controller) Data() *observable.Value[[]model.Record] {
	return c.data
}

// State returns the read-only holder of the fetch state.
func (c *Controller) State() *observable.Value[Status] {
	return c.state
}

// Refresh runs one more fetch cycle with the same ordering and overwrite
// semantics as the initial one.
func (c *Controller) Refresh(ctx context.Context) error {
	ctx, cancel := mergeCancel(ctx, c.ctx)
	defer cancel()
	return c.fetch(ctx)
}

// Wait blocks until the initial fetch resolved and returns its error.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.first:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.firstErr
}

// Close stops the background goroutine and waits for it to return. Results
// still in flight are discarded.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// mergeCancel returns a context derived from ctx that is also cancelled
// when other is.
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
