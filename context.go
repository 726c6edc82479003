package transport

import (
	gocontext "context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ghex-go/transport/backend"
	"github.com/ghex-go/transport/metrics"
)

// errorReporter is implemented by backends that can surface asynchronous,
// out-of-band faults (backend/stream's per-connection read errors); opted
// into via a type assertion so Context stays agnostic of which concrete
// backend it was built on.
type errorReporter interface {
	OnError(w backend.Worker, cb func(error))
}

// Context is the top-level handle for this rank's transport runtime (spec
// §3, §4.3): it owns the backend runtime, the address database, and every
// Worker created from it. Construct one with NewContext or
// NewContextOptions; tear it down with Close.
type Context struct {
	cfg     Config
	bc      backend.Contract
	db      AddressDB
	uuidGen *uuidGenerator
	metrics metrics.Provider
	uuid    UUID
	runID   string
	log     *zap.Logger

	mu      sync.Mutex
	workers []*Worker

	errCh         chan error
	internalErrCh chan error
	closeCh       chan struct{}
	closeOnce     sync.Once
	cancel        gocontext.CancelFunc
	forwarderWG   sync.WaitGroup

	lc *lifecycleCoordinator
}

// NewContext constructs a Context from a plain Config plus a backend
// (there is no sensible default backend, so it is supplied directly rather
// than through Option). Most callers want NewContextOptions instead.
func NewContext(cfg Config, bc backend.Contract, db AddressDB) (*Context, error) {
	opts := []Option{WithBackend(bc)}
	if db != nil {
		opts = append(opts, WithAddressDB(db))
	}
	opts = append(opts,
		WithRank(cfg.Rank), WithSize(cfg.Size), WithWorkers(cfg.DefaultWorkers),
		WithSharedWorkers(cfg.MTWorkersShared), WithCPUAffinityBase(cfg.CPUAffinityBase),
	)
	return NewContextOptions(opts...)
}

// NewContextOptions constructs a Context from DefaultConfig plus opts, the
// functional-options pattern ygrebnov-workers' NewOptions follows.
func NewContextOptions(opts ...Option) (*Context, error) {
	o := newOptions(opts...)
	if o.backend == nil {
		return nil, fmt.Errorf("%w: no backend supplied (use WithBackend)", ErrConfigurationError)
	}

	db := o.db
	if db == nil {
		db = NewSimpleDB(o.cfg.Rank, o.cfg.Size, int32(o.cfg.EstimatedNumEPs))
	}

	caps, err := o.backend.Init(backend.Params{
		Features:        backend.FeatureTagMatching,
		TagSenderMask:   TagSenderMaskExact,
		MTWorkersShared: o.cfg.MTWorkersShared,
		EstimatedNumEPs: int(db.EstSize()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	if o.cfg.MTWorkersShared && caps.ThreadMode != backend.ThreadModeSerialized {
		return nil, fmt.Errorf("%w: requested shared workers but backend granted %s", ErrConfigurationError, caps.ThreadMode)
	}

	_, cancel := gocontext.WithCancel(gocontext.Background())
	logger := o.logger
	if logger == nil {
		logger = newDefaultLogger()
	}
	c := &Context{
		cfg:           o.cfg,
		bc:            o.backend,
		db:            db,
		uuidGen:       newUUIDGenerator(o.cfg.Rank),
		metrics:       o.provider,
		runID:         uuid.New().String(),
		log:           logger,
		errCh:         make(chan error, 1),
		internalErrCh: make(chan error, 8),
		closeCh:       make(chan struct{}),
		cancel:        cancel,
	}

	if o.cfg.DefaultWorkers <= 0 {
		cancel()
		return nil, fmt.Errorf("%w: DefaultWorkers must be >= 1", ErrConfigurationError)
	}
	for i := 0; i < o.cfg.DefaultWorkers; i++ {
		if _, err := c.newWorker(i); err != nil {
			cancel()
			return nil, err
		}
	}

	c.uuid = c.uuidGen.Next()
	db.Insert(c.uuid, c.workers[0].Address())

	if reporter, ok := c.bc.(errorReporter); ok {
		reporter.OnError(c.workers[0].bw, func(e error) { c.internalErrCh <- e })
		fwd := newErrorForwarder(c.internalErrCh, c.errCh, c.closeCh, cancel, &c.forwarderWG)
		go fwd.run()
	}

	c.lc = newLifecycleCoordinator(c.drainInflight, c.destroyWorkers, c.bc.Shutdown)
	return c, nil
}

func (c *Context) newWorker(i int) (*Worker, error) {
	mode := backend.ThreadModeSingle
	if c.cfg.MTWorkersShared {
		mode = backend.ThreadModeSerialized
	}
	bw, addr, err := c.bc.WorkerCreate(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: worker %d: %v", ErrConfigurationError, i, err)
	}
	cpu := -1
	if c.cfg.CPUAffinityBase >= 0 && mode == backend.ThreadModeSingle {
		cpu = c.cfg.CPUAffinityBase + i
	}
	w := &Worker{ctx: c, index: i, shared: c.cfg.MTWorkersShared, mode: mode, bw: bw, addr: addr, cpu: cpu}
	c.mu.Lock()
	c.workers = append(c.workers, w)
	c.mu.Unlock()
	c.log.Debug("worker created", zap.Int("worker", i), zap.String("run_id", c.runID))
	return w, nil
}

// Rank returns this Context's rank.
func (c *Context) Rank() int32 { return c.cfg.Rank }

// Size returns the job size this Context was configured with.
func (c *Context) Size() int32 { return c.cfg.Size }

// UUID returns this Context's own identity, as registered in the
// AddressDB.
func (c *Context) UUID() UUID { return c.uuid }

// RunID returns a random, globally-unique identifier minted for this
// Context's process lifetime, suitable for correlating log lines across
// ranks. Unrelated to UUID: RunID identifies this one Context instance for
// diagnostics, UUID identifies a Worker endpoint on the wire.
func (c *Context) RunID() string { return c.runID }

// Metrics returns the metrics.Provider this Context was configured with
// (metrics.NoopProvider if none was supplied).
func (c *Context) Metrics() metrics.Provider { return c.metrics }

// AddressDB returns the AddressDB backing peer resolution.
func (c *Context) AddressDB() AddressDB { return c.db }

// Worker returns the i-th pre-created Worker.
func (c *Context) Worker(i int) *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workers[i]
}

// NumWorkers returns how many Workers this Context owns.
func (c *Context) NumWorkers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workers)
}

// Errors returns the channel asynchronous backend faults are forwarded to
// (spec EXPANDED ambient error handling). Only ever receives from backends
// implementing errorReporter (currently backend/stream); for backend/memory
// the channel never receives, since nothing but explicit Progress() calls
// ever drives completion.
func (c *Context) Errors() <-chan error { return c.errCh }

// PinCurrentGoroutine pins the calling goroutine's OS thread to Worker w's
// configured affinity CPU (spec EXPANDED C15), a no-op if CPUAffinityBase
// was not configured or w is a shared worker. Call this once, from the
// single goroutine that will exclusively drive w from then on.
func (w *Worker) PinCurrentGoroutine() error {
	if w.cpu < 0 {
		return nil
	}
	return pinToCPU(w.cpu)
}

// ConnectAll resolves and connects to every rank CollectiveDB currently
// knows about, in parallel (one golang.org/x/sync/errgroup goroutine per
// rank), using worker i. With any other AddressDB it returns an error (not
// ErrNoCollectiveBootstrap): callers with a SimpleDB should Connect peers
// individually instead, since SimpleDB has no notion of "every known rank"
// beyond what was manually Inserted.
func (c *Context) ConnectAll(i int) (map[int32]*Endpoint, error) {
	cdb, ok := c.db.(*CollectiveDB)
	if !ok {
		return nil, fmt.Errorf("transport: ConnectAll requires a CollectiveDB")
	}
	ranks := cdb.KnownRanks()
	w := c.Worker(i)

	var mu sync.Mutex
	out := make(map[int32]*Endpoint, len(ranks))
	var eg errgroup.Group
	for _, rank := range ranks {
		rank := rank
		if rank == c.cfg.Rank {
			continue
		}
		eg.Go(func() error {
			ep, err := w.Connect(rank)
			if err != nil {
				return err
			}
			mu.Lock()
			out[rank] = ep
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// drainInflight gives every worker a few Progress calls before teardown
// proceeds, a best-effort drain rather than a blocking wait (see
// ContinuationCommunicator.Close and DESIGN.md Open Question 2: this
// transport's destructors abandon, they do not block).
func (c *Context) drainInflight() {
	c.mu.Lock()
	workers := append([]*Worker(nil), c.workers...)
	c.mu.Unlock()
	for i := 0; i < 3; i++ {
		for _, w := range workers {
			w.Progress()
		}
	}
}

func (c *Context) destroyWorkers() []error {
	c.mu.Lock()
	workers := append([]*Worker(nil), c.workers...)
	c.mu.Unlock()

	var errs []error
	for _, w := range workers {
		if err := w.Close(); err != nil {
			c.log.Error("worker shutdown aborted", zap.Int("worker", w.index), zap.Error(err))
			errs = append(errs, err)
		} else {
			c.log.Debug("worker shut down", zap.Int("worker", w.index))
		}
	}
	return errs
}

// Close tears down every Worker and the backend runtime, in that order
// (spec EXPANDED ambient error handling: drain -> destroy workers -> tear
// down backend). Safe to call more than once; only the first call does
// anything.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.forwarderWG.Wait()
	})
	err := c.lc.Close()
	if err != nil {
		c.log.Error("context close failed", zap.String("run_id", c.runID), zap.Error(err))
	} else {
		c.log.Debug("context closed", zap.String("run_id", c.runID))
	}
	return err
}
