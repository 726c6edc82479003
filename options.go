package transport

import (
	"go.uber.org/zap"

	"github.com/ghex-go/transport/backend"
	"github.com/ghex-go/transport/metrics"
)

// Option mutates a Config, applied in order over DefaultConfig (or a loaded
// Config) by NewContextOptions.
type Option func(*contextOptions)

type contextOptions struct {
	cfg      Config
	backend  backend.Contract
	provider metrics.Provider
	db       AddressDB
	logger   *zap.Logger
}

// WithRank sets this process's rank.
func WithRank(rank int32) Option {
	return func(o *contextOptions) { o.cfg.Rank = rank }
}

// WithSize sets the job size (total number of ranks).
func WithSize(size int32) Option {
	return func(o *contextOptions) { o.cfg.Size = size }
}

// WithWorkers sets how many Workers NewContext pre-creates.
func WithWorkers(n int) Option {
	return func(o *contextOptions) { o.cfg.DefaultWorkers = n }
}

// WithSharedWorkers requests ThreadModeSerialized workers.
func WithSharedWorkers(shared bool) Option {
	return func(o *contextOptions) { o.cfg.MTWorkersShared = shared }
}

// WithCPUAffinityBase enables Linux CPU pinning starting at base (spec
// EXPANDED C15); pass -1 to disable.
func WithCPUAffinityBase(base int) Option {
	return func(o *contextOptions) { o.cfg.CPUAffinityBase = base }
}

// WithMetricsProvider attaches a metrics.Provider (metrics.NewNoopProvider
// by default; metrics.NewBasicProvider or promadapter.New for real use).
func WithMetricsProvider(p metrics.Provider) Option {
	return func(o *contextOptions) { o.provider = p }
}

// WithBackend selects the backend.Contract NewContext builds workers on top
// of (backend/memory.New(...) or backend/stream.New() in this module).
// Required: NewContext returns ErrConfigurationError if no backend was
// supplied.
func WithBackend(bc backend.Contract) Option {
	return func(o *contextOptions) { o.backend = bc }
}

// WithAddressDB selects the AddressDB peers are resolved through
// (CollectiveDB or SimpleDB); defaults to a SimpleDB if unset.
func WithAddressDB(db AddressDB) Option {
	return func(o *contextOptions) { o.db = db }
}

// WithLogger attaches a *zap.Logger for this Context's lifecycle and error
// events (zap.NewNop by default, matching yarpc's buffer middleware).
func WithLogger(l *zap.Logger) Option {
	return func(o *contextOptions) { o.logger = l }
}

// newOptions applies opts over DefaultConfig and returns the resulting
// options bag, the same "defaults then functional overrides" shape as
// ygrebnov-workers' NewOptions.
func newOptions(opts ...Option) *contextOptions {
	o := &contextOptions{cfg: DefaultConfig(), provider: metrics.NewNoopProvider(), logger: newDefaultLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
