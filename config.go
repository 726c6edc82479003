package transport

import (
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// tomlSettings mirrors ethereum-go-ethereum's cmd/geth config loader: a
// package-level toml.Config tweaking field-name normalization, reused for
// every decode without per-call boilerplate. NormFieldName passes keys
// through unchanged, and FieldToKey lower-cases a Go field name as a whole
// (DefaultWorkers -> defaultworkers; no underscores are inserted).
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return strings.ToLower(field)
	},
}

// Config holds every tunable NewContextOptions accepts, mirroring the
// node-config pattern ethereum-go-ethereum's cmd/geth loads via
// naoina/toml: a plain struct, populated either by functional Options or by
// LoadConfig from a TOML file, then passed once to NewContext.
type Config struct {
	// Rank and Size identify this process within the job.
	Rank int32
	Size int32

	// DefaultWorkers is how many Workers NewContext pre-creates.
	DefaultWorkers int

	// MTWorkersShared requests ThreadModeSerialized workers (shared, lock
	// serialized) instead of ThreadModeSingle (one goroutine each).
	MTWorkersShared bool

	// EstimatedNumEPs sizes backend-internal endpoint tables up front.
	EstimatedNumEPs int

	// RequestQueueCapacity is the Continuation Communicator's element pool
	// bound (spec EXPANDED C14); 0 means unbounded (a dynamic sync.Pool).
	// NewContext does not apply it; a caller passes it to
	// continuation.NewWithCapacity.
	RequestQueueCapacity int

	// CPUAffinityBase, when >= 0, pins worker i's OS thread to CPU
	// CPUAffinityBase+i (Linux only; spec EXPANDED C15). -1 disables
	// pinning.
	CPUAffinityBase int

	// MetricsNamespace is a namespace for a promadapter Provider's
	// instruments. NewContext does not read it; a caller passes it to
	// promadapter.New.
	MetricsNamespace string
}

// DefaultConfig returns the baseline Config NewContext uses absent any
// Option.
func DefaultConfig() Config {
	return Config{
		Rank:                 0,
		Size:                 1,
		DefaultWorkers:       1,
		MTWorkersShared:      false,
		EstimatedNumEPs:      0,
		RequestQueueCapacity: 0,
		CPUAffinityBase:      -1,
		MetricsNamespace:     "ghex_transport",
	}
}

// LoadConfig reads a TOML file at path into a Config seeded from
// DefaultConfig, the same load-a-file-over-defaults shape
// ethereum-go-ethereum's node config loader uses.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
