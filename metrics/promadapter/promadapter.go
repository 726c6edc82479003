// Package promadapter wires metrics.Provider to prometheus/client_golang,
// for deployments that want the Continuation Communicator and Worker
// instruments (spec's EXPANDED C12) scraped over /metrics rather than read
// back in-process via metrics.BasicProvider.
package promadapter

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghex-go/transport/metrics"
)

// Provider adapts a prometheus.Registerer into a metrics.Provider.
// Instruments are created on first use and cached by name, mirroring
// metrics.BasicProvider's on-demand-and-reused semantics.
type Provider struct {
	reg        prometheus.Registerer
	namespace  string
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	updowns    map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// New returns a Provider registering every instrument under namespace
// (typically "ghex_transport").
func New(reg prometheus.Registerer, namespace string) *Provider {
	return &Provider{
		reg:        reg,
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		updowns:    make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(attrs map[string]string) []string {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	return names
}

func labelValues(names []string, attrs map[string]string) prometheus.Labels {
	if len(names) == 0 {
		return nil
	}
	lv := make(prometheus.Labels, len(names))
	for _, n := range names {
		lv[n] = attrs[n]
	}
	return lv
}

func applyOptions(opts []metrics.InstrumentOption) metrics.InstrumentConfig {
	var cfg metrics.InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

func (p *Provider) Counter(name string, opts ...metrics.InstrumentOption) metrics.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := applyOptions(opts)
	vec, ok := p.counters[name]
	if !ok {
		names := labelNames(cfg.Attributes)
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      cfg.Description,
		}, names)
		p.reg.MustRegister(vec)
		p.counters[name] = vec
	}
	return promCounter{c: vec.With(labelValues(labelNames(cfg.Attributes), cfg.Attributes))}
}

func (p *Provider) UpDownCounter(name string, opts ...metrics.InstrumentOption) metrics.UpDownCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := applyOptions(opts)
	vec, ok := p.updowns[name]
	if !ok {
		names := labelNames(cfg.Attributes)
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      cfg.Description,
		}, names)
		p.reg.MustRegister(vec)
		p.updowns[name] = vec
	}
	return promUpDownCounter{g: vec.With(labelValues(labelNames(cfg.Attributes), cfg.Attributes))}
}

func (p *Provider) Histogram(name string, opts ...metrics.InstrumentOption) metrics.Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := applyOptions(opts)
	vec, ok := p.histograms[name]
	if !ok {
		names := labelNames(cfg.Attributes)
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      cfg.Description,
		}, names)
		p.reg.MustRegister(vec)
		p.histograms[name] = vec
	}
	return promHistogram{h: vec.With(labelValues(labelNames(cfg.Attributes), cfg.Attributes))}
}

type promCounter struct{ c prometheus.Counter }

func (p promCounter) Add(n int64) { p.c.Add(float64(n)) }

type promUpDownCounter struct{ g prometheus.Gauge }

func (p promUpDownCounter) Add(n int64) { p.g.Add(float64(n)) }

type promHistogram struct{ h prometheus.Observer }

func (p promHistogram) Record(v float64) { p.h.Observe(v) }

var _ metrics.Provider = (*Provider)(nil)
