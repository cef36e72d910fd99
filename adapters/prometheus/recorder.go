package prometheus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-mintflow/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// LabelNames is the fixed label set every mintflow metric carries. Tags
// outside it are dropped and missing ones are recorded as "".
var LabelNames = []string{"operation", "status", "stage", "kind", "chain", "error_code"}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder implements core.MetricsRecorder on a prometheus registry. Metric
// vectors are created on first use, so "mintflow.mint.total" becomes the
// counter mintflow_mint_total.
type Recorder struct {
	registerer prom.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prom.CounterVec
	histograms map[string]*prom.HistogramVec
	errs       []error
}

func NewRecorder(registerer prom.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}
	recorder := &Recorder{
		registerer: registerer,
		buckets:    []float64{5, 25, 100, 250, 1000, 5000, 15000, 60000, 120000},
		counters:   map[string]*prom.CounterVec{},
		histograms: map[string]*prom.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	counter := r.counter(name)
	if counter == nil {
		return
	}
	counter.With(labels(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram := r.histogram(name)
	if histogram == nil {
		return
	}
	histogram.With(labels(tags)).Observe(value)
}

// Errors returns the registration failures seen so far.
func (r *Recorder) Errors() []error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *Recorder) counter(name string) *prom.CounterVec {
	fullName := r.fullName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[fullName]; ok {
		return existing
	}
	vec := prom.NewCounterVec(prom.CounterOpts{
		Name: fullName,
		Help: "mintflow operation counter " + strings.TrimSpace(name),
	}, LabelNames)
	if err := r.registerer.Register(vec); err != nil {
		already, ok := err.(prom.AlreadyRegisteredError)
		if !ok {
			r.errs = append(r.errs, fmt.Errorf("prometheus: register %s: %w", fullName, err))
			r.counters[fullName] = nil
			return nil
		}
		existing, ok := already.ExistingCollector.(*prom.CounterVec)
		if !ok {
			r.errs = append(r.errs, fmt.Errorf("prometheus: %s is registered with another type", fullName))
			r.counters[fullName] = nil
			return nil
		}
		vec = existing
	}
	r.counters[fullName] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prom.HistogramVec {
	fullName := r.fullName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[fullName]; ok {
		return existing
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Name:    fullName,
		Help:    "mintflow operation histogram " + strings.TrimSpace(name),
		Buckets: r.buckets,
	}, LabelNames)
	if err := r.registerer.Register(vec); err != nil {
		already, ok := err.(prom.AlreadyRegisteredError)
		if !ok {
			r.errs = append(r.errs, fmt.Errorf("prometheus: register %s: %w", fullName, err))
			r.histograms[fullName] = nil
			return nil
		}
		existing, ok := already.ExistingCollector.(*prom.HistogramVec)
		if !ok {
			r.errs = append(r.errs, fmt.Errorf("prometheus: %s is registered with another type", fullName))
			r.histograms[fullName] = nil
			return nil
		}
		vec = existing
	}
	r.histograms[fullName] = vec
	return vec
}

func (r *Recorder) fullName(name string) string {
	sanitized := sanitizeName(name)
	if r.namespace == "" {
		return sanitized
	}
	return r.namespace + "_" + sanitized
}

func labels(tags map[string]string) prom.Labels {
	out := make(prom.Labels, len(LabelNames))
	for _, name := range LabelNames {
		out[name] = strings.TrimSpace(tags[name])
	}
	return out
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
