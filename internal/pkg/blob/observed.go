package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports blob gateway latency and failures to Prometheus.
type Metrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	bytes    prometheus.Counter
}

// NewMetrics registers the gateway collectors on reg, reusing collectors
// that are already registered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "vitrine"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "blob",
		Name:      "operation_duration_seconds",
		Help:      "Latency of blob store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "blob",
		Name:      "operation_errors_total",
		Help:      "Count of failed blob store operations.",
	}, []string{"operation"})
	uploaded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "blob",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes successfully written to the blob store.",
	})

	m := &Metrics{}
	var err error
	if m.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, errs); err != nil {
		return nil, err
	}
	if m.bytes, err = register(reg, uploaded); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register blob metric: %w", err)
	}
	return c, nil
}

func (m *Metrics) record(op string, started time.Time, err error) {
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.errors.WithLabelValues(op).Inc()
	}
}

// Observed decorates a Store with Metrics.
type Observed struct {
	next    Store
	metrics *Metrics
}

// NewObserved wraps next. A nil metrics returns next unchanged.
func NewObserved(next Store, metrics *Metrics) Store {
	if metrics == nil {
		return next
	}
	return &Observed{next: next, metrics: metrics}
}

func (o *Observed) Put(ctx context.Context, key string, payload []byte, contentType string) error {
	started := time.Now()
	err := o.next.Put(ctx, key, payload, contentType)
	o.metrics.record("put", started, err)
	if err == nil {
		o.metrics.bytes.Add(float64(len(payload)))
	}
	return err
}

func (o *Observed) Presign(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	started := time.Now()
	url, found, err := o.next.Presign(ctx, key, ttl)
	o.metrics.record("presign", started, err)
	return url, found, err
}

func (o *Observed) Delete(ctx context.Context, key string) error {
	started := time.Now()
	err := o.next.Delete(ctx, key)
	o.metrics.record("delete", started, err)
	return err
}

func (o *Observed) List(ctx context.Context, prefix string) ([]Object, error) {
	started := time.Now()
	objects, err := o.next.List(ctx, prefix)
	o.metrics.record("list", started, err)
	return objects, err
}
