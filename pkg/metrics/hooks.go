// Package metrics exports cache policy events to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-scopecache/policy"
)

const subsystem = "cache"

var validNamespace = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// PrometheusHooks implements policy.Hooks with counters labelled by entity
// tag.
type PrometheusHooks struct {
	lookups       *prometheus.CounterVec
	stale         *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	reloadSize    *prometheus.HistogramVec
}

var _ policy.Hooks = (*PrometheusHooks)(nil)

// NewPrometheusHooks registers the cache collectors with reg, or with the
// default registerer when reg is nil. Collectors that are already
// registered under the same names are reused, so several containers can
// share one registry.
func NewPrometheusHooks(reg prometheus.Registerer, namespace string) (*PrometheusHooks, error) {
	err := validation.Validate(namespace, validation.Required, validation.Match(validNamespace))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid metrics namespace")
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &PrometheusHooks{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lookups_total",
			Help:      "Cache lookups by entity and result (hit or miss).",
		}, []string{"entity", "result"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_total",
			Help:      "Cached full sets found stale and reloaded.",
		}, []string{"entity"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalidations_total",
			Help:      "Write driven cache invalidations.",
		}, []string{"entity"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reloads_total",
			Help:      "Full set loads from the source.",
		}, []string{"entity"}),
		reloadSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reload_items",
			Help:      "Entities returned by full set loads.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"entity"}),
	}

	if h.lookups, err = register(reg, h.lookups); err != nil {
		return nil, err
	}
	if h.stale, err = register(reg, h.stale); err != nil {
		return nil, err
	}
	if h.invalidations, err = register(reg, h.invalidations); err != nil {
		return nil, err
	}
	if h.reloads, err = register(reg, h.reloads); err != nil {
		return nil, err
	}
	if h.reloadSize, err = register(reg, h.reloadSize); err != nil {
		return nil, err
	}
	return h, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("metrics: register collector: %w", err)
}

func (h *PrometheusHooks) Hit(tag string) {
	h.lookups.WithLabelValues(tag, "hit").Inc()
}

func (h *PrometheusHooks) Miss(tag string) {
	h.lookups.WithLabelValues(tag, "miss").Inc()
}

func (h *PrometheusHooks) Stale(tag string) {
	h.stale.WithLabelValues(tag).Inc()
}

func (h *PrometheusHooks) Invalidated(tag string) {
	h.invalidations.WithLabelValues(tag).Inc()
}

func (h *PrometheusHooks) Reload(tag string, items int) {
	h.reloads.WithLabelValues(tag).Inc()
	h.reloadSize.WithLabelValues(tag).Observe(float64(items))
}
