// Package observability provides Prometheus instrumentation for the Weft
// engine: stream ingestion counters and action dispatch counters wired in
// through lifecycle hooks.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tapestrylab/weft/pkg/domain"
)

// Line classification labels reported by the ingester.
const (
	LineClassPatch      = "patch"
	LineClassCommentary = "commentary"
	LineClassMalformed  = "malformed"
	LineClassMeta       = "meta"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	LinesTotal        *prometheus.CounterVec
	RecoveriesTotal   prometheus.Counter
	PatchesApplied    prometheus.Counter
	RepairRoundsTotal prometheus.Counter
	ActionsTotal      *prometheus.CounterVec
	ActionDuration    prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "ingest",
			Name:      "lines_total",
			Help:      "Stream lines processed, by classification.",
		}, []string{"class"}),
		RecoveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "ingest",
			Name:      "recoveries_total",
			Help:      "Malformed lines repaired by bounded bracket stripping.",
		}),
		PatchesApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "ingest",
			Name:      "patches_applied_total",
			Help:      "Patches applied to the document.",
		}),
		RepairRoundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "ingest",
			Name:      "repair_rounds_total",
			Help:      "Model repair rounds started.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "action",
			Name:      "executions_total",
			Help:      "Actions executed, by name and outcome.",
		}, []string{"action", "status"}),
		ActionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weft",
			Subsystem: "action",
			Name:      "duration_seconds",
			Help:      "Wall time of external action handlers.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ActionHooks returns lifecycle hooks that record action executions.
// Merge them into the dispatcher's hooks to get metrics without coupling
// the dispatcher to Prometheus.
func (m *Metrics) ActionHooks() domain.LifecycleHooks {
	var mu sync.Mutex
	starts := make(map[string]time.Time)
	return domain.LifecycleHooks{
		OnActionStart: func(_ context.Context, ev *domain.ActionEvent) {
			mu.Lock()
			starts[ev.Action] = ev.Timestamp
			mu.Unlock()
		},
		OnActionEnd: func(_ context.Context, ev *domain.ActionEvent) {
			mu.Lock()
			defer mu.Unlock()
			status := "ok"
			if ev.IsError {
				status = "error"
			}
			m.ActionsTotal.WithLabelValues(ev.Action, status).Inc()
			if t, ok := starts[ev.Action]; ok {
				m.ActionDuration.Observe(ev.Timestamp.Sub(t).Seconds())
				delete(starts, ev.Action)
			}
		},
	}
}
