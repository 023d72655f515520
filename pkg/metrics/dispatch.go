package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records event dispatch outcomes.
type DispatchMetrics struct {
	dispatched *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	reports    *prometheus.CounterVec
	pipeline   prometheus.Counter
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_dispatched_total",
		Help: "Events handed to the delivery pipeline.",
	}, []string{"type"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_dropped_total",
		Help: "Events dropped by an enrichment.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_rejected_total",
		Help: "Events rejected before dispatch.",
	}, []string{"type", "reason"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_error_reports_total",
		Help: "Errors sent to the reporting sink.",
	}, []string{"severity"})
	pipeline := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_pipeline_errors_total",
		Help: "Delivery pipeline hand-off failures.",
	})
	reg.MustRegister(dispatched, dropped, rejected, reports, pipeline)
	return &DispatchMetrics{
		dispatched: dispatched,
		dropped:    dropped,
		rejected:   rejected,
		reports:    reports,
		pipeline:   pipeline,
	}
}

// IncDispatched increments the dispatched counter for the event type.
func (d *DispatchMetrics) IncDispatched(eventType string) {
	if d == nil || d.dispatched == nil {
		return
	}
	d.dispatched.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDropped increments the enrichment-drop counter for the event type.
func (d *DispatchMetrics) IncDropped(eventType string) {
	if d == nil || d.dropped == nil {
		return
	}
	d.dropped.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncRejected increments the rejection counter for the event type and reason.
func (d *DispatchMetrics) IncRejected(eventType, reason string) {
	if d == nil || d.rejected == nil {
		return
	}
	d.rejected.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// IncReport increments the error report counter for the severity.
func (d *DispatchMetrics) IncReport(fatal bool) {
	if d == nil || d.reports == nil {
		return
	}
	severity := "nonfatal"
	if fatal {
		severity = "fatal"
	}
	d.reports.WithLabelValues(severity).Inc()
}

// IncPipelineError increments the pipeline hand-off failure counter.
func (d *DispatchMetrics) IncPipelineError() {
	if d == nil || d.pipeline == nil {
		return
	}
	d.pipeline.Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
