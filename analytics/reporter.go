package analytics

import (
	"context"

	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/metrics"
)

// Reporter is the error-reporting sink. It is the sole user-visible failure
// channel of the client: no dispatch error is ever returned to the caller.
type Reporter interface {
	Report(ctx context.Context, err error, fatal bool)
}

// LogReporter reports through the structured logger: fatal errors at error
// level with a stack, everything else as warnings.
type LogReporter struct {
	logg    *logger.Logger
	metrics *metrics.DispatchMetrics
}

// NewLogReporter builds the default reporting sink.
func NewLogReporter(logg *logger.Logger, m *metrics.DispatchMetrics) *LogReporter {
	return &LogReporter{logg: logg, metrics: m}
}

// Report implements Reporter.
func (r *LogReporter) Report(ctx context.Context, err error, fatal bool) {
	if r == nil || err == nil {
		return
	}
	r.metrics.IncReport(fatal)
	if r.logg == nil {
		return
	}
	if fatal {
		r.logg.Error(ctx, "analytics dispatch error", err)
		return
	}
	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "analytics dispatch warning")
}
