package instrument

import (
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// Recorder reports events to the log and to metrics.
type Recorder struct {
	logger  logpkg.Logger
	metrics *Metrics
}

// NewRecorder builds a Recorder. Both arguments are optional.
func NewRecorder(logger logpkg.Logger, metrics *Metrics) *Recorder {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Recorder{logger: logger, metrics: metrics}
}

// Metrics returns the underlying collectors, possibly nil.
func (r *Recorder) Metrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.metrics
}

// Emit counts ev and logs it at the event's level.
func (r *Recorder) Emit(ev Event, scope, sequence string, fields ...logpkg.Field) {
	if r == nil {
		return
	}
	r.metrics.Inc(ev, scope)
	all := make([]logpkg.Field, 0, len(fields)+3)
	all = append(all, logpkg.Str("event", ev.String()), logpkg.Str(logpkg.ScopeKey, scope), logpkg.Str(logpkg.SequenceKey, sequence))
	all = append(all, fields...)
	switch ev.Level() {
	case logpkg.CatastrophicLevel:
		r.logger.Catastrophic(ev.String(), all...)
	case logpkg.ErrorLevel:
		r.logger.Error(ev.String(), all...)
	case logpkg.WarnLevel:
		r.logger.Warn(ev.String(), all...)
	case logpkg.InfoLevel:
		r.logger.Info(ev.String(), all...)
	default:
		r.logger.Debug(ev.String(), all...)
	}
}
