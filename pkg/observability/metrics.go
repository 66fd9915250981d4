package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the wizard collectors.
type Metrics struct {
	StepVisits     *prometheus.CounterVec
	ValidityFlips  *prometheus.CounterVec
	Submissions    *prometheus.CounterVec
	SubmitDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myhome_wizard_step_visits_total",
				Help: "Total number of wizard step visits",
			},
			[]string{"step_id"},
		),
		ValidityFlips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myhome_wizard_validity_changes_total",
				Help: "Total number of step validity changes",
			},
			[]string{"step_id", "valid"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "myhome_wizard_submissions_total",
				Help: "Wizard submissions by outcome",
			},
			[]string{"outcome"},
		),
		SubmitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "myhome_wizard_submit_duration_seconds",
				Help:    "Duration of backend submissions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.StepVisits, m.ValidityFlips, m.Submissions, m.SubmitDuration)
	return m
}

// Outcome classifies a submission result for metric labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrIncomplete):
		return "incomplete"
	}
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) && subErr.HasFieldErrors() {
		return "rejected"
	}
	return "failed"
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepVisits.WithLabelValues(e.StepID).Inc()
		},
		OnValidityChange: func(_ context.Context, e *domain.StepEvent) {
			valid := "false"
			if e.Valid {
				valid = "true"
			}
			m.ValidityFlips.WithLabelValues(e.StepID, valid).Inc()
		},
		OnSubmitResult: func(_ context.Context, e *domain.SubmitEvent) {
			outcome := Outcome(e.Err)
			m.Submissions.WithLabelValues(outcome).Inc()
			m.SubmitDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
		},
	}
}

// LogHooks returns lifecycle hooks that write an audit trail to logger.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			logger.Debug("step_enter", "flow", e.Flow, "step", e.StepID, "index", e.Index)
		},
		OnStepLeave: func(_ context.Context, e *domain.StepEvent) {
			logger.Debug("step_leave", "flow", e.Flow, "step", e.StepID, "valid", e.Valid)
		},
		OnSubmit: func(_ context.Context, e *domain.SubmitEvent) {
			logger.Info("submit", "flow", e.Flow)
		},
		OnSubmitResult: func(_ context.Context, e *domain.SubmitEvent) {
			if e.Err != nil {
				logger.Warn("submit_result", "flow", e.Flow, "outcome", Outcome(e.Err), "duration", e.Duration, "err", e.Err)
				return
			}
			logger.Info("submit_result", "flow", e.Flow, "outcome", "success", "duration", e.Duration)
		},
	}
}
