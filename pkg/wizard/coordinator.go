package wizard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/netkrida/myhome-sub001/internal/logging"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/persistence"
	"github.com/netkrida/myhome-sub001/pkg/ports"
)

// Coordinator turns a complete aggregate into one backend submission.
type Coordinator struct {
	flow      string
	steps     []domain.StepDescriptor
	submitter ports.Submitter
	store     *persistence.Adapter
	scope     persistence.Scope
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator creates a coordinator for flow. store may be nil when
// nothing is persisted.
func NewCoordinator(flow string, steps []domain.StepDescriptor, submitter ports.Submitter, store *persistence.Adapter, scope persistence.Scope, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		flow:      flow,
		steps:     steps,
		submitter: submitter,
		store:     store,
		scope:     scope,
		logger:    logger,
		now:       time.Now,
	}
}

// Missing returns the declared steps without a recorded payload.
func (c *Coordinator) Missing(agg domain.Aggregate) []domain.StepRef {
	var missing []domain.StepRef
	for i, s := range c.steps {
		if !agg.Has(domain.SlotFor(i)) {
			missing = append(missing, domain.StepRef{Index: i, ID: s.ID, Title: s.Title})
		}
	}
	return missing
}

// Submit sends agg to the backend collaborator.
//
// An incomplete aggregate fails locally with *domain.IncompleteError and never
// reaches the backend. A backend failure yields *domain.SubmissionError. In
// both cases agg and every snapshot are left as they were. On success every
// snapshot of the flow is cleared.
func (c *Coordinator) Submit(ctx context.Context, agg domain.Aggregate) (*domain.Receipt, error) {
	if missing := c.Missing(agg); len(missing) > 0 {
		err := &domain.IncompleteError{Missing: missing}
		c.logger.Info("submission refused: incomplete wizard", "flow", c.flow, "missing", len(missing))
		return nil, err
	}

	if c.submitter == nil {
		return nil, &domain.SubmissionError{Message: domain.GenericSubmissionMessage, Cause: errors.New("no submitter configured")}
	}

	// The collaborator gets a copy so it cannot alter what the user typed.
	resp, err := c.submitter.Submit(ctx, c.flow, agg.Clone())
	if err != nil {
		c.logger.Error("submission failed", "flow", c.flow, "err", err)
		return nil, toSubmissionError(err)
	}

	if c.store != nil {
		c.store.ClearFlow(ctx, c.flow, len(c.steps), c.scope)
	}
	c.logger.Info("submission accepted", "flow", c.flow)

	return &domain.Receipt{
		Flow:        c.flow,
		Response:    resp,
		SubmittedAt: c.now().UTC(),
	}, nil
}

func toSubmissionError(err error) *domain.SubmissionError {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		return subErr
	}

	var valErr *domain.RemoteValidationError
	if errors.As(err, &valErr) && len(valErr.Fields) > 0 {
		return &domain.SubmissionError{
			Message: "The server rejected some fields.",
			Fields:  valErr.Fields,
			Cause:   err,
		}
	}

	return &domain.SubmissionError{
		Message: domain.GenericSubmissionMessage,
		Cause:   err,
	}
}
