package ports

import (
	"context"
	"encoding/json"

	"github.com/netkrida/myhome-sub001/pkg/domain"
)

// Submitter is the backend API collaborator that receives a finished wizard.
// It owns the network call and status-code interpretation. When the backend
// returns structured per-field detail it must surface a *domain.RemoteValidationError.
type Submitter interface {
	Submit(ctx context.Context, flow string, aggregate domain.Aggregate) (json.RawMessage, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, flow string, aggregate domain.Aggregate) (json.RawMessage, error)

func (f SubmitterFunc) Submit(ctx context.Context, flow string, aggregate domain.Aggregate) (json.RawMessage, error) {
	return f(ctx, flow, aggregate)
}
