package observability

import (
	"context"

	"github.com/netkrida/myhome-sub001/pkg/domain"
)

// Combine merges hook sets into one. Each callback runs the non-nil
// callbacks of every set, in argument order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var (
		enter, leave, validity []func(context.Context, *domain.StepEvent)
		submit, result         []func(context.Context, *domain.SubmitEvent)
	)
	for _, s := range sets {
		enter = appendHook(enter, s.OnStepEnter)
		leave = appendHook(leave, s.OnStepLeave)
		validity = appendHook(validity, s.OnValidityChange)
		submit = appendHook(submit, s.OnSubmit)
		result = appendHook(result, s.OnSubmitResult)
	}
	return domain.LifecycleHooks{
		OnStepEnter:      fanOut(enter),
		OnStepLeave:      fanOut(leave),
		OnValidityChange: fanOut(validity),
		OnSubmit:         fanOut(submit),
		OnSubmitResult:   fanOut(result),
	}
}

func appendHook[E any](list []func(context.Context, E), fn func(context.Context, E)) []func(context.Context, E) {
	if fn == nil {
		return list
	}
	return append(list, fn)
}

func fanOut[E any](list []func(context.Context, E)) func(context.Context, E) {
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	return func(ctx context.Context, e E) {
		for _, fn := range list {
			fn(ctx, e)
		}
	}
}
