/*
Package wizard implements the multi-step wizard engine.

A Controller sequences an ordered list of steps, gates forward navigation on
per-step validity, aggregates the step payloads and persists in-progress data
through a persistence.Adapter so a reload resumes where the user left off.
When the last step completes, a Coordinator hands the aggregate to the
backend collaborator.

# Event Model

Step forms report (data, valid) through Controller.Report. Reports are not
applied synchronously: they are posted to a Queue and applied, in order, the
next time the host calls Controller.Tick (navigation and submission tick
first). A report equal to the last recorded one is a no-op.

	ctl, _ := wizard.New("property-create", steps, store, submitter)
	ctl.Restore(ctx, nil)
	ctl.Report(0, basics, true)
	ctl.Tick(ctx)
	if err := ctl.GoNext(ctx); errors.Is(err, domain.ErrNavigationBlocked) {
		// show the reason next to the disabled button
	}

Storage is assumed to be used by one flow at a time per session; the engine
does no cross-instance locking.
*/
package wizard
