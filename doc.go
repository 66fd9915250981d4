/*
Package myhome is the multi-step wizard engine behind property, room and room-type
creation on the myhome rental platform.

A wizard is an ordered list of steps. Each step reports its payload and whether it is
valid; the engine gates forward navigation on that validity, aggregates the payloads
into one submission, and keeps in-progress answers in storage so a reload or a crash
resumes where the user left off.

# Concept

The engine is split the hexagonal way. pkg/domain holds pure types (steps, state,
aggregate, errors). pkg/wizard holds the controller, the validity registry, the deferred
write queue and the submission coordinator. Storage (memory, file, Redis, SQLite) and the
platform API are adapters behind pkg/ports, so the same controller runs inside an HTTP
server, a CLI or a test.

# Usage

	ctl, restored, err := myhome.New(ctx, flows.RoomTypeFlow, submitter, nil,
		myhome.WithBackend(redisStore),
	)
	if err != nil {
		log.Fatal(err)
	}
	if restored {
		i, step := ctl.Current()
		fmt.Printf("resuming at step %d (%s)\n", i+1, step.Title)
	}

	_ = ctl.Report(0, flows.RoomTypeDetails{PropertyID: "p-1", Name: "Deluxe", SizeM2: 12, Capacity: 2}, true)
	ctl.Tick(ctx)
	if err := ctl.GoNext(ctx); err != nil {
		// domain.ErrNavigationBlocked while the step is invalid
	}

Reports are applied on Tick, in order; snapshots are written after a short debounce and
the step pointer is written on every navigation. Submitting from the last step sends the
aggregate to the submitter and clears every snapshot on success.

# Server

cmd/myhome exposes the same engine as a JSON API (pkg/adapters/http) with one wizard per
(session, flow) pair, see pkg/session.
*/
package myhome
