package myhome_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	myhome "github.com/netkrida/myhome-sub001"
	"github.com/netkrida/myhome-sub001/pkg/adapters/memory"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/netkrida/myhome-sub001/pkg/ports"
	"github.com/netkrida/myhome-sub001/pkg/wizard"
)

// ExampleNew walks the room-type wizard from the first step to submission.
func ExampleNew() {
	ctx := context.Background()

	submitter := ports.SubmitterFunc(func(_ context.Context, flow string, agg domain.Aggregate) (json.RawMessage, error) {
		fmt.Printf("submitting %s with %d steps\n", flow, len(agg))
		return json.RawMessage(`{"id":"rt-1"}`), nil
	})

	ctl, _, err := myhome.New(ctx, flows.RoomTypeFlow, submitter, nil,
		myhome.WithWizardOptions(wizard.WithDebounce(0)),
	)
	if err != nil {
		log.Fatal(err)
	}

	// The first step has not reported valid yet.
	err = ctl.GoNext(ctx)
	fmt.Println("blocked:", errors.Is(err, domain.ErrNavigationBlocked))

	_ = ctl.Report(0, flows.RoomTypeDetails{PropertyID: "p-1", Name: "Deluxe", SizeM2: 12, Capacity: 2}, true)
	ctl.Tick(ctx)
	if err := ctl.GoNext(ctx); err != nil {
		log.Fatal(err)
	}

	_ = ctl.Report(1, flows.RoomTypePricing{MonthlyPrice: 1500000}, true)
	ctl.Tick(ctx)
	if err := ctl.GoNext(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("status:", ctl.State().Status)
	fmt.Println("receipt:", string(ctl.Receipt().Response))

	// Output:
	// blocked: true
	// submitting room-type-create with 2 steps
	// status: completed
	// receipt: {"id":"rt-1"}
}

// ExampleNew_restore shows a reload resuming from stored snapshots.
func ExampleNew_restore() {
	ctx := context.Background()
	backend := memory.NewStore()
	submitter := ports.SubmitterFunc(func(context.Context, string, domain.Aggregate) (json.RawMessage, error) {
		return nil, nil
	})
	opts := []myhome.Option{
		myhome.WithBackend(backend),
		myhome.WithNamespace("user-42"),
		myhome.WithWizardOptions(wizard.WithDebounce(0)),
	}

	first, _, err := myhome.New(ctx, flows.RoomTypeFlow, submitter, nil, opts...)
	if err != nil {
		log.Fatal(err)
	}
	_ = first.Report(0, flows.RoomTypeDetails{PropertyID: "p-1", Name: "Deluxe", SizeM2: 12, Capacity: 2}, true)
	first.Tick(ctx)
	_ = first.GoNext(ctx)
	first.Close()

	// Page reload: a new controller over the same storage.
	second, restored, err := myhome.New(ctx, flows.RoomTypeFlow, submitter, nil, opts...)
	if err != nil {
		log.Fatal(err)
	}
	i, step := second.Current()
	fmt.Println("restored:", restored)
	fmt.Printf("current: %d (%s)\n", i+1, step.ID)
	fmt.Println("first step valid:", second.Registry().IsValid(0))

	// Output:
	// restored: true
	// current: 2 (pricing)
	// first step valid: true
}
