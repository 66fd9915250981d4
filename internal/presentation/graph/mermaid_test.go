package graph_test

import (
	"strings"
	"testing"

	"github.com/netkrida/myhome-sub001/internal/presentation/graph"
	"github.com/netkrida/myhome-sub001/pkg/domain"
)

func steps() []domain.StepDescriptor {
	return []domain.StepDescriptor{
		{ID: "info", Title: "Room \"info\"", Persist: domain.PersistWithDraft},
		{ID: "photos", Title: "Photos", Persist: domain.PersistAlways},
		{ID: "price", Title: "Price"},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes and Edges",
			contains: []string{
				"graph LR",
				`step1[["1. Room 'info'"]]`,
				`step2[/"2. Photos"/]`,
				`step3["3. Price"]`,
				`submit(("submit"))`,
				`step1 -- "valid" --> step2`,
				`step3 -- "valid" --> submit`,
				"step2 -.-> step1",
			},
			excludes: []string{"step1 -.->", "classDef"},
		},
		{
			name:    "Overlay",
			overlay: &graph.Overlay{Current: 1, MaxVisited: 2, Validity: map[int]bool{0: true}},
			contains: []string{
				"class step1 valid;",
				"class step2 current;",
				"class step3 visited;",
			},
			excludes: []string{"class submit"},
		},
		{
			name:     "Completed",
			overlay:  &graph.Overlay{Current: 2, MaxVisited: 2, Completed: true},
			contains: []string{"class submit current;", "class step3 visited;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(steps(), tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q\ngot:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("expected output not to contain %q\ngot:\n%s", bad, got)
				}
			}
		})
	}
}

func TestOverlayFor(t *testing.T) {
	s := domain.NewState("room-create")
	s.CurrentIndex = 1
	s.MaxVisited = 2
	s.Validity[0] = true

	o := graph.OverlayFor(s)
	if o.Current != 1 || o.MaxVisited != 2 || !o.Validity[0] || o.Completed {
		t.Fatalf("unexpected overlay %+v", o)
	}
}
