// Package graph draws wizard flows as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/netkrida/myhome-sub001/pkg/domain"
)

// Overlay contains the state of one wizard instance to visualize on the graph.
type Overlay struct {
	Current    int
	MaxVisited int
	Validity   map[int]bool
	Completed  bool
}

// OverlayFor builds an overlay from a wizard state.
func OverlayFor(s *domain.State) *Overlay {
	return &Overlay{
		Current:    s.CurrentIndex,
		MaxVisited: s.MaxVisited,
		Validity:   s.Validity,
		Completed:  s.Status == domain.StatusCompleted,
	}
}

// GenerateMermaid produces a Mermaid flowchart of the steps.
// Forward edges are gated on validity, back edges are dotted, and the last
// step leads to a submit node. Steps persisted with a draft are drawn as
// subroutines, steps persisted always as parallelograms.
func GenerateMermaid(steps []domain.StepDescriptor, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for i, step := range steps {
		opener, closer := "[", "]"
		switch step.Persist {
		case domain.PersistWithDraft:
			opener, closer = "[[", "]]"
		case domain.PersistAlways:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%d. %s\"%s\n", nodeID(i), opener, i+1, escape(step.Title), closer)
	}
	sb.WriteString("    submit((\"submit\"))\n")

	for i := range steps {
		to := "submit"
		if i < len(steps)-1 {
			to = nodeID(i + 1)
		}
		fmt.Fprintf(&sb, "    %s -- \"valid\" --> %s\n", nodeID(i), to)
		if i > 0 {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", nodeID(i), nodeID(i-1))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef valid fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for i := range steps {
			if i > overlay.MaxVisited || (i == overlay.Current && !overlay.Completed) {
				continue
			}
			class := "visited"
			if overlay.Validity[i] {
				class = "valid"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", nodeID(i), class)
		}
		if overlay.Completed {
			sb.WriteString("    class submit current;\n")
		} else if overlay.Current >= 0 && overlay.Current < len(steps) {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.Current))
		}
	}

	return sb.String()
}

func nodeID(i int) string {
	return fmt.Sprintf("step%d", i+1)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
