package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/netkrida/myhome-sub001/internal/presentation/graph"
	"github.com/netkrida/myhome-sub001/internal/presentation/tui"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/netkrida/myhome-sub001/pkg/flows"
)

// ListSessions prints every wizard found in session storage.
func ListSessions(ctx context.Context, app *App, w io.Writer) error {
	infos := app.Sessions.List(ctx)
	if len(infos) == 0 {
		fmt.Fprintln(w, "No wizards in progress.")
		return nil
	}

	fmt.Fprintln(w, "Wizards in progress:")
	for _, info := range infos {
		fmt.Fprintf(w, "- %s %s\n", info.Session, info.Flow)
	}
	return nil
}

// InspectOptions selects the output of InspectSession.
type InspectOptions struct {
	JSON  bool // Print the state verbatim
	Graph bool // Append a Mermaid flowchart with the state overlay
}

// InspectSession renders the stored state of one wizard.
func InspectSession(ctx context.Context, app *App, sessionID, flow string, opts InspectOptions, w io.Writer) error {
	def, err := app.Sessions.Flows().Get(flow)
	if err != nil {
		return err
	}
	state, err := app.Sessions.Inspect(ctx, sessionID, flow)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return fmt.Errorf("no saved progress for %s/%s", sessionID, flow)
		}
		return err
	}

	if opts.JSON {
		return writeJSON(w, state)
	}
	md := tui.StateMarkdown(sessionID+" / "+flow, def.Steps, state)
	if opts.Graph {
		md += "\n```mermaid\n" + graph.GenerateMermaid(def.Steps, graph.OverlayFor(state)) + "```\n"
	}
	return tui.Print(w, md)
}

// RemoveSessions discards the saved progress of every flow for each session.
func RemoveSessions(ctx context.Context, app *App, sessionIDs []string, w io.Writer) error {
	var errs []error
	for _, sid := range sessionIDs {
		failed := len(errs)
		for _, flow := range app.Sessions.Flows().Names() {
			if err := app.Sessions.Discard(ctx, sid, flow); err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", sid, flow, err))
			}
		}
		if len(errs) == failed {
			printSystemMessage(w, "Removed session '%s'", sid)
		}
	}
	return errors.Join(errs...)
}

// ListFlows prints the registered flows and their steps.
func ListFlows(registry *flows.Registry, withGraph bool, w io.Writer) error {
	var md strings.Builder
	for _, name := range registry.Names() {
		def, err := registry.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&md, "# %s\n\nSubmits to `%s`.\n\n", def.Name, def.Endpoint)
		for i, step := range def.Steps {
			fmt.Fprintf(&md, "%d. **%s** (`%s`, persist %s)\n", i+1, step.Title, step.ID, step.Persist)
		}
		if withGraph {
			md.WriteString("\n```mermaid\n" + graph.GenerateMermaid(def.Steps, nil) + "```\n")
		}
		md.WriteString("\n")
	}
	return tui.Print(w, md.String())
}
