// Package tui renders wizard state for the terminal.
package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/netkrida/myhome-sub001/pkg/domain"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes markdown to w, styled when w is a terminal and raw otherwise.
func Print(w io.Writer, markdown string) error {
	if IsTerminal(w) {
		out, err := NewRenderer()(markdown)
		if err == nil {
			markdown = out
		}
	}
	_, err := io.WriteString(w, markdown)
	return err
}

// StateMarkdown describes one wizard instance as a markdown document.
func StateMarkdown(title string, steps []domain.StepDescriptor, state *domain.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Status:** %s  \n", state.Status)
	if len(steps) > 0 && state.CurrentIndex < len(steps) {
		fmt.Fprintf(&b, "**Current step:** %d of %d (%s)  \n", state.CurrentIndex+1, len(steps), steps[state.CurrentIndex].Title)
	} else {
		fmt.Fprintf(&b, "**Current step:** %d  \n", state.CurrentIndex+1)
	}
	fmt.Fprintf(&b, "**Furthest step:** %d\n\n", state.MaxVisited+1)

	b.WriteString("| # | Step | Valid | Saved |\n|---|------|-------|-------|\n")
	for i, step := range steps {
		saved := "-"
		slot := domain.SlotFor(i)
		if state.Payloads.Has(slot) {
			saved = "yes"
		} else if state.Drafts.Has(slot) {
			saved = "draft"
		}
		valid := "no"
		if state.Validity[i] {
			valid = "yes"
		}
		marker := ""
		if i == state.CurrentIndex {
			marker = " ←"
		}
		fmt.Fprintf(&b, "| %d | %s%s | %s | %s |\n", i+1, step.Title, marker, valid, saved)
	}

	for _, slot := range state.Payloads.Slots() {
		fmt.Fprintf(&b, "\n## %s\n\n```json\n%s\n```\n", slot, indent(state.Payloads[slot]))
	}
	for _, slot := range state.Drafts.Slots() {
		fmt.Fprintf(&b, "\n## %s (draft)\n\n```json\n%s\n```\n", slot, indent(state.Drafts[slot]))
	}
	return b.String()
}

func indent(raw json.RawMessage) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
