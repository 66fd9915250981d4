package tui

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/netkrida/myhome-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMarkdown(t *testing.T) {
	steps := []domain.StepDescriptor{
		{ID: "basics", Title: "Basics"},
		{ID: "room", Title: "Room"},
		{ID: "price", Title: "Price"},
	}
	state := domain.NewState("room-create")
	state.CurrentIndex = 1
	state.MaxVisited = 1
	state.Validity[0] = true
	state.Payloads[domain.SlotFor(0)] = json.RawMessage(`{"name":"A1"}`)
	state.Drafts[domain.SlotFor(1)] = json.RawMessage(`{"floor":2}`)

	md := StateMarkdown("sess-1 / room-create", steps, state)

	assert.Contains(t, md, "# sess-1 / room-create")
	assert.Contains(t, md, "**Current step:** 2 of 3 (Room)")
	assert.Contains(t, md, "| 1 | Basics | yes | yes |")
	assert.Contains(t, md, "| 2 | Room ← | no | draft |")
	assert.Contains(t, md, "| 3 | Price | no | - |")
	assert.Contains(t, md, "\"name\": \"A1\"")
	assert.Contains(t, md, "## step2 (draft)")
}

func TestPrint_NonTerminalWritesRawMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "# Title\n"))
	assert.Equal(t, "# Title\n", buf.String())
	assert.False(t, IsTerminal(&buf))
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer()("**bold**")
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
}
