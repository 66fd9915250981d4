package persistence

import "strconv"

// StepKey returns the key of the 1-based step n of flow.
func StepKey(flow string, n int) string {
	return flow + "-step-" + strconv.Itoa(n)
}

// DraftKey returns the key holding in-progress edits of step n.
func DraftKey(flow string, n int) string {
	return StepKey(flow, n) + "-draft"
}

// PointerKey returns the key of the flow-level current-step pointer.
func PointerKey(flow string) string {
	return flow
}

// FlowKeys returns every key a flow of n steps may write.
func FlowKeys(flow string, steps int) []string {
	keys := make([]string, 0, 2*steps+1)
	for i := 1; i <= steps; i++ {
		keys = append(keys, StepKey(flow, i), DraftKey(flow, i))
	}
	return append(keys, PointerKey(flow))
}
