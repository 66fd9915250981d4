/*
Package persistence is the only component that touches snapshot storage.

An Adapter wraps two backends, a session-scoped one (default) and a durable
local one, and exposes fail-soft Save, Load and Clear operations: storage
failures are logged and degrade to "no persisted data", they never interrupt
the wizard.

# Key Schema

	"<flow>-step-<n>"        payload of step n (1-based)
	"<flow>-step-<n>-draft"  in-progress invalid edits of step n
	"<flow>"                 flow pointer (active step index)
*/
package persistence
