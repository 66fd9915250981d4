/*
Package domain contains the core domain models of the wizard engine.

It defines the pieces a multi-step creation flow is made of: the static step
descriptors, the aggregate of per-step payloads, the runtime State of one flow
instance and the snapshots persisted between reloads. This package is kept
pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - StepDescriptor: Static description of one step (ID, display metadata, opaque render unit).
  - Aggregate: Canonical JSON payloads keyed by step slot ("step1".."stepN").
  - State: Runtime snapshot of a flow (current index, max visited, validity, payloads).
  - Pointer: The flow-level record persisted so a reload resumes at the right step.
  - Snapshot: A persisted, JSON-serializable copy of a payload or pointer.
*/
package domain
