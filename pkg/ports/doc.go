/*
Package ports defines the driven ports (interfaces) of the wizard engine.

These interfaces decouple the engine from external implementations, allowing
the same wizard to persist to memory, files, SQLite or Redis and to submit to
any backend API.

# Key Interfaces

  - Backend: Raw key/value storage behind the persistence adapter.
  - Submitter: The backend API collaborator that receives the final aggregate.
  - DistributedLocker: Serialises access to one wizard session across replicas.
*/
package ports
