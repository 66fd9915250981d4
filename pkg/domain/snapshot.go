package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is the envelope written to a storage backend.
// Snapshots are overwritten wholesale; there is no versioning or merge.
type Snapshot struct {
	Key     string          `json:"key"`
	Data    json.RawMessage `json:"data"`
	SavedAt time.Time       `json:"saved_at"`
}
