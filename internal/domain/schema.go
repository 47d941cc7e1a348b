package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaKey uniquely identifies one registered contract. Version is an
// opaque string compared for exact equality only; there is no numeric
// ordering and no "latest" resolution.
type SchemaKey struct {
	Producer  string `json:"producer"`
	EventType string `json:"eventType"`
	Version   string `json:"version"`
}

// Validate checks that the key's identifiers are usable for storage.
func (k SchemaKey) Validate() error {
	if k.Producer == "" {
		return fmt.Errorf("schema key: producer must not be empty")
	}
	if k.EventType == "" {
		return fmt.Errorf("schema key: eventType must not be empty")
	}
	if k.Version == "" {
		return fmt.Errorf("schema key: version must not be empty")
	}
	return nil
}

// String renders the key the way it appears in logs and rejection reasons.
func (k SchemaKey) String() string {
	return fmt.Sprintf("%s:%s v%s", k.Producer, k.EventType, k.Version)
}

// DeadLetter is one archived rejection, as read back from the dead-letter
// sink for operator inspection.
type DeadLetter struct {
	ID       string          `json:"id"`
	Reason   string          `json:"reason"`
	Event    json.RawMessage `json:"event"`
	FailedAt time.Time       `json:"failed_at"`
}
