package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultSchemaVersion is assumed when an inbound envelope carries no
// schemaVersion field.
const DefaultSchemaVersion = "1"

// CanonicalEvent is the normalized form every inbound payload is reduced to
// before routing, regardless of the transport it arrived on.
type CanonicalEvent struct {
	Source        string         `json:"source"`
	DetailType    string         `json:"detail-type"`
	Detail        map[string]any `json:"detail"`
	SchemaVersion string         `json:"schemaVersion"`
}

// SchemaKey identifies the contract a canonical event claims to conform to.
func (e CanonicalEvent) SchemaKey() SchemaKey {
	return SchemaKey{
		Producer:  e.Source,
		EventType: e.DetailType,
		Version:   e.SchemaVersion,
	}
}

// DetailJSON returns the detail object marshaled as JSON. Detail maps come
// out of json.Unmarshal, so marshaling them back cannot fail; if it somehow
// does, the error is reported in-band rather than panicking mid-route.
func (e CanonicalEvent) DetailJSON() json.RawMessage {
	b, err := json.Marshal(e.Detail)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return b
}

// Routing statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// RoutingOutcome records the terminal routing decision for one canonical
// event. Exactly one of EventType (accepted) or Reason (rejected) is set.
type RoutingOutcome struct {
	Status    string `json:"status"`
	EventType string `json:"eventType,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Accepted reports whether the event was forwarded downstream.
func (o RoutingOutcome) Accepted() bool {
	return o.Status == StatusAccepted
}
