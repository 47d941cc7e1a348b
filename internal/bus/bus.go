// Package bus provides the two downstream capabilities the routing engine
// publishes into: the accepted-events channel and the dead-letter sink.
package bus

import (
	"context"
	"encoding/json"

	"github.com/parcelworks/eventgate/internal/domain"
)

// Publisher is the accepted-events channel. Publish is fire-and-forget: a
// nil return means the bus took the event, and no acknowledgement beyond
// that is awaited.
type Publisher interface {
	Publish(ctx context.Context, ev domain.CanonicalEvent) error
}

// DeadLetterSink archives rejected events together with the rejection
// reason. Sends are best-effort from the router's perspective.
type DeadLetterSink interface {
	Send(ctx context.Context, reason string, original json.RawMessage) error
}
