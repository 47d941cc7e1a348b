// Package ingress reduces heterogeneous transport payloads to canonical
// events. It understands three envelope shapes: a single event envelope, a
// queue-delivered batch of records, and a bare payload with no envelope at
// all.
package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/tidwall/gjson"

	"github.com/parcelworks/eventgate/internal/domain"
)

// ErrMalformedPayload marks input that cannot be parsed or lacks the minimal
// envelope shape. It is always surfaced per record, never swallowed.
var ErrMalformedPayload = errors.New("malformed payload")

// Hint tells the normalizer which transport envelope to expect.
type Hint int

const (
	// HintSingle is one event envelope, optionally delivered as a JSON
	// string that itself encodes the envelope.
	HintSingle Hint = iota
	// HintBatch is a queue delivery: {"Records": [{"body": ...}, ...]},
	// each body subject to the single-envelope rules.
	HintBatch
	// HintRaw is a payload with no recognizable envelope; the whole input
	// becomes the detail of one synthesized event.
	HintRaw
)

// Record is one normalization result. Either Event is populated or Err
// explains why this record could not be normalized; a failed record never
// aborts the rest of its batch. Raw keeps the original bytes for
// dead-lettering.
type Record struct {
	Event domain.CanonicalEvent
	Raw   json.RawMessage
	Err   error
}

// Normalizer converts inbound payloads to canonical events, filling in the
// configured placeholder source and detail-type when the envelope omits
// them.
type Normalizer struct {
	defaultSource     string
	defaultDetailType string
}

func NewNormalizer(defaultSource, defaultDetailType string) *Normalizer {
	return &Normalizer{
		defaultSource:     defaultSource,
		defaultDetailType: defaultDetailType,
	}
}

// Normalize produces a lazy, order-preserving sequence of records. Each
// record is normalized on demand as the consumer advances; nothing is
// buffered beyond the record in flight.
func (n *Normalizer) Normalize(raw []byte, hint Hint) iter.Seq[Record] {
	switch hint {
	case HintBatch:
		return n.normalizeBatch(raw)
	case HintRaw:
		return func(yield func(Record) bool) {
			yield(Record{Event: n.normalizeRaw(raw), Raw: raw})
		}
	default:
		return func(yield func(Record) bool) {
			ev, err := n.normalizeEnvelope(raw)
			yield(Record{Event: ev, Raw: raw, Err: err})
		}
	}
}

func (n *Normalizer) normalizeBatch(raw []byte) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		if !gjson.ValidBytes(raw) {
			yield(Record{Raw: raw, Err: fmt.Errorf("%w: batch is not valid JSON", ErrMalformedPayload)})
			return
		}
		records := gjson.GetBytes(raw, "Records")
		if !records.IsArray() {
			yield(Record{Raw: raw, Err: fmt.Errorf("%w: batch must contain a 'Records' array", ErrMalformedPayload)})
			return
		}
		for _, rec := range records.Array() {
			body := rec.Get("body")
			var bodyRaw []byte
			switch {
			case !body.Exists():
				bodyRaw = []byte("{}")
			case body.Type == gjson.String:
				bodyRaw = []byte(body.String())
			default:
				bodyRaw = []byte(body.Raw)
			}
			ev, err := n.normalizeEnvelope(bodyRaw)
			if !yield(Record{Event: ev, Raw: bodyRaw, Err: err}) {
				return
			}
		}
	}
}

// normalizeEnvelope applies the single-envelope rules: string payloads are
// parsed as JSON first, 'detail' is mandatory, source and detail-type fall
// back to the configured placeholders, and schemaVersion defaults to "1".
func (n *Normalizer) normalizeEnvelope(raw []byte) (domain.CanonicalEvent, error) {
	if !gjson.ValidBytes(raw) {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: payload is not valid JSON", ErrMalformedPayload)
	}

	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		// Transport delivered the envelope as an embedded JSON string.
		return n.normalizeEnvelope([]byte(v.String()))
	}
	if !v.IsObject() {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: payload must be a JSON object", ErrMalformedPayload)
	}

	detail := v.Get("detail")
	if !detail.Exists() {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: payload must contain 'detail'", ErrMalformedPayload)
	}
	if !detail.IsObject() {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: 'detail' must be an object", ErrMalformedPayload)
	}

	var detailMap map[string]any
	if err := json.Unmarshal([]byte(detail.Raw), &detailMap); err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("%w: decoding 'detail': %v", ErrMalformedPayload, err)
	}

	ev := domain.CanonicalEvent{
		Source:        n.defaultSource,
		DetailType:    n.defaultDetailType,
		Detail:        detailMap,
		SchemaVersion: domain.DefaultSchemaVersion,
	}
	if src := v.Get("source"); src.Exists() && src.String() != "" {
		ev.Source = src.String()
	}
	if dt := v.Get("detail-type"); dt.Exists() && dt.String() != "" {
		ev.DetailType = dt.String()
	}
	// Producers conventionally carry schemaVersion inside detail; a
	// top-level field is honored as a fallback.
	if sv := detail.Get("schemaVersion"); sv.Exists() {
		ev.SchemaVersion = sv.String()
	} else if sv := v.Get("schemaVersion"); sv.Exists() {
		ev.SchemaVersion = sv.String()
	}
	return ev, nil
}

// DetectEnvelope picks a transport hint for payloads whose origin is
// unknown: a JSON string is an embedded envelope (returned unquoted), a
// Records array is a batch, a body field carries the real envelope (returned
// unwrapped), a detail field is a single envelope, and anything else is raw.
func DetectEnvelope(raw []byte) (Hint, []byte) {
	if !gjson.ValidBytes(raw) {
		return HintSingle, raw
	}
	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		return HintSingle, []byte(v.String())
	}
	if v.Get("Records").IsArray() {
		return HintBatch, raw
	}
	if body := v.Get("body"); body.Exists() {
		if body.Type == gjson.String {
			return HintSingle, []byte(body.String())
		}
		return HintSingle, []byte(body.Raw)
	}
	if v.Get("detail").Exists() {
		return HintSingle, raw
	}
	return HintRaw, raw
}

// normalizeRaw wraps an unenveloped payload verbatim as the detail of one
// synthesized event under the placeholder source and detail-type.
func (n *Normalizer) normalizeRaw(raw []byte) domain.CanonicalEvent {
	var detail map[string]any
	if gjson.ValidBytes(raw) {
		v := gjson.ParseBytes(raw)
		if v.IsObject() {
			_ = json.Unmarshal(raw, &detail)
		}
	}
	if detail == nil {
		detail = map[string]any{"payload": string(raw)}
	}

	ev := domain.CanonicalEvent{
		Source:        n.defaultSource,
		DetailType:    n.defaultDetailType,
		Detail:        detail,
		SchemaVersion: domain.DefaultSchemaVersion,
	}
	if sv, ok := detail["schemaVersion"].(string); ok {
		ev.SchemaVersion = sv
	}
	return ev
}
