// Package schema holds the contract registry and the runtime instance
// validator: the pieces that decide whether an inbound event conforms to a
// registered contract.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// FieldSpec declares the expected primitive kind of one detail field. Only
// "string", "number" and "boolean" are enforced at runtime; any other
// declared type is stored but never checked.
type FieldSpec struct {
	Type string `json:"type"`
}

// Document is a minimal JSON-Schema-like contract describing the expected
// shape of an event's detail payload.
type Document struct {
	Type       string               `json:"type"`
	Properties map[string]FieldSpec `json:"properties"`
	Required   []string             `json:"required"`
}

// ShapeError reports a registration-time violation of the document shape
// invariants. Documents with a ShapeError are never written to the store.
type ShapeError struct {
	Detail string
}

func (e *ShapeError) Error() string {
	return e.Detail
}

func shapeErrorf(format string, args ...any) error {
	return &ShapeError{Detail: fmt.Sprintf(format, args...)}
}

// ParseDocument decodes raw schema JSON into a Document, enforcing the shape
// invariants: top-level type must be the literal "object", properties must
// be an object, and required (when present) must be an array. Violations are
// returned as *ShapeError.
func ParseDocument(raw []byte) (Document, error) {
	if !gjson.ValidBytes(raw) {
		return Document{}, shapeErrorf("schemaJson must be valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Document{}, shapeErrorf("schemaJson must be an object")
	}
	if root.Get("type").String() != "object" {
		return Document{}, shapeErrorf("schemaJson.type must be 'object'")
	}
	props := root.Get("properties")
	if !props.Exists() || !props.IsObject() {
		return Document{}, shapeErrorf("schemaJson.properties must be an object")
	}
	if req := root.Get("required"); req.Exists() && !req.IsArray() {
		return Document{}, shapeErrorf("schemaJson.required must be an array")
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, shapeErrorf("schemaJson does not decode: %v", err)
	}
	if doc.Required == nil {
		doc.Required = []string{}
	}
	return doc, nil
}
