package ingress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(n *Normalizer, raw []byte, hint Hint) []Record {
	var out []Record
	for rec := range n.Normalize(raw, hint) {
		out = append(out, rec)
	}
	return out
}

func testNormalizer() *Normalizer {
	return NewNormalizer("demo.producer", "demo.event")
}

func TestNormalize_SingleEnvelope(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{
		"source": "orders",
		"detail-type": "order.created",
		"detail": {"id": "o-1", "schemaVersion": "3"}
	}`), HintSingle)

	require.Len(t, recs, 1)
	require.NoError(t, recs[0].Err)
	ev := recs[0].Event
	assert.Equal(t, "orders", ev.Source)
	assert.Equal(t, "order.created", ev.DetailType)
	assert.Equal(t, "o-1", ev.Detail["id"])
	assert.Equal(t, "3", ev.SchemaVersion)
}

func TestNormalize_StringPayloadParsedAsJSON(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`"{\"detail\": {\"id\": \"o-1\"}}"`), HintSingle)

	require.Len(t, recs, 1)
	require.NoError(t, recs[0].Err)
	assert.Equal(t, "o-1", recs[0].Event.Detail["id"])
}

func TestNormalize_DefaultsApplied(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"detail": {}}`), HintSingle)

	require.Len(t, recs, 1)
	require.NoError(t, recs[0].Err)
	ev := recs[0].Event
	assert.Equal(t, "demo.producer", ev.Source)
	assert.Equal(t, "demo.event", ev.DetailType)
	assert.Equal(t, "1", ev.SchemaVersion)
}

func TestNormalize_TopLevelSchemaVersionFallback(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"detail": {}, "schemaVersion": "7"}`), HintSingle)

	require.Len(t, recs, 1)
	assert.Equal(t, "7", recs[0].Event.SchemaVersion)
}

func TestNormalize_MissingDetail(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"source": "orders"}`), HintSingle)

	require.Len(t, recs, 1)
	require.ErrorIs(t, recs[0].Err, ErrMalformedPayload)
	assert.Contains(t, recs[0].Err.Error(), "payload must contain 'detail'")
}

func TestNormalize_InvalidJSON(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{not json`), HintSingle)

	require.Len(t, recs, 1)
	assert.ErrorIs(t, recs[0].Err, ErrMalformedPayload)
}

func TestNormalize_BatchPreservesOrderDespiteFailure(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"Records": [
		{"body": "{\"source\": \"a\", \"detail\": {\"n\": 1}}"},
		{"body": "{\"source\": \"b\"}"},
		{"body": {"source": "c", "detail": {"n": 3}}}
	]}`), HintBatch)

	require.Len(t, recs, 3)
	require.NoError(t, recs[0].Err)
	assert.Equal(t, "a", recs[0].Event.Source)

	require.ErrorIs(t, recs[1].Err, ErrMalformedPayload)

	require.NoError(t, recs[2].Err)
	assert.Equal(t, "c", recs[2].Event.Source)
}

func TestNormalize_BatchMissingBodyIsMalformed(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"Records": [{}]}`), HintBatch)

	require.Len(t, recs, 1)
	assert.ErrorIs(t, recs[0].Err, ErrMalformedPayload)
}

func TestNormalize_BatchWithoutRecordsIsMalformed(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"detail": {}}`), HintBatch)

	require.Len(t, recs, 1)
	assert.ErrorIs(t, recs[0].Err, ErrMalformedPayload)
}

func TestNormalize_BatchIsLazy(t *testing.T) {
	n := testNormalizer()
	count := 0
	for range n.Normalize([]byte(`{"Records": [
		{"body": "{\"detail\": {}}"},
		{"body": "{\"detail\": {}}"},
		{"body": "{\"detail\": {}}"}
	]}`), HintBatch) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestNormalize_RawWrapsPayloadAsDetail(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`{"anything": true, "n": 2}`), HintRaw)

	require.Len(t, recs, 1)
	require.NoError(t, recs[0].Err)
	ev := recs[0].Event
	assert.Equal(t, "demo.producer", ev.Source)
	assert.Equal(t, "demo.event", ev.DetailType)
	assert.Equal(t, true, ev.Detail["anything"])
	assert.Equal(t, "1", ev.SchemaVersion)
}

func TestNormalize_RawNonObjectWrappedAsPayloadField(t *testing.T) {
	recs := collect(testNormalizer(), []byte(`plain text`), HintRaw)

	require.Len(t, recs, 1)
	require.NoError(t, recs[0].Err)
	assert.Equal(t, "plain text", recs[0].Event.Detail["payload"])
}

func TestDetectEnvelope(t *testing.T) {
	hint, _ := DetectEnvelope([]byte(`{"Records": []}`))
	assert.Equal(t, HintBatch, hint)

	hint, payload := DetectEnvelope([]byte(`{"body": "{\"detail\": {}}"}`))
	assert.Equal(t, HintSingle, hint)
	assert.JSONEq(t, `{"detail": {}}`, string(payload))

	hint, _ = DetectEnvelope([]byte(`{"detail": {}}`))
	assert.Equal(t, HintSingle, hint)

	// An envelope delivered as a top-level JSON string is unquoted, not
	// wrapped as a raw payload.
	hint, payload = DetectEnvelope([]byte(`"{\"detail\": {\"id\": \"o-1\"}}"`))
	assert.Equal(t, HintSingle, hint)
	assert.JSONEq(t, `{"detail": {"id": "o-1"}}`, string(payload))

	hint, _ = DetectEnvelope([]byte(`{"no": "envelope"}`))
	assert.Equal(t, HintRaw, hint)
}
