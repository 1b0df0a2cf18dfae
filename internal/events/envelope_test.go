package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapDecodeRoundTrip(t *testing.T) {
	occurred := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	original := GoodsReceived{
		PurchaseOrderID:  42,
		ProductSKU:       "WIDGET-1",
		QuantityReceived: 25,
	}

	env, body, err := Wrap("procurement", original, occurred)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, GoodsReceivedEventType, env.EventType)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, "procurement", env.Producer)
	assert.Equal(t, occurred, env.OccurredAt)

	decodedEnv, event, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decodedEnv.EventID)

	received, ok := event.(*GoodsReceived)
	require.True(t, ok)
	assert.Equal(t, original, *received)
}

func TestWrapGeneratesUniqueEventIDs(t *testing.T) {
	event := UserCreated{UserID: 1, Username: "a", Email: "a@example.com", Role: "admin"}

	first, _, err := Wrap("identity", event, time.Now())
	require.NoError(t, err)
	second, _, err := Wrap("identity", event, time.Now())
	require.NoError(t, err)

	assert.NotEqual(t, first.EventID, second.EventID)
}

func TestDecodeUnknownEventType(t *testing.T) {
	body, err := json.Marshal(Envelope{
		EventID:       "x",
		EventType:     "SomethingElse",
		SchemaVersion: SchemaVersion,
		Payload:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	_, _, err = Decode(body)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDecodePoisonBody(t *testing.T) {
	_, _, err := Decode([]byte("not json at all"))
	assert.Error(t, err)
}

func TestDecodeToleratesUnknownPayloadFields(t *testing.T) {
	body := []byte(`{
		"event_id": "e-1",
		"event_type": "GoodsReceived",
		"schema_version": 1,
		"occurred_at": "2026-05-01T12:00:00Z",
		"producer": "procurement",
		"payload": {
			"purchase_order_id": 42,
			"product_sku": "WIDGET-1",
			"quantity_received": 25,
			"warehouse_zone": "A-3"
		}
	}`)

	_, event, err := Decode(body)
	require.NoError(t, err)
	received := event.(*GoodsReceived)
	assert.Equal(t, 42, received.PurchaseOrderID)
	assert.Equal(t, 25, received.QuantityReceived)
}

func TestNaturalKeys(t *testing.T) {
	assert.Equal(t, "po:42/sku:WIDGET-1",
		GoodsReceived{PurchaseOrderID: 42, ProductSKU: "WIDGET-1"}.NaturalKey())
	assert.Equal(t, "order:7",
		SalesOrderCreated{OrderID: 7}.NaturalKey())
	assert.Equal(t, "order:7/sku:WIDGET-1",
		StockDeducted{OrderID: 7, ProductSKU: "WIDGET-1", UnitCost: decimal.NewFromInt(4)}.NaturalKey())
	assert.Equal(t, "employee:11",
		EmployeeCreated{EmployeeID: 11}.NaturalKey())
	assert.Equal(t, "user:9",
		UserCreated{UserID: 9}.NaturalKey())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", OutcomeApplied.String())
	assert.Equal(t, "already_applied", OutcomeAlreadyApplied.String())
	assert.Equal(t, "flagged", OutcomeFlagged.String())
}
