package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bank-transfers/internal/domain"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransferEvent(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	ev := NewTransferEvent(domain.TransferRecord{
		ID:                 42,
		OriginAccount:      "1001",
		DestinationAccount: "2002",
		Amount:             decimal.RequireFromString("5000"),
		Timestamp:          at,
		Succeeded:          true,
		Message:            "Transferência realizada com sucesso",
	})

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 42,
		"originAccount": "1001",
		"destinationAccount": "2002",
		"amount": "5000.00",
		"timestamp": "2024-03-09T10:30:00Z",
		"succeeded": true,
		"message": "Transferência realizada com sucesso"
	}`, string(data))
}

func TestPublishRoundTrip(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL, nats.NoReconnect())
	if err != nil {
		t.Skip("NATS server not available")
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("bank.test.transfers")
	require.NoError(t, err)

	pub := &NATSPublisher{conn: nc, subject: "bank.test.transfers"}
	require.NoError(t, pub.PublishTransfer(context.Background(), domain.TransferRecord{ID: 7, Amount: decimal.NewFromInt(1)}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var ev TransferEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, int64(7), ev.ID)
}
