// Package notify publishes committed transfer records to NATS for downstream
// consumers such as statements or fraud monitoring.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"bank-transfers/internal/domain"
	"bank-transfers/internal/telemetry"

	"github.com/nats-io/nats.go"
)

// TransferEvent is the message body published for every recorded transfer.
type TransferEvent struct {
	ID                 int64     `json:"id"`
	OriginAccount      string    `json:"originAccount"`
	DestinationAccount string    `json:"destinationAccount"`
	Amount             string    `json:"amount"`
	Timestamp          time.Time `json:"timestamp"`
	Succeeded          bool      `json:"succeeded"`
	Message            string    `json:"message"`
}

func NewTransferEvent(rec domain.TransferRecord) TransferEvent {
	return TransferEvent{
		ID:                 rec.ID,
		OriginAccount:      rec.OriginAccount,
		DestinationAccount: rec.DestinationAccount,
		Amount:             rec.Amount.StringFixed(2),
		Timestamp:          rec.Timestamp,
		Succeeded:          rec.Succeeded,
		Message:            rec.Message,
	}
}

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials url with bounded reconnects.
func Connect(url, subject string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("bank-transfers"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishTransfer(_ context.Context, rec domain.TransferRecord) error {
	data, err := json.Marshal(NewTransferEvent(rec))
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		telemetry.NATSPublishedTotal.WithLabelValues(p.subject, "error").Inc()
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	telemetry.NATSPublishedTotal.WithLabelValues(p.subject, "ok").Inc()
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
}
