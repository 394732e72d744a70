package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/jackc/pgx/v5"
)

// GenesisHash is the prev_hash of the first event_log row.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// eventChainLock is the advisory lock key serializing event_log appends.
const eventChainLock int64 = 0x62616e6b2d6c6f67

var ErrChainBroken = errors.New("event chain broken")

type JSONBytes = json.RawMessage

// jcsPayload returns the plain JSON bytes stored as jsonb and the RFC 8785
// canonical form that the hash covers.
func jcsPayload(v any) (payloadJSON JSONBytes, payloadCanonical string, err error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", err
	}
	return JSONBytes(raw), string(canon), nil
}

// ChainHash links one event to its predecessor.
func ChainHash(prevHash, eventType, payloadCanonical string) string {
	h := sha256.Sum256([]byte(prevHash + "|" + eventType + "|" + payloadCanonical))
	return hex.EncodeToString(h[:])
}

// insertEvent appends to event_log. It must run inside a transaction: the
// advisory lock is held until commit so seq order equals chain order.
func insertEvent(ctx context.Context, q querier, eventType, aggregateID string, payload any) error {
	if strings.TrimSpace(eventType) == "" || strings.TrimSpace(aggregateID) == "" {
		return fmt.Errorf("insert event: empty event type or aggregate id")
	}

	payloadJSON, payloadCanonical, err := jcsPayload(payload)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, eventChainLock); err != nil {
		return err
	}

	prev := GenesisHash
	err = q.QueryRow(ctx, `SELECT hash FROM event_log ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	_, err = q.Exec(ctx,
		`INSERT INTO event_log(
			event_id, event_type, aggregate_id, payload_json, payload_canonical, prev_hash, hash
		) VALUES($1,$2,$3,$4::jsonb,$5,$6,$7)`,
		uuid.New(), eventType, aggregateID, payloadJSON, payloadCanonical, prev,
		ChainHash(prev, eventType, payloadCanonical),
	)
	return err
}

// ChainLink is one exported event_log row.
type ChainLink struct {
	Seq              int64
	EventType        string
	PayloadCanonical string
	PrevHash         string
	Hash             string
}

// VerifyChain checks that links start at GenesisHash, that every prev_hash
// equals the previous hash and that every hash matches its content. It
// returns the head hash.
func VerifyChain(links []ChainLink) (string, error) {
	prev := GenesisHash
	for _, l := range links {
		if l.PrevHash != prev {
			return "", fmt.Errorf("%w: prev_hash mismatch at seq=%d", ErrChainBroken, l.Seq)
		}
		if want := ChainHash(l.PrevHash, l.EventType, l.PayloadCanonical); l.Hash != want {
			return "", fmt.Errorf("%w: hash mismatch at seq=%d", ErrChainBroken, l.Seq)
		}
		prev = l.Hash
	}
	return prev, nil
}

// ChainLinks exports the whole event_log in seq order.
func (s *Store) ChainLinks(ctx context.Context) ([]ChainLink, error) {
	rows, err := s.db.Query(ctx,
		`SELECT seq, event_type, payload_canonical, prev_hash, hash FROM event_log ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChainLink
	for rows.Next() {
		var l ChainLink
		if err := rows.Scan(&l.Seq, &l.EventType, &l.PayloadCanonical, &l.PrevHash, &l.Hash); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
