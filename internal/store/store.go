package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"bank-transfers/internal/directory"
	"bank-transfers/internal/domain"
	"bank-transfers/internal/transfer"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var dbTracer = otel.Tracer("postgres")

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL persistence for clients, transfers and the audit
// event log. Outside Atomic every call runs on its own pooled connection.
type Store struct {
	db *pgxpool.Pool
	queries
}

func New(db *pgxpool.Pool) *Store { return &Store{db: db, queries: queries{db: db}} }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// InsertClient stores c together with its CLIENT_REGISTERED audit event.
func (s *Store) InsertClient(ctx context.Context, c domain.Client) error {
	return s.inTx(ctx, func(q queries) error { return q.InsertClient(ctx, c) })
}

// Atomic runs fn in a READ COMMITTED transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx transfer.Tx) error) error {
	return s.inTx(ctx, func(q queries) error { return fn(unitTx{q: q}) })
}

func (s *Store) inTx(ctx context.Context, fn func(q queries) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type unitTx struct {
	q queries
}

// LockAccounts locks the client rows in account number order so that two
// opposite transfers cannot deadlock each other.
func (t unitTx) LockAccounts(ctx context.Context, accountNumbers ...string) error {
	sorted := append([]string(nil), accountNumbers...)
	sort.Strings(sorted)
	_, err := t.q.db.Exec(ctx,
		`SELECT 1 FROM clients WHERE account_number = ANY($1) ORDER BY account_number FOR UPDATE`,
		sorted,
	)
	return err
}

func (t unitTx) Clients() transfer.Clients { return directory.New(t.q) }

func (t unitTx) Records() transfer.Records { return t.q }

type queries struct {
	db querier
}

func startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return dbTracer.Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.sql.table", table),
		),
	)
}

type clientRegisteredPayload struct {
	ClientID      string `json:"client_id"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
}

func (q queries) InsertClient(ctx context.Context, c domain.Client) error {
	ctx, span := startSpan(ctx, "INSERT", "clients")
	defer span.End()

	_, err := q.db.Exec(ctx,
		`INSERT INTO clients(id, name, account_number, balance) VALUES($1,$2,$3,$4)`,
		c.ID, c.Name, c.AccountNumber, c.Balance,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, c.AccountNumber)
		}
		span.RecordError(err)
		return err
	}

	return insertEvent(ctx, q.db, "CLIENT_REGISTERED", c.ID.String(), clientRegisteredPayload{
		ClientID:      c.ID.String(),
		Name:          c.Name,
		AccountNumber: c.AccountNumber,
		Balance:       c.Balance.StringFixed(2),
	})
}

func (q queries) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := startSpan(ctx, "SELECT", "clients")
	defer span.End()

	rows, err := q.db.Query(ctx, `SELECT id, name, account_number, balance FROM clients`)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.AccountNumber, &c.Balance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q queries) FindClientByAccount(ctx context.Context, accountNumber string) (domain.Client, error) {
	ctx, span := startSpan(ctx, "SELECT", "clients")
	defer span.End()

	var c domain.Client
	err := q.db.QueryRow(ctx,
		`SELECT id, name, account_number, balance FROM clients WHERE account_number=$1`,
		accountNumber,
	).Scan(&c.ID, &c.Name, &c.AccountNumber, &c.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, domain.ErrNotFound
		}
		span.RecordError(err)
		return domain.Client{}, err
	}
	return c, nil
}

func (q queries) UpdateClientBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	ctx, span := startSpan(ctx, "UPDATE", "clients")
	defer span.End()

	tag, err := q.db.Exec(ctx, `UPDATE clients SET balance=$2 WHERE id=$1`, id, balance)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type transferRecordedPayload struct {
	TransferID  int64  `json:"transfer_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Timestamp   string `json:"timestamp"`
	Succeeded   bool   `json:"succeeded"`
	Message     string `json:"message"`
}

// InsertTransfer stores rec, assigns rec.ID from the sequence and appends the
// TRANSFER_RECORDED audit event.
func (q queries) InsertTransfer(ctx context.Context, rec *domain.TransferRecord) error {
	ctx, span := startSpan(ctx, "INSERT", "transfers")
	defer span.End()

	err := q.db.QueryRow(ctx,
		`INSERT INTO transfers(origin_account, destination_account, amount, transferred_at, succeeded, message)
		 VALUES($1,$2,$3,$4,$5,$6)
		 RETURNING id`,
		rec.OriginAccount, rec.DestinationAccount, rec.Amount, rec.Timestamp, rec.Succeeded, rec.Message,
	).Scan(&rec.ID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	return insertEvent(ctx, q.db, "TRANSFER_RECORDED", strconv.FormatInt(rec.ID, 10), transferRecordedPayload{
		TransferID:  rec.ID,
		Origin:      rec.OriginAccount,
		Destination: rec.DestinationAccount,
		Amount:      rec.Amount.StringFixed(2),
		Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Succeeded:   rec.Succeeded,
		Message:     rec.Message,
	})
}

// TransfersByAccount returns records where accountNumber is origin or
// destination, newest first; id breaks timestamp ties.
func (q queries) TransfersByAccount(ctx context.Context, accountNumber string) ([]domain.TransferRecord, error) {
	ctx, span := startSpan(ctx, "SELECT", "transfers")
	defer span.End()

	rows, err := q.db.Query(ctx,
		`SELECT id, origin_account, destination_account, amount, transferred_at, succeeded, COALESCE(message, '')
		   FROM transfers
		  WHERE origin_account=$1 OR destination_account=$1
		  ORDER BY transferred_at DESC, id DESC`,
		accountNumber,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var r domain.TransferRecord
		if err := rows.Scan(&r.ID, &r.OriginAccount, &r.DestinationAccount, &r.Amount, &r.Timestamp, &r.Succeeded, &r.Message); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
