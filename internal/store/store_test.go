package store_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"bank-transfers/internal/directory"
	"bank-transfers/internal/domain"
	"bank-transfers/internal/store"
	"bank-transfers/internal/transfer"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("BANK_DB_DSN"))
	if dsn == "" {
		t.Skip("missing BANK_DB_DSN env var")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.MaxConns = 20
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, store.Migrate(ctx, pool))
	return store.New(pool)
}

// acct returns an account number unique to this run so tests can share a DB.
func acct(prefix string) string { return prefix + "-" + uuid.NewString()[:13] }

func TestRegisterAndTransfer(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	dir := directory.New(st)
	eng := transfer.New(st, st)

	origin, err := dir.Register(ctx, "Alice", acct("A"), decimal.RequireFromString("6500.00"))
	require.NoError(t, err)
	dest, err := dir.Register(ctx, "Bob", acct("B"), decimal.RequireFromString("2500.00"))
	require.NoError(t, err)

	rec, err := eng.Transfer(ctx, domain.TransferRequest{
		OriginAccount:      origin.AccountNumber,
		DestinationAccount: dest.AccountNumber,
		Amount:             decimal.RequireFromString("5000.00"),
	})
	require.NoError(t, err)
	assert.True(t, rec.Succeeded)
	assert.NotZero(t, rec.ID)

	gotOrigin, err := dir.FindByAccountNumber(ctx, origin.AccountNumber)
	require.NoError(t, err)
	gotDest, err := dir.FindByAccountNumber(ctx, dest.AccountNumber)
	require.NoError(t, err)
	assert.True(t, gotOrigin.Balance.Equal(decimal.RequireFromString("1500")), gotOrigin.Balance.String())
	assert.True(t, gotDest.Balance.Equal(decimal.RequireFromString("7500")), gotDest.Balance.String())

	rejected, err := eng.Transfer(ctx, domain.TransferRequest{
		OriginAccount:      origin.AccountNumber,
		DestinationAccount: "does-not-exist-" + uuid.NewString(),
		Amount:             decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	assert.False(t, rejected.Succeeded)
	assert.Contains(t, rejected.Message, "Cliente não encontrado")

	hist, err := eng.History(ctx, origin.AccountNumber)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, rejected.ID, hist[0].ID)
	assert.Equal(t, rec.ID, hist[1].ID)
	assert.True(t, hist[1].Timestamp.Equal(rec.Timestamp))

	links, err := st.ChainLinks(ctx)
	require.NoError(t, err)
	_, err = store.VerifyChain(links)
	require.NoError(t, err)
}

func TestDuplicateAccountNumber(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	dir := directory.New(st)

	n := acct("dup")
	_, err := dir.Register(ctx, "First", n, decimal.Zero)
	require.NoError(t, err)
	_, err = dir.Register(ctx, "Second", n, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestFindMissingClient(t *testing.T) {
	st := testStore(t)
	_, err := directory.New(st).FindByAccountNumber(context.Background(), "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	st := testStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	dir := directory.New(st)
	eng := transfer.New(st, st)

	a, err := dir.Register(ctx, "A", acct("ca"), decimal.NewFromInt(1000))
	require.NoError(t, err)
	b, err := dir.Register(ctx, "B", acct("cb"), decimal.NewFromInt(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := eng.Transfer(ctx, domain.TransferRequest{
				OriginAccount: from.AccountNumber, DestinationAccount: to.AccountNumber, Amount: decimal.NewFromInt(10),
			})
			assert.NoError(t, err)
			assert.True(t, rec.Succeeded)
		}()
	}
	wg.Wait()

	gotA, err := dir.FindByAccountNumber(ctx, a.AccountNumber)
	require.NoError(t, err)
	gotB, err := dir.FindByAccountNumber(ctx, b.AccountNumber)
	require.NoError(t, err)
	assert.True(t, gotA.Balance.Equal(decimal.NewFromInt(1000)), gotA.Balance.String())
	assert.True(t, gotB.Balance.Equal(decimal.NewFromInt(1000)), gotB.Balance.String())
}
