// Package directory owns client records: registration, lookup by account
// number and balance persistence. Every call goes to the repository; nothing
// is cached.
package directory

import (
	"context"
	"errors"
	"fmt"

	"bank-transfers/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the storage collaborator. FindClientByAccount and
// UpdateClientBalance return domain.ErrNotFound for a missing row;
// InsertClient returns domain.ErrDuplicateAccount when the account number is
// taken.
type Repository interface {
	InsertClient(ctx context.Context, c domain.Client) error
	ListClients(ctx context.Context) ([]domain.Client, error)
	FindClientByAccount(ctx context.Context, accountNumber string) (domain.Client, error)
	UpdateClientBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
}

type Directory struct {
	repo Repository
}

func New(repo Repository) *Directory { return &Directory{repo: repo} }

func (d *Directory) Register(ctx context.Context, name, accountNumber string, balance decimal.Decimal) (domain.Client, error) {
	req := domain.RegisterClientRequest{Name: name, AccountNumber: accountNumber, Balance: balance}
	if err := req.Validate(); err != nil {
		return domain.Client{}, err
	}

	c := domain.Client{
		ID:            uuid.New(),
		Name:          name,
		AccountNumber: accountNumber,
		Balance:       balance,
	}
	if err := d.repo.InsertClient(ctx, c); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (d *Directory) List(ctx context.Context) ([]domain.Client, error) {
	clients, err := d.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	return clients, nil
}

// FindByAccountNumber fails with an error matching domain.ErrNotFound when no
// client holds accountNumber.
func (d *Directory) FindByAccountNumber(ctx context.Context, accountNumber string) (domain.Client, error) {
	c, err := d.repo.FindClientByAccount(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Client{}, domain.ClientNotFound(accountNumber)
		}
		return domain.Client{}, fmt.Errorf("find client %s: %w", accountNumber, err)
	}
	return c, nil
}

// UpdateBalance persists c.Balance as given.
func (d *Directory) UpdateBalance(ctx context.Context, c domain.Client) error {
	if err := d.repo.UpdateClientBalance(ctx, c.ID, c.Balance); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ClientNotFound(c.AccountNumber)
		}
		return fmt.Errorf("update balance %s: %w", c.AccountNumber, err)
	}
	return nil
}
