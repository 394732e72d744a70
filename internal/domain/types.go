package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is an account holder. AccountNumber is unique and immutable.
type Client struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

// TransferRecord is the durable outcome of one transfer attempt. Exactly one is
// persisted per attempt, successful or not, and it is never mutated afterwards.
type TransferRecord struct {
	ID                 int64           `json:"id"`
	OriginAccount      string          `json:"originAccount"`
	DestinationAccount string          `json:"destinationAccount"`
	Amount             decimal.Decimal `json:"amount"`
	Timestamp          time.Time       `json:"timestamp"`
	Succeeded          bool            `json:"succeeded"`
	Message            string          `json:"message"`
}

type RegisterClientRequest struct {
	Name          string          `json:"name"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

// Validate rejects structurally invalid registrations. Negative opening
// balances are refused.
func (r RegisterClientRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return Invalid("name is required")
	}
	if strings.TrimSpace(r.AccountNumber) == "" {
		return Invalid("accountNumber is required")
	}
	if r.Balance.IsNegative() {
		return Invalid("balance must not be negative")
	}
	if !WholeCents(r.Balance) {
		return Invalid("balance must not have more than two decimal places")
	}
	return nil
}

type TransferRequest struct {
	OriginAccount      string          `json:"originAccount"`
	DestinationAccount string          `json:"destinationAccount"`
	Amount             decimal.Decimal `json:"amount"`
}

// Validate rejects requests the engine must never execute: missing accounts,
// a transfer to the same account, and amounts that are not a positive number
// of cents.
func (r TransferRequest) Validate() error {
	origin := strings.TrimSpace(r.OriginAccount)
	dest := strings.TrimSpace(r.DestinationAccount)
	switch {
	case origin == "":
		return Invalid("originAccount is required")
	case dest == "":
		return Invalid("destinationAccount is required")
	case origin == dest:
		return Invalid("originAccount and destinationAccount must differ")
	case !r.Amount.IsPositive():
		return Invalid("amount must be greater than zero")
	case !WholeCents(r.Amount):
		return Invalid("amount must not have more than two decimal places")
	}
	return nil
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
