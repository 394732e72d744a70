package transfer

import (
	"fmt"

	"bank-transfers/internal/domain"

	"github.com/shopspring/decimal"
)

// Outcome classifies how a transfer attempt ended when no system fault occurred.
type Outcome uint8

const (
	Completed Outcome = iota
	LimitExceeded
	ClientNotFound
	InsufficientFunds
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case LimitExceeded:
		return "limit_exceeded"
	case ClientNotFound:
		return "client_not_found"
	case InsufficientFunds:
		return "insufficient_funds"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

const (
	msgCompleted         = "Transferência realizada com sucesso"
	msgInsufficientFunds = "Saldo insuficiente para a transferência"
	msgInternalFault     = "Erro interno ao processar a transferência"
)

func limitExceededMessage(limit decimal.Decimal) string {
	return "Valor da transferência excede o limite de R$ " + domain.FormatBRL(limit)
}

type result struct {
	outcome Outcome
	message string
}
