package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrDuplicateAccount = errors.New("account number already registered")
)

// Invalid wraps ErrValidation with a field-level reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// ClientNotFound is the lookup failure reported for an unknown account number.
func ClientNotFound(accountNumber string) error {
	return fmt.Errorf("%w: Cliente não encontrado para a conta: %s", ErrNotFound, accountNumber)
}

// Message returns the user-facing part of err, dropping the sentinel prefix
// added by Invalid and ClientNotFound.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrNotFound, ErrValidation} {
		if errors.Is(err, sentinel) {
			msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}
