package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned by repositories when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrAmountTooLow        = errors.New("amount below minimum")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotCreditable       = errors.New("only deposits credit a wallet")
)

// TransitionError reports a status move the state machine does not allow.
type TransitionError struct {
	From TransactionStatus
	To   TransactionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
