package services

import (
	"errors"
	"fmt"

	"github.com/huangang/fundgate/internal/models"
	"gorm.io/gorm"
)

// Error kinds surfaced by the state machine. Callers match with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition failed")
	ErrDuplicate    = errors.New("duplicate")
	ErrConflict     = errors.New("concurrent modification")
	ErrSettlement   = errors.New("settlement failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")

	ErrDuplicateVote = fmt.Errorf("%w: vote already cast with this value", ErrDuplicate)
)

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func preconditionErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func conflictErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func forbiddenErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// notFound translates gorm.ErrRecordNotFound, passing other errors through.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// SettlementError reports a failed or unconfirmed escrow call.
// Entry is the ledger row recording the attempt.
type SettlementError struct {
	Entry  *models.Transaction
	Reason string
}

func (e *SettlementError) Error() string {
	if e.Entry != nil {
		return fmt.Sprintf("settlement failed: %s (tx %s)", e.Reason, e.Entry.TransactionHash)
	}
	return "settlement failed: " + e.Reason
}

func (e *SettlementError) Unwrap() error { return ErrSettlement }
