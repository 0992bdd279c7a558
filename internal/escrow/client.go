// Package escrow defines the external settlement capability used by the
// escrow orchestrator and its concrete drivers.
package escrow

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Status is the settlement state reported by the external system
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// ErrUnknownTransaction is returned by Verify when the hash was never submitted.
var ErrUnknownTransaction = errors.New("escrow: unknown transaction")

// FundRequest locks amount for subjectID towards the beneficiary address.
type FundRequest struct {
	SubjectID string
	Amount    decimal.Decimal
	Address   string
	TxHash    string
}

// ReleaseRequest pays out a locked milestone.
type ReleaseRequest struct {
	SubjectID   string
	MilestoneID string
	Amount      decimal.Decimal
	Address     string
	TxHash      string
}

// Receipt is the immediate answer to a fund/release submission.
type Receipt struct {
	TxHash string `json:"tx_hash"`
	Status Status `json:"status"`
}

// Client is the on-chain escrow service. Implementations must treat TxHash as
// an idempotency key: submitting the same hash twice settles at most once.
type Client interface {
	Fund(ctx context.Context, req FundRequest) (*Receipt, error)
	Release(ctx context.Context, req ReleaseRequest) (*Receipt, error)
	Verify(ctx context.Context, txHash string) (Status, error)
}
