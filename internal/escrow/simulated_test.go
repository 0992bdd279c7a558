package escrow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSimulated_ConfirmsAfterPolls(t *testing.T) {
	s := NewSimulated(2)
	ctx := context.Background()

	receipt, err := s.Fund(ctx, FundRequest{TxHash: "h1", Amount: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("Fund() error = %v", err)
	}
	if receipt.Status != StatusPending {
		t.Errorf("initial status = %s, expected PENDING", receipt.Status)
	}

	if st, _ := s.Verify(ctx, "h1"); st != StatusPending {
		t.Errorf("first poll = %s, expected PENDING", st)
	}
	if st, _ := s.Verify(ctx, "h1"); st != StatusSuccess {
		t.Errorf("second poll = %s, expected SUCCESS", st)
	}
}

func TestSimulated_SameHashSettlesOnce(t *testing.T) {
	s := NewSimulated(1)
	ctx := context.Background()

	_, _ = s.Fund(ctx, FundRequest{TxHash: "dup"})
	_, _ = s.Release(ctx, ReleaseRequest{TxHash: "dup"})

	if s.Submissions() != 1 {
		t.Errorf("Submissions() = %d, expected 1", s.Submissions())
	}
}

func TestSimulated_UnknownHash(t *testing.T) {
	s := NewSimulated(1)
	if _, err := s.Verify(context.Background(), "nope"); err != ErrUnknownTransaction {
		t.Errorf("Verify() error = %v, expected ErrUnknownTransaction", err)
	}
}
