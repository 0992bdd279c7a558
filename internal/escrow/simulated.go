package escrow

import (
	"context"
	"sync"
)

// Simulated is an in-process escrow used for local development and sandboxes.
// Every submission confirms after confirmAfter verify calls.
type Simulated struct {
	mu           sync.Mutex
	confirmAfter int
	txs          map[string]*simulatedTx
}

type simulatedTx struct {
	polls  int
	status Status
}

func NewSimulated(confirmAfter int) *Simulated {
	return &Simulated{
		confirmAfter: confirmAfter,
		txs:          make(map[string]*simulatedTx),
	}
}

func (s *Simulated) Fund(ctx context.Context, req FundRequest) (*Receipt, error) {
	return s.submit(req.TxHash), nil
}

func (s *Simulated) Release(ctx context.Context, req ReleaseRequest) (*Receipt, error) {
	return s.submit(req.TxHash), nil
}

func (s *Simulated) submit(txHash string) *Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txHash]
	if !ok {
		tx = &simulatedTx{status: StatusPending}
		s.txs[txHash] = tx
	}
	return &Receipt{TxHash: txHash, Status: tx.status}
}

func (s *Simulated) Verify(ctx context.Context, txHash string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[txHash]
	if !ok {
		return "", ErrUnknownTransaction
	}
	if tx.status == StatusPending {
		tx.polls++
		if tx.polls >= s.confirmAfter {
			tx.status = StatusSuccess
		}
	}
	return tx.status, nil
}

// Submissions returns how many distinct transactions were submitted.
func (s *Simulated) Submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}
