package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/escrow"
	"github.com/huangang/fundgate/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testVotingConfig() *config.VotingConfig {
	return &config.VotingConfig{
		ApproveRatio:              0.6,
		RejectRatio:               0.4,
		DefaultThreshold:          100,
		DefaultVoteDays:           14,
		VoteConflictRetries:       10,
		EvaluationConflictRetries: 5,
		DeadlineSweepCron:         "@every 1m",
		ExpirePolicy:              ExpirePolicyHold,
		LocalWorkers:              2,
	}
}

func testEscrowConfig() *config.EscrowConfig {
	return &config.EscrowConfig{
		Driver:          "simulated",
		PlatformAddress: "0xplatform",
		WalletProvider:  "metamask",
		MaxRetries:      3,
		Backoff:         time.Millisecond,
		ConfirmTimeout:  time.Second,
		RequestTimeout:  time.Second,
	}
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{Username: fmt.Sprintf("user%d", userSeq), Role: role, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func linkWallet(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	_, err := NewWalletService(db).LinkWallet(context.Background(), userID,
		&LinkWalletRequest{Provider: "metamask", Address: fmt.Sprintf("0xuser%d", userID)})
	require.NoError(t, err)
}

// createProject inserts a crowdfund project directly in status with its control record
func createProject(t *testing.T, db *gorm.DB, ownerID uint, status models.ProjectStatus, threshold int) *models.Project {
	t.Helper()
	p := &models.Project{
		OwnerID:     ownerID,
		Title:       "solar kiosk",
		Type:        models.ProjectTypeCrowdfund,
		Status:      status,
		FundingGoal: decimal.NewFromInt(1000),
		Voters:      models.VoterList{},
	}
	require.NoError(t, db.Create(p).Error)
	cf := &models.Crowdfund{
		ProjectID:      p.ID,
		ThresholdVotes: threshold,
		VoteDeadline:   time.Now().Add(24 * time.Hour),
		Status:         models.CrowdfundStatusPending,
	}
	require.NoError(t, db.Create(cf).Error)
	p.Crowdfund = cf
	return p
}

func createMilestone(t *testing.T, db *gorm.DB, ownerType string, ownerID uint, status models.MilestoneStatus) *models.Milestone {
	t.Helper()
	m := &models.Milestone{
		OwnerType:  ownerType,
		OwnerID:    ownerID,
		Position:   1,
		Title:      "prototype",
		Amount:     decimal.NewFromInt(250),
		Status:     status,
		ProofLinks: models.StringList{},
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func reloadProject(t *testing.T, db *gorm.DB, id uint) *models.Project {
	t.Helper()
	var p models.Project
	require.NoError(t, db.Preload("Crowdfund").First(&p, id).Error)
	return &p
}

// fakeEscrow is a scriptable escrow.Client. Verify answers come from verify
// per hash, falling back to defaultStatus for submitted hashes.
type fakeEscrow struct {
	mu            sync.Mutex
	fundErr       error
	receiptStatus escrow.Status
	defaultStatus escrow.Status
	verify        map[string]escrow.Status
	verifyErr     error
	funded        []escrow.FundRequest
	released      []escrow.ReleaseRequest
	verifyCalls   int
}

func newFakeEscrow() *fakeEscrow {
	return &fakeEscrow{
		receiptStatus: escrow.StatusPending,
		defaultStatus: escrow.StatusSuccess,
		verify:        make(map[string]escrow.Status),
	}
}

func (f *fakeEscrow) Fund(ctx context.Context, req escrow.FundRequest) (*escrow.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fundErr != nil {
		return nil, f.fundErr
	}
	f.funded = append(f.funded, req)
	return &escrow.Receipt{TxHash: req.TxHash, Status: f.receiptStatus}, nil
}

func (f *fakeEscrow) Release(ctx context.Context, req escrow.ReleaseRequest) (*escrow.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fundErr != nil {
		return nil, f.fundErr
	}
	f.released = append(f.released, req)
	return &escrow.Receipt{TxHash: req.TxHash, Status: f.receiptStatus}, nil
}

func (f *fakeEscrow) Verify(ctx context.Context, hash string) (escrow.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	if st, ok := f.verify[hash]; ok {
		return st, nil
	}
	return f.defaultStatus, nil
}

func (f *fakeEscrow) setVerify(hash string, st escrow.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verify[hash] = st
}

func (f *fakeEscrow) fundCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.funded)
}

// recordingQueue captures enqueued tasks without running them
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*EvaluationTask
	err   error
}

func (q *recordingQueue) Enqueue(task *EvaluationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type escrowFixture struct {
	db      *gorm.DB
	client  *fakeEscrow
	escrow  *EscrowService
	status  *StatusService
	admin   Actor
	hub     *SSEHub
	wallets *WalletService
}

func newEscrowFixture(t *testing.T) *escrowFixture {
	t.Helper()
	db := newTestDB(t)
	hub := NewSSEHub()
	status := NewStatusService(db, testVotingConfig(), hub, nil)
	client := newFakeEscrow()
	wallets := NewWalletService(db)
	svc := NewEscrowService(db, client, wallets, status, testEscrowConfig(), nil)
	admin := createUser(t, db, models.RoleAdmin)
	return &escrowFixture{
		db:      db,
		client:  client,
		escrow:  svc,
		status:  status,
		admin:   Actor{UserID: admin.ID, Role: models.RoleAdmin},
		hub:     hub,
		wallets: wallets,
	}
}
