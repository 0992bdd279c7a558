package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/internal/escrow"
	"github.com/huangang/fundgate/internal/metrics"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EscrowService drives fund locks and milestone releases against the external
// escrow. Every attempt is written to the ledger as pending before the call
// goes out and is finalized exactly once.
type EscrowService struct {
	db      *gorm.DB
	client  escrow.Client
	wallets *WalletService
	status  *StatusService
	cfg     config.EscrowConfig
	metrics *metrics.Metrics
	newHash func() string
}

func NewEscrowService(db *gorm.DB, client escrow.Client, wallets *WalletService, status *StatusService, cfg *config.EscrowConfig, m *metrics.Metrics) *EscrowService {
	return &EscrowService{
		db:      db,
		client:  client,
		wallets: wallets,
		status:  status,
		cfg:     *cfg,
		metrics: m,
		newHash: newTxHash,
	}
}

func newTxHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type LockRequest struct {
	SubjectType string `json:"subject_type" binding:"required"` // project, grant_application, milestone
	SubjectID   uint   `json:"subject_id" binding:"required"`
}

// SettlementResult is the ledger state after a lock or release call
type SettlementResult struct {
	Transaction    *models.Transaction `json:"transaction"`
	Recovered      bool                `json:"recovered"`
	AlreadySettled bool                `json:"already_settled"`
}

// settlement describes one logical escrow action on a subject
type settlement struct {
	subjectType   string
	subjectID     uint
	txType        models.TxType
	amount        decimal.Decimal
	beneficiary   uint
	escrowSubject string
	milestoneID   uint
	// done is set when the subject is already past this action
	done bool
	// apply moves the subject to its settled state inside the confirming transaction
	apply func(tx *gorm.DB, entry *models.Transaction) error
	// after runs once apply has committed
	after func()
}

func (st *settlement) actionKey() string {
	return fmt.Sprintf("%s:%d:%s", st.subjectType, st.subjectID, st.txType)
}

// LockEscrow funds an approved grant application, an approved milestone or a
// campaigning crowdfund project.
func (s *EscrowService) LockEscrow(ctx context.Context, actor Actor, req *LockRequest) (*SettlementResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		st  *settlement
		err error
	)
	switch req.SubjectType {
	case models.OwnerTypeGrantApplication:
		st, err = s.applicationLock(ctx, req.SubjectID)
	case models.OwnerTypeMilestone:
		st, err = s.milestoneLock(ctx, req.SubjectID)
	case models.OwnerTypeProject:
		st, err = s.projectLock(ctx, req.SubjectID)
	default:
		return nil, validationErr("unsupported subject type %q", req.SubjectType)
	}
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, actor, st)
}

// LockMilestone is the lock sequence run right after a milestone is approved
func (s *EscrowService) LockMilestone(ctx context.Context, actor Actor, milestoneID uint) (*SettlementResult, error) {
	return s.LockEscrow(ctx, actor, &LockRequest{SubjectType: models.OwnerTypeMilestone, SubjectID: milestoneID})
}

// ReleaseMilestoneFunds pays out a locked milestone. Releasing the last
// milestone completes its project or grant application.
func (s *EscrowService) ReleaseMilestoneFunds(ctx context.Context, actor Actor, milestoneID uint) (*SettlementResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	st, err := s.milestoneRelease(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, actor, st)
}

// TransactionListRequest filters the ledger
type TransactionListRequest struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	SubjectType string `form:"subject_type"`
	SubjectID   uint   `form:"subject_id"`
	Status      string `form:"status"`
	Type        string `form:"type"`
}

type TransactionListResponse struct {
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Items    []models.Transaction `json:"items"`
}

// ListTransactions returns ledger entries, newest first
func (s *EscrowService) ListTransactions(ctx context.Context, req *TransactionListRequest) (*TransactionListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Transaction{})
	if req.SubjectType != "" {
		query = query.Where("subject_type = ?", req.SubjectType)
	}
	if req.SubjectID > 0 {
		query = query.Where("subject_id = ?", req.SubjectID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Transaction
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("id DESC").Offset(offset).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &TransactionListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *EscrowService) applicationLock(ctx context.Context, id uint) (*settlement, error) {
	var app models.GrantApplication
	if err := s.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, notFound(err, "grant application")
	}

	st := &settlement{
		subjectType:   models.OwnerTypeGrantApplication,
		subjectID:     app.ID,
		txType:        models.TxTypeFunding,
		amount:        app.Budget,
		beneficiary:   app.ApplicantID,
		escrowSubject: fmt.Sprintf("%s:%d", models.OwnerTypeGrantApplication, app.ID),
	}
	switch app.Status {
	case models.GrantStatusInProgress, models.GrantStatusCompleted:
		st.done = true
	case models.GrantStatusApproved:
	default:
		return nil, preconditionErr("grant application is %s, only approved applications can be funded", app.Status)
	}

	st.apply = func(tx *gorm.DB, entry *models.Transaction) error {
		res := tx.Model(&models.GrantApplication{}).
			Where("id = ? AND status = ?", app.ID, models.GrantStatusApproved).
			Updates(map[string]interface{}{
				"status":          models.GrantStatusInProgress,
				"escrowed_amount": entry.Amount,
				"escrow_tx_hash":  entry.TransactionHash,
			})
		return expectOne(res, "grant application")
	}
	return st, nil
}

func (s *EscrowService) milestoneLock(ctx context.Context, id uint) (*settlement, error) {
	var m models.Milestone
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "milestone")
	}

	st := &settlement{
		subjectType: models.OwnerTypeMilestone,
		subjectID:   m.ID,
		txType:      models.TxTypeFunding,
		amount:      m.Amount,
	}
	switch m.Status {
	case models.MilestoneStatusLocked, models.MilestoneStatusReleased:
		st.done = true
	case models.MilestoneStatusApproved:
	default:
		return nil, preconditionErr("milestone is %s, only approved milestones can be locked", m.Status)
	}

	var err error
	if st.beneficiary, st.escrowSubject, err = s.milestoneOwner(ctx, &m); err != nil {
		return nil, err
	}

	st.apply = func(tx *gorm.DB, entry *models.Transaction) error {
		res := tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", m.ID, models.MilestoneStatusApproved).
			Updates(map[string]interface{}{
				"status":          models.MilestoneStatusLocked,
				"escrowed_amount": entry.Amount,
				"tx_hash":         entry.TransactionHash,
			})
		return expectOne(res, "milestone")
	}
	return st, nil
}

func (s *EscrowService) projectLock(ctx context.Context, id uint) (*settlement, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "project")
	}
	if p.Type != models.ProjectTypeCrowdfund {
		return nil, preconditionErr("only crowdfund projects are funded as a whole")
	}

	st := &settlement{
		subjectType:   models.OwnerTypeProject,
		subjectID:     p.ID,
		txType:        models.TxTypeFunding,
		amount:        p.FundingGoal,
		beneficiary:   p.OwnerID,
		escrowSubject: fmt.Sprintf("%s:%d", models.OwnerTypeProject, p.ID),
	}
	switch p.Status {
	case models.ProjectStatusLive, models.ProjectStatusCompleted:
		st.done = true
	case models.ProjectStatusCampaigning:
		if !p.FundingGoal.IsPositive() {
			return nil, preconditionErr("project has no funding goal")
		}
	default:
		return nil, preconditionErr("project is %s, only campaigning projects can be funded", p.Status)
	}

	st.apply = func(tx *gorm.DB, entry *models.Transaction) error {
		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", p.ID, models.ProjectStatusCampaigning).
			Updates(map[string]interface{}{
				"status":          models.ProjectStatusLive,
				"escrowed_amount": entry.Amount,
				"escrow_tx_hash":  entry.TransactionHash,
				"version":         gorm.Expr("version + 1"),
			})
		return expectOne(res, "project")
	}
	st.after = func() {
		if s.status != nil {
			s.status.afterTransition(p.ID, models.ProjectStatusCampaigning, models.ProjectStatusLive, "")
		}
	}
	return st, nil
}

func (s *EscrowService) milestoneRelease(ctx context.Context, id uint) (*settlement, error) {
	var m models.Milestone
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "milestone")
	}

	st := &settlement{
		subjectType: models.OwnerTypeMilestone,
		subjectID:   m.ID,
		txType:      models.TxTypeMilestoneRelease,
		amount:      m.EscrowedAmount,
		milestoneID: m.ID,
	}
	if st.amount.IsZero() {
		st.amount = m.Amount
	}

	switch m.Status {
	case models.MilestoneStatusReleased:
		st.done = true
	case models.MilestoneStatusLocked:
	default:
		return nil, preconditionErr("milestone is %s, only locked milestones can be released", m.Status)
	}

	var err error
	if st.beneficiary, st.escrowSubject, err = s.milestoneOwner(ctx, &m); err != nil {
		return nil, err
	}

	var completedProject bool
	st.apply = func(tx *gorm.DB, entry *models.Transaction) error {
		now := time.Now()
		res := tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", m.ID, models.MilestoneStatusLocked).
			Updates(map[string]interface{}{
				"status":          models.MilestoneStatusReleased,
				"release_tx_hash": entry.TransactionHash,
				"completed_at":    &now,
			})
		if err := expectOne(res, "milestone"); err != nil {
			return err
		}
		completed, err := completeOwner(tx, m.OwnerType, m.OwnerID)
		completedProject = completed
		return err
	}
	st.after = func() {
		if completedProject && s.status != nil {
			s.status.afterTransition(m.OwnerID, models.ProjectStatusLive, models.ProjectStatusCompleted, "")
		}
	}
	return st, nil
}

// targetFor rebuilds the settlement a ledger entry belongs to
func (s *EscrowService) targetFor(ctx context.Context, entry *models.Transaction) (*settlement, error) {
	if entry.Type == models.TxTypeMilestoneRelease {
		return s.milestoneRelease(ctx, entry.SubjectID)
	}
	switch entry.SubjectType {
	case models.OwnerTypeGrantApplication:
		return s.applicationLock(ctx, entry.SubjectID)
	case models.OwnerTypeMilestone:
		return s.milestoneLock(ctx, entry.SubjectID)
	case models.OwnerTypeProject:
		return s.projectLock(ctx, entry.SubjectID)
	}
	return nil, fmt.Errorf("ledger entry %d has unknown subject type %q", entry.ID, entry.SubjectType)
}

// milestoneOwner resolves the user paid for a milestone and the escrow subject it belongs to
func (s *EscrowService) milestoneOwner(ctx context.Context, m *models.Milestone) (uint, string, error) {
	subject := fmt.Sprintf("%s:%d", m.OwnerType, m.OwnerID)
	switch m.OwnerType {
	case models.OwnerTypeProject:
		var p models.Project
		if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&p, m.OwnerID).Error; err != nil {
			return 0, "", notFound(err, "project")
		}
		return p.OwnerID, subject, nil
	case models.OwnerTypeGrantApplication:
		var app models.GrantApplication
		if err := s.db.WithContext(ctx).Select("id", "applicant_id").First(&app, m.OwnerID).Error; err != nil {
			return 0, "", notFound(err, "grant application")
		}
		return app.ApplicantID, subject, nil
	}
	return 0, "", fmt.Errorf("milestone %d has unknown owner type %q", m.ID, m.OwnerType)
}

// settle runs one logical action to completion. Before issuing a new call the
// newest prior attempt is reconciled with the escrow so a retry never locks
// or pays twice.
func (s *EscrowService) settle(ctx context.Context, actor Actor, st *settlement) (*SettlementResult, error) {
	key := st.actionKey()

	if st.done {
		entry, err := s.latestEntry(ctx, key, models.TxStatusConfirmed)
		if err != nil {
			return nil, err
		}
		return &SettlementResult{Transaction: entry, AlreadySettled: true}, nil
	}

	prior, err := s.latestEntry(ctx, key, "")
	if err != nil {
		return nil, err
	}

	attempt := 1
	if prior != nil {
		attempt = prior.Attempt + 1

		switch prior.Status {
		case models.TxStatusConfirmed:
			// confirmed on the ledger but the subject write did not land
			return s.applyConfirmed(ctx, st, prior)

		case models.TxStatusPending:
			return s.confirm(ctx, st, prior)

		case models.TxStatusFailed:
			status, err := s.client.Verify(ctx, prior.TransactionHash)
			if err == nil && (status == escrow.StatusSuccess || status == escrow.StatusPending) {
				logger.Warn().Str("action", key).Str("tx_hash", prior.TransactionHash).Str("escrow_status", string(status)).
					Msg("[Escrow] failed attempt is live on the escrow, recovering it")
				entry, err := s.record(ctx, st, actor, prior.TransactionHash, prior.ToAddress, attempt, &prior.ID)
				if err != nil {
					return nil, err
				}
				result, err := s.confirm(ctx, st, entry)
				if result != nil {
					result.Recovered = true
				}
				return result, err
			}
		}
	}

	address, err := s.wallets.GetWalletAddress(ctx, st.beneficiary, s.cfg.WalletProvider)
	if errors.Is(err, ErrNotFound) {
		return nil, preconditionErr("beneficiary %d has no %s wallet", st.beneficiary, s.cfg.WalletProvider)
	}
	if err != nil {
		return nil, err
	}

	entry, err := s.record(ctx, st, actor, s.newHash(), address, attempt, nil)
	if err != nil {
		return nil, err
	}

	receipt, err := s.submit(ctx, st, entry)
	if err != nil || receipt.Status == escrow.StatusFailed {
		reason := "escrow rejected the transaction"
		if err != nil {
			reason = "escrow call failed: " + err.Error()
		}
		return s.fail(ctx, st, entry, reason, time.Now())
	}

	return s.confirm(ctx, st, entry)
}

// record appends a pending ledger entry. The (action, attempt) key makes a
// concurrent duplicate attempt fail instead of issuing a second call.
func (s *EscrowService) record(ctx context.Context, st *settlement, actor Actor, hash, to string, attempt int, recoveredFrom *uint) (*models.Transaction, error) {
	entry := &models.Transaction{
		SubjectType:     st.subjectType,
		SubjectID:       st.subjectID,
		ActionKey:       st.actionKey(),
		Attempt:         attempt,
		Type:            st.txType,
		Amount:          st.amount,
		FromAddress:     s.cfg.PlatformAddress,
		ToAddress:       to,
		TransactionHash: hash,
		Status:          models.TxStatusPending,
		RecoveredFromID: recoveredFrom,
		InitiatedBy:     actor.UserID,
	}
	err := s.db.WithContext(ctx).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, conflictErr("settlement %s is already in progress", st.actionKey())
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *EscrowService) submit(ctx context.Context, st *settlement, entry *models.Transaction) (*escrow.Receipt, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	if st.txType == models.TxTypeMilestoneRelease {
		return s.client.Release(ctx, escrow.ReleaseRequest{
			SubjectID:   st.escrowSubject,
			MilestoneID: strconv.FormatUint(uint64(st.milestoneID), 10),
			Amount:      entry.Amount,
			Address:     entry.ToAddress,
			TxHash:      entry.TransactionHash,
		})
	}
	return s.client.Fund(ctx, escrow.FundRequest{
		SubjectID: st.escrowSubject,
		Amount:    entry.Amount,
		Address:   entry.ToAddress,
		TxHash:    entry.TransactionHash,
	})
}

// confirm waits for the escrow to settle entry and finalizes it
func (s *EscrowService) confirm(ctx context.Context, st *settlement, entry *models.Transaction) (*SettlementResult, error) {
	start := time.Now()
	ok, reason := s.awaitConfirmation(ctx, entry.TransactionHash)
	if !ok {
		return s.fail(ctx, st, entry, reason, start)
	}

	// the subject write must land even if the caller went away
	dbCtx := context.WithoutCancel(ctx)
	var applied bool
	err := s.db.WithContext(dbCtx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", entry.ID, models.TxStatusPending).
			Updates(map[string]interface{}{
				"status":       models.TxStatusConfirmed,
				"confirmed_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return st.apply(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	current, err := s.reload(dbCtx, entry.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.TxStatusFailed {
		return &SettlementResult{Transaction: current}, &SettlementError{Entry: current, Reason: current.ErrorMessage}
	}

	if applied {
		s.metrics.ObserveSettlement(string(st.txType), string(models.TxStatusConfirmed), time.Since(start))
		if st.after != nil {
			st.after()
		}
		logger.Info().Str("action", current.ActionKey).Int("attempt", current.Attempt).
			Str("tx_hash", current.TransactionHash).Msg("[Escrow] settlement confirmed")
		LogInfo("Escrow", "confirmed", fmt.Sprintf("%s attempt %d confirmed", current.ActionKey, current.Attempt), &current.InitiatedBy, "", "", nil)
	}
	return &SettlementResult{Transaction: current}, nil
}

// awaitConfirmation polls Verify within the retry and time budget
func (s *EscrowService) awaitConfirmation(ctx context.Context, hash string) (bool, string) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	var lastErr error
	checks := 0
	for checks < s.cfg.MaxRetries {
		status, err := s.client.Verify(waitCtx, hash)
		checks++
		switch {
		case err != nil:
			lastErr = err
		case status == escrow.StatusSuccess:
			return true, ""
		case status == escrow.StatusFailed:
			return false, "escrow reported the transaction as failed"
		}

		if checks < s.cfg.MaxRetries {
			select {
			case <-waitCtx.Done():
				return false, fmt.Sprintf("confirmation timed out after %s (%d checks)", s.cfg.ConfirmTimeout, checks)
			case <-time.After(s.cfg.Backoff):
			}
		}
	}

	if lastErr != nil {
		return false, fmt.Sprintf("not confirmed after %d checks: %v", checks, lastErr)
	}
	return false, fmt.Sprintf("not confirmed after %d checks", checks)
}

// fail finalizes entry as failed and returns the SettlementError for it
func (s *EscrowService) fail(ctx context.Context, st *settlement, entry *models.Transaction, reason string, start time.Time) (*SettlementResult, error) {
	dbCtx := context.WithoutCancel(ctx)
	now := time.Now()
	err := s.db.WithContext(dbCtx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", entry.ID, models.TxStatusPending).
		Updates(map[string]interface{}{
			"status":        models.TxStatusFailed,
			"failed_at":     &now,
			"error_message": reason,
		}).Error
	if err != nil {
		return nil, err
	}

	current, err := s.reload(dbCtx, entry.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.TxStatusConfirmed {
		// another caller confirmed it while we waited
		return &SettlementResult{Transaction: current}, nil
	}

	s.metrics.ObserveSettlement(string(st.txType), string(models.TxStatusFailed), time.Since(start))
	logger.Warn().Str("action", current.ActionKey).Int("attempt", current.Attempt).
		Str("tx_hash", current.TransactionHash).Str("reason", reason).Msg("[Escrow] settlement failed")
	LogWarning("Escrow", "failed", fmt.Sprintf("%s attempt %d failed: %s", current.ActionKey, current.Attempt, reason), &current.InitiatedBy, "", "", nil)

	return &SettlementResult{Transaction: current}, &SettlementError{Entry: current, Reason: reason}
}

// applyConfirmed finishes an action whose ledger entry is confirmed but whose
// subject still sits in the pre-settlement state.
func (s *EscrowService) applyConfirmed(ctx context.Context, st *settlement, entry *models.Transaction) (*SettlementResult, error) {
	err := s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		return st.apply(tx, entry)
	})
	if err != nil {
		return nil, err
	}
	if st.after != nil {
		st.after()
	}
	return &SettlementResult{Transaction: entry, Recovered: true}, nil
}

func (s *EscrowService) latestEntry(ctx context.Context, key string, status models.TxStatus) (*models.Transaction, error) {
	query := s.db.WithContext(ctx).Where("action_key = ?", key)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var entry models.Transaction
	err := query.Order("attempt DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *EscrowService) reload(ctx context.Context, id uint) (*models.Transaction, error) {
	var entry models.Transaction
	if err := s.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// completeOwner advances a project or application once all its milestones are released.
// It reports whether a project was completed.
func completeOwner(tx *gorm.DB, ownerType string, ownerID uint) (bool, error) {
	var remaining int64
	err := tx.Model(&models.Milestone{}).
		Where("owner_type = ? AND owner_id = ? AND status <> ?", ownerType, ownerID, models.MilestoneStatusReleased).
		Count(&remaining).Error
	if err != nil || remaining > 0 {
		return false, err
	}

	switch ownerType {
	case models.OwnerTypeProject:
		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", ownerID, models.ProjectStatusLive).
			Updates(map[string]interface{}{
				"status":  models.ProjectStatusCompleted,
				"version": gorm.Expr("version + 1"),
			})
		return res.RowsAffected == 1, res.Error
	case models.OwnerTypeGrantApplication:
		err := tx.Model(&models.GrantApplication{}).
			Where("id = ? AND status IN ?", ownerID, []models.GrantStatus{models.GrantStatusApproved, models.GrantStatusInProgress}).
			Update("status", models.GrantStatusCompleted).Error
		return false, err
	}
	return false, nil
}

func expectOne(res *gorm.DB, what string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictErr("%s changed during settlement", what)
	}
	return nil
}
