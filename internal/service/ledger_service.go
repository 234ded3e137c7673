package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"skillexchange/internal/infrastructure/lock"
	"skillexchange/internal/infrastructure/metrics"
	"skillexchange/internal/model"
	"skillexchange/internal/repository"
	"skillexchange/pkg/idgen"

	"gorm.io/gorm"
)

// Entry describes one economic event. A nil From means the coins are created by the
// system; a nil To means the system takes them out of circulation.
type Entry struct {
	Type        string
	From        *int64
	To          *int64
	ServiceID   *int64
	Amount      int64
	Description string
}

// LedgerService is the only writer of user balances. Every mutation goes through Post,
// which must run inside a database transaction.
type LedgerService struct {
	db              *gorm.DB
	locker          lock.Locker
	topic           string
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

// NewLedgerService builds the ledger. An empty topic disables outbox events.
func NewLedgerService(db *gorm.DB, locker lock.Locker, topic string) *LedgerService {
	return &LedgerService{
		db:              db,
		locker:          locker,
		topic:           topic,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// Post applies e to the balances of its parties and appends the transaction record (plus
// its outbox event) using tx. The caller owns commit and rollback.
func (s *LedgerService) Post(ctx context.Context, tx *gorm.DB, e Entry) (*model.Transaction, error) {
	if !validAmount(e.Amount) {
		return nil, ErrInvalidAmount
	}
	if e.From != nil && e.To != nil && *e.From == *e.To {
		return nil, ErrSelfTransfer
	}

	type delta struct {
		userID int64
		amount int64
	}
	deltas := make([]delta, 0, 2)
	if e.From != nil {
		deltas = append(deltas, delta{*e.From, -e.Amount})
	}
	if e.To != nil {
		deltas = append(deltas, delta{*e.To, e.Amount})
	}
	// Fixed lock order across concurrent transfers.
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].userID < deltas[j].userID })

	for _, d := range deltas {
		if _, err := s.userRepo.ApplyDelta(ctx, tx, d.userID, d.amount); err != nil {
			return nil, fmt.Errorf("apply %+d to user %d: %w", d.amount, d.userID, err)
		}
	}

	trans := &model.Transaction{
		TransactionNo:         idgen.TransactionNo(),
		FromUserID:            e.From,
		ToUserID:              e.To,
		ServiceID:             e.ServiceID,
		SkillcoinsTransferred: e.Amount,
		Description:           e.Description,
		TransactionType:       e.Type,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	if s.topic != "" {
		msg, err := model.NewLedgerOutbox(s.topic, trans)
		if err != nil {
			return nil, fmt.Errorf("encode ledger event: %w", err)
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return nil, fmt.Errorf("write ledger event: %w", err)
		}
	}

	return trans, nil
}

// ============================================================================
// Direct adjustment
// ============================================================================

type AdjustRequest struct {
	UserID      int64
	Adjustment  int64
	Description string
}

type AdjustResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Skillcoins  int64              `json:"skillcoins"`
}

// Adjust credits (positive) or debits (negative) a user against the system account.
func (s *LedgerService) Adjust(ctx context.Context, req *AdjustRequest) (*AdjustResult, error) {
	if req.UserID <= 0 {
		return nil, ErrMissingUser
	}
	if req.Adjustment == 0 || req.Adjustment > MaxAmount || req.Adjustment < -MaxAmount {
		return nil, ErrInvalidAdjustment
	}

	entry := Entry{
		Type:        model.TransactionTypeAdjustment,
		Description: req.Description,
	}
	if req.Adjustment > 0 {
		entry.To = model.UserRef(req.UserID)
		entry.Amount = req.Adjustment
	} else {
		entry.From = model.UserRef(req.UserID)
		entry.Amount = -req.Adjustment
	}
	if entry.Description == "" {
		entry.Description = "Balance adjustment"
	}

	release, err := s.locker.Acquire(ctx, lock.UserKey(req.UserID))
	if err != nil {
		return nil, err
	}
	defer release()

	result := &AdjustResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trans, err := s.Post(ctx, tx, entry)
		if err != nil {
			return err
		}
		user, err := s.userRepo.GetByID(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		result.Transaction = trans
		result.Skillcoins = user.Skillcoins
		return nil
	})
	metrics.ObserveLedger(model.TransactionTypeAdjustment, req.Adjustment, err)
	if err != nil {
		return nil, err
	}

	log.Printf("[Ledger] adjustment committed transactionNo=%s userID=%d adjustment=%d balance=%d",
		result.Transaction.TransactionNo, req.UserID, req.Adjustment, result.Skillcoins)
	return result, nil
}

// ============================================================================
// Service payments
// ============================================================================

type ServiceTransferRequest struct {
	FromUserID  int64
	ToUserID    int64
	ServiceID   *int64
	Amount      int64
	Description string
}

// TransferForService moves coins from the buyer of a service to its provider.
func (s *LedgerService) TransferForService(ctx context.Context, req *ServiceTransferRequest) (*model.Transaction, error) {
	if req.FromUserID <= 0 || req.ToUserID <= 0 {
		return nil, ErrMissingUser
	}
	if req.FromUserID == req.ToUserID {
		return nil, ErrSelfTransfer
	}
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}

	description := req.Description
	if description == "" {
		description = "Service payment"
		if req.ServiceID != nil {
			description = fmt.Sprintf("Payment for service #%d", *req.ServiceID)
		}
	}

	release, err := s.locker.Acquire(ctx, lock.UserKey(req.FromUserID))
	if err != nil {
		return nil, err
	}
	defer release()

	var trans *model.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		trans, err = s.Post(ctx, tx, Entry{
			Type:        model.TransactionTypeService,
			From:        model.UserRef(req.FromUserID),
			To:          model.UserRef(req.ToUserID),
			ServiceID:   req.ServiceID,
			Amount:      req.Amount,
			Description: description,
		})
		return err
	})
	metrics.ObserveLedger(model.TransactionTypeService, req.Amount, err)
	if err != nil {
		return nil, err
	}

	log.Printf("[Ledger] service payment committed transactionNo=%s from=%d to=%d amount=%d",
		trans.TransactionNo, req.FromUserID, req.ToUserID, req.Amount)
	return trans, nil
}

// ListTransactions returns the whole ledger, most recent first.
func (s *LedgerService) ListTransactions(ctx context.Context) ([]*model.Transaction, error) {
	return s.transactionRepo.ListAll(ctx)
}

// GetTransaction looks up one ledger row by its transaction number.
func (s *LedgerService) GetTransaction(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	trans, err := s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if trans == nil {
		return nil, ErrTransactionNotFound
	}
	return trans, nil
}
