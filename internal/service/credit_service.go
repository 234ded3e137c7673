package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"skillexchange/internal/infrastructure/lock"
	"skillexchange/internal/infrastructure/metrics"
	"skillexchange/internal/model"
	"skillexchange/internal/payment"
	"skillexchange/internal/repository"

	"gorm.io/gorm"
)

// CreditService turns confirmed external payments into SkillCoins.
//
// A credit is accepted only after the provider confirms it server-side, and at most
// once per provider transaction id:
//  1. a lock on the provider transaction id stops concurrent double submission
//  2. a lookup inside the database transaction returns the earlier credit on replay
//  3. the unique index on payment_transactions.provider_transaction_id is the last guard
type CreditService struct {
	db          *gorm.DB
	ledger      *LedgerService
	locker      lock.Locker
	verifier    payment.Verifier
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
}

func NewCreditService(db *gorm.DB, ledger *LedgerService, locker lock.Locker, verifier payment.Verifier) *CreditService {
	return &CreditService{
		db:          db,
		ledger:      ledger,
		locker:      locker,
		verifier:    verifier,
		userRepo:    repository.NewUserRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
	}
}

type CreditRequest struct {
	UserID        int64
	Amount        int64
	Reference     string
	TransactionID string
}

type CreditResult struct {
	Duplicate   bool                      `json:"duplicate"`
	Payment     *model.PaymentTransaction `json:"payment"`
	Transaction *model.Transaction        `json:"transaction,omitempty"`
	Skillcoins  int64                     `json:"skillcoins"`
}

func (s *CreditService) Credit(ctx context.Context, req *CreditRequest) (*CreditResult, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	req.TransactionID = strings.TrimSpace(req.TransactionID)

	if req.UserID <= 0 {
		return nil, ErrMissingUser
	}
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if req.Reference == "" || req.TransactionID == "" {
		return nil, ErrMissingPaymentRef
	}

	release, err := s.locker.Acquire(ctx, lock.PaymentKey(req.TransactionID))
	if err != nil {
		return nil, err
	}
	defer release()

	// Replays are answered before calling the provider again.
	existing, err := s.paymentRepo.GetByProviderTransactionID(ctx, nil, req.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("look up payment: %w", err)
	}
	if existing != nil {
		return s.replay(ctx, req, existing)
	}

	if _, err := s.userRepo.GetByID(ctx, nil, req.UserID); err != nil {
		return nil, err
	}

	verification, err := s.verifier.Verify(ctx, payment.Claim{
		Reference:     req.Reference,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
	})
	if err != nil {
		log.Printf("[Credit] verification failed userID=%d reference=%s transactionID=%s err=%v",
			req.UserID, req.Reference, req.TransactionID, err)
		return nil, err
	}

	result := &CreditResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.paymentRepo.GetByProviderTransactionID(ctx, tx, req.TransactionID)
		if err != nil {
			return fmt.Errorf("look up payment: %w", err)
		}
		if existing != nil {
			result.Duplicate = true
			result.Payment = existing
			return nil
		}

		trans, err := s.ledger.Post(ctx, tx, Entry{
			Type:        model.TransactionTypePurchased,
			To:          model.UserRef(req.UserID),
			Amount:      verification.Coins,
			Description: model.PurchaseDescription,
		})
		if err != nil {
			return err
		}

		record := &model.PaymentTransaction{
			UserID:                req.UserID,
			Amount:                verification.Coins,
			Reference:             req.Reference,
			ProviderTransactionID: req.TransactionID,
			TransactionID:         trans.ID,
			Status:                model.PaymentStatusCompleted,
		}
		if err := s.paymentRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		user, err := s.userRepo.GetByID(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		result.Payment = record
		result.Transaction = trans
		result.Skillcoins = user.Skillcoins
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another instance committed the same provider transaction first.
		existing, lookupErr := s.paymentRepo.GetByProviderTransactionID(ctx, nil, req.TransactionID)
		if lookupErr == nil && existing != nil {
			return s.replay(ctx, req, existing)
		}
	}
	metrics.ObserveLedger(model.TransactionTypePurchased, req.Amount, err)
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return s.replay(ctx, req, result.Payment)
	}

	log.Printf("[Credit] committed transactionNo=%s userID=%d amount=%d reference=%s providerTx=%s",
		result.Transaction.TransactionNo, req.UserID, verification.Coins, req.Reference, req.TransactionID)
	return result, nil
}

// replay answers a resubmitted provider transaction. Only the original claim gets the
// earlier credit back; anyone else is refused without seeing it.
func (s *CreditService) replay(ctx context.Context, req *CreditRequest, existing *model.PaymentTransaction) (*CreditResult, error) {
	if existing.UserID != req.UserID || existing.Amount != req.Amount {
		log.Printf("[Credit] conflicting claim on credited payment providerTx=%s userID=%d amount=%d",
			existing.ProviderTransactionID, req.UserID, req.Amount)
		return nil, ErrPaymentConflict
	}

	log.Printf("[Credit] duplicate provider transaction ignored providerTx=%s userID=%d",
		existing.ProviderTransactionID, existing.UserID)

	result := &CreditResult{Duplicate: true, Payment: existing}
	user, err := s.userRepo.GetByID(ctx, nil, existing.UserID)
	if err != nil {
		return nil, err
	}
	result.Skillcoins = user.Skillcoins
	return result, nil
}

// ListPayments returns the payments credited to userID, most recent first.
func (s *CreditService) ListPayments(ctx context.Context, userID int64) ([]*model.PaymentTransaction, error) {
	return s.paymentRepo.ListByUserID(ctx, userID)
}
