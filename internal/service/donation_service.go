package service

import (
	"context"
	"fmt"
	"log"

	"skillexchange/internal/infrastructure/lock"
	"skillexchange/internal/infrastructure/metrics"
	"skillexchange/internal/model"
	"skillexchange/internal/repository"

	"gorm.io/gorm"
)

type DonationService struct {
	db              *gorm.DB
	ledger          *LedgerService
	locker          lock.Locker
	communityUserID int64
	donationRepo    *repository.DonationRepository
}

// NewDonationService wires donations onto the ledger. communityUserID receives
// donations without a named receiver; zero rejects them.
func NewDonationService(db *gorm.DB, ledger *LedgerService, locker lock.Locker, communityUserID int64) *DonationService {
	return &DonationService{
		db:              db,
		ledger:          ledger,
		locker:          locker,
		communityUserID: communityUserID,
		donationRepo:    repository.NewDonationRepository(db),
	}
}

type DonationRequest struct {
	FromUserID int64
	ToUserID   *int64 // nil donates to the community account
	Amount     int64
	Message    string
}

type DonationResult struct {
	Donation    *model.Donation    `json:"donation"`
	Transaction *model.Transaction `json:"transaction"`
}

// Donate moves coins from the donor to the receiver. The debit, the credit, the
// transaction record and the donation row commit together or not at all.
func (s *DonationService) Donate(ctx context.Context, req *DonationRequest) (*DonationResult, error) {
	if req.FromUserID <= 0 {
		return nil, ErrMissingUser
	}
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}

	receiver := req.ToUserID
	if receiver == nil || *receiver == model.SystemUserID {
		if s.communityUserID == 0 {
			return nil, ErrCommunityDisabled
		}
		receiver = model.UserRef(s.communityUserID)
	}
	if *receiver == req.FromUserID {
		return nil, ErrSelfTransfer
	}

	description := fmt.Sprintf("Donation to user #%d", *receiver)
	if *receiver == s.communityUserID {
		description = "Donation to the community"
	}

	release, err := s.locker.Acquire(ctx, lock.UserKey(req.FromUserID))
	if err != nil {
		return nil, err
	}
	defer release()

	result := &DonationResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trans, err := s.ledger.Post(ctx, tx, Entry{
			Type:        model.TransactionTypeDonation,
			From:        model.UserRef(req.FromUserID),
			To:          receiver,
			Amount:      req.Amount,
			Description: description,
		})
		if err != nil {
			return err
		}

		donation := &model.Donation{
			TransactionID: trans.ID,
			FromUserID:    req.FromUserID,
			ToUserID:      receiver,
			Amount:        req.Amount,
			Message:       req.Message,
		}
		if err := s.donationRepo.Create(ctx, tx, donation); err != nil {
			return fmt.Errorf("record donation: %w", err)
		}

		result.Donation = donation
		result.Transaction = trans
		return nil
	})
	metrics.ObserveLedger(model.TransactionTypeDonation, req.Amount, err)
	if err != nil {
		return nil, err
	}

	log.Printf("[Donation] committed transactionNo=%s from=%d to=%d amount=%d",
		result.Transaction.TransactionNo, req.FromUserID, *receiver, req.Amount)
	return result, nil
}

// ListDonations returns all donations, or only those userID gave or received.
func (s *DonationService) ListDonations(ctx context.Context, userID *int64) ([]*model.Donation, error) {
	return s.donationRepo.List(ctx, userID)
}
