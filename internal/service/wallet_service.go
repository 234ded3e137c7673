package service

import (
	"context"

	"skillexchange/internal/model"
	"skillexchange/internal/repository"

	"gorm.io/gorm"
)

type Wallet struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Skillcoins int64  `json:"skillcoins"`
}

// TransactionView is a ledger row annotated with its direction for the wallet owner.
type TransactionView struct {
	*model.Transaction
	Direction string `json:"direction"`
}

type WalletView struct {
	Wallet       Wallet             `json:"wallet"`
	Transactions []*TransactionView `json:"transactions"`
}

type WalletService struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetWallet returns the balance and full history of userID read from one snapshot.
func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*WalletView, error) {
	if userID <= 0 {
		return nil, ErrMissingUser
	}

	view := &WalletView{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		transactions, err := s.transactionRepo.ListByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}

		view.Wallet = Wallet{UserID: user.ID, Username: user.Username, Skillcoins: user.Skillcoins}
		view.Transactions = make([]*TransactionView, 0, len(transactions))
		for _, t := range transactions {
			view.Transactions = append(view.Transactions, &TransactionView{
				Transaction: t,
				Direction:   t.DirectionFor(userID),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
