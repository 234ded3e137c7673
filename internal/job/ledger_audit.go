package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"skillexchange/internal/infrastructure/metrics"
	"skillexchange/internal/model"
	"skillexchange/internal/repository"

	"gorm.io/gorm"
)

// Drift is a user whose stored balance does not match the net of their transactions.
type Drift struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Stored   int64  `json:"stored"`
	Expected int64  `json:"expected"`
}

// LedgerAuditJob periodically checks every balance against the transaction history.
// It only reports; balances are never rewritten.
type LedgerAuditJob struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	stopCh          chan struct{}
	interval        time.Duration
}

func NewLedgerAuditJob(db *gorm.DB, interval time.Duration) *LedgerAuditJob {
	return &LedgerAuditJob{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		stopCh:          make(chan struct{}),
		interval:        interval,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	log.Printf("[LedgerAudit] started interval=%v", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerAudit] context cancelled, exiting")
			return
		case <-j.stopCh:
			log.Println("[LedgerAudit] stopped")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				log.Printf("[LedgerAudit] audit failed err=%v", err)
			}
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

// RunOnce compares all balances with the ledger and updates the drift gauge. Both
// reads share one transaction so a transfer committing in between cannot show up
// as drift.
func (j *LedgerAuditJob) RunOnce(ctx context.Context) ([]Drift, error) {
	var (
		users []*model.User
		net   map[int64]int64
	)
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if users, err = j.userRepo.ListBalances(ctx, tx); err != nil {
			return fmt.Errorf("list balances: %w", err)
		}
		if net, err = j.transactionRepo.NetByUser(ctx, tx); err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, u := range users {
		if expected := net[u.ID]; expected != u.Skillcoins {
			drifts = append(drifts, Drift{UserID: u.ID, Username: u.Username, Stored: u.Skillcoins, Expected: expected})
			log.Printf("[LedgerAudit] balance drift userID=%d stored=%d expected=%d", u.ID, u.Skillcoins, expected)
		}
	}

	metrics.BalanceDriftUsers.Set(float64(len(drifts)))
	log.Printf("[LedgerAudit] checked users=%d drifted=%d", len(users), len(drifts))
	return drifts, nil
}
