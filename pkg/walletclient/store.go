package walletclient

import (
	"context"
	"sync"
)

// Store keeps the latest wallet of one user and reloads it after every mutation it
// performs. Listeners see each new snapshot.
type Store struct {
	client *Client
	userID int64

	mu        sync.RWMutex
	view      *WalletView
	err       error
	listeners map[int]func(WalletView)
	nextID    int
}

func NewStore(client *Client, userID int64) *Store {
	return &Store{client: client, userID: userID, listeners: make(map[int]func(WalletView))}
}

// Refresh reloads the wallet from the server. On failure the previous snapshot is kept
// and Err reports the failure until the next successful refresh.
func (s *Store) Refresh(ctx context.Context) error {
	view, err := s.client.GetWallet(ctx, s.userID)

	s.mu.Lock()
	s.err = err
	if err == nil {
		s.view = view
	}
	listeners := make([]func(WalletView), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(*view)
	}
	return nil
}

// Snapshot returns the last loaded wallet, or false before the first successful load.
func (s *Store) Snapshot() (WalletView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return WalletView{}, false
	}
	return *s.view, true
}

func (s *Store) Balance() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return 0
	}
	return s.view.Wallet.Skillcoins
}

// Err is the error of the last refresh, nil when the snapshot is current.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Subscribe registers fn for every new snapshot and returns a function removing it.
func (s *Store) Subscribe(fn func(WalletView)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Donate sends amount to toUserID (nil for the community) and reloads the wallet.
// A failed reload does not fail the donation; it is reported through Err.
func (s *Store) Donate(ctx context.Context, toUserID *int64, amount int64, message string) (*DonationResult, error) {
	result, err := s.client.Donate(ctx, DonateRequest{
		FromUserID: s.userID,
		ToUserID:   toUserID,
		Amount:     amount,
		Message:    message,
	})
	if err != nil {
		return nil, err
	}
	_ = s.Refresh(ctx)
	return result, nil
}

// Credit submits a completed provider payment and reloads the wallet.
func (s *Store) Credit(ctx context.Context, amount int64, reference, transactionID string) (*CreditResult, error) {
	result, err := s.client.Credit(ctx, CreditRequest{
		UserID:        s.userID,
		Amount:        amount,
		Reference:     reference,
		TransactionID: transactionID,
	})
	if err != nil {
		return nil, err
	}
	_ = s.Refresh(ctx)
	return result, nil
}
