package service

import (
	"errors"

	"skillexchange/internal/payment"
	"skillexchange/internal/repository"
)

// Validation failures, reported before any store access.
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number of skillcoins within the transfer limit")
	ErrInvalidAdjustment = errors.New("adjustment must be a non-zero number of skillcoins within the transfer limit")
	ErrMissingUser       = errors.New("user id is required")
	ErrSelfTransfer      = errors.New("cannot transfer skillcoins to yourself")
	ErrCommunityDisabled = errors.New("community donations are not enabled")
	ErrMissingPaymentRef = errors.New("payment reference and transaction id are required")
)

// ErrTransactionNotFound means no ledger row carries the requested transaction number.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrPaymentConflict means the provider transaction was already credited with a
// different user or amount.
var ErrPaymentConflict = errors.New("payment transaction already credited to another claim")

// MaxAmount caps a single movement so balance arithmetic cannot overflow.
const MaxAmount int64 = 1_000_000_000_000

func validAmount(amount int64) bool {
	return amount > 0 && amount <= MaxAmount
}

// Store-level outcomes, re-exported so callers need not import the repository package.
var (
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrInsufficientBalance = repository.ErrInsufficientBalance
	ErrPaymentNotVerified  = payment.ErrNotVerified
)
