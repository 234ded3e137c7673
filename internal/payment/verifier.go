// Package payment confirms external payments with the provider before coins are credited.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skillexchange/internal/config"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotVerified means the provider does not confirm the payment as claimed.
	ErrNotVerified = errors.New("payment not verified")
)

// Claim is what the client reports after the provider's checkout succeeded.
type Claim struct {
	Reference     string
	TransactionID string
	Amount        int64 // SkillCoins
}

// Verification is the provider's view of a payment.
type Verification struct {
	TransactionID string
	Reference     string
	Coins         int64
	Currency      string
}

type Verifier interface {
	Verify(ctx context.Context, claim Claim) (*Verification, error)
}

// NewVerifier returns the HTTP verifier, or a pass-through one when verification is off.
func NewVerifier(cfg *config.PaymentConfig) (Verifier, error) {
	if !cfg.Verify {
		return TrustingVerifier{}, nil
	}
	return NewHTTPVerifier(cfg, &http.Client{Timeout: cfg.Timeout})
}

// TrustingVerifier accepts every claim. Only for local development.
type TrustingVerifier struct{}

func (TrustingVerifier) Verify(_ context.Context, claim Claim) (*Verification, error) {
	return &Verification{
		TransactionID: claim.TransactionID,
		Reference:     claim.Reference,
		Coins:         claim.Amount,
	}, nil
}

// HTTPVerifier asks the provider's verify endpoint about a reference.
//
// Provider amounts are in minor currency units (kobo, cents); they are converted to
// SkillCoins with coinsPerUnit applied to the major amount.
type HTTPVerifier struct {
	client       *http.Client
	baseURL      string
	secretKey    string
	currency     string
	coinsPerUnit decimal.Decimal
}

func NewHTTPVerifier(cfg *config.PaymentConfig, client *http.Client) (*HTTPVerifier, error) {
	rate, err := decimal.NewFromString(cfg.CoinsPerUnit)
	if err != nil {
		return nil, fmt.Errorf("payment.coins_per_unit: %w", err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("payment.coins_per_unit must be positive, got %s", cfg.CoinsPerUnit)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPVerifier{
		client:       client,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:    cfg.SecretKey,
		currency:     cfg.Currency,
		coinsPerUnit: rate,
	}, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID        json.Number `json:"id"`
		Status    string      `json:"status"`
		Reference string      `json:"reference"`
		Amount    json.Number `json:"amount"`
		Currency  string      `json:"currency"`
	} `json:"data"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, claim Claim) (*Verification, error) {
	endpoint := v.baseURL + "/transaction/verify/" + url.PathEscape(claim.Reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: provider returned %d", ErrNotVerified, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}

	var body verifyResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	if !body.Status || body.Data.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", ErrNotVerified, body.Data.Status)
	}
	if body.Data.ID.String() != claim.TransactionID {
		return nil, fmt.Errorf("%w: transaction id mismatch", ErrNotVerified)
	}
	if v.currency != "" && !strings.EqualFold(body.Data.Currency, v.currency) {
		return nil, fmt.Errorf("%w: currency %s", ErrNotVerified, body.Data.Currency)
	}

	minor, err := decimal.NewFromString(body.Data.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrNotVerified, body.Data.Amount)
	}
	coins := minor.Shift(-2).Mul(v.coinsPerUnit)
	if !coins.IsInteger() || !coins.Equal(decimal.NewFromInt(claim.Amount)) {
		return nil, fmt.Errorf("%w: paid %s coins, claimed %d", ErrNotVerified, coins.String(), claim.Amount)
	}

	return &Verification{
		TransactionID: body.Data.ID.String(),
		Reference:     claim.Reference,
		Coins:         coins.IntPart(),
		Currency:      body.Data.Currency,
	}, nil
}
