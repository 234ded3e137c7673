// Package walletclient talks to the SkillExchange wallet API and keeps a local copy
// of one user's wallet.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Wallet struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Skillcoins int64  `json:"skillcoins"`
}

type Transaction struct {
	ID                    int64     `json:"id"`
	TransactionNo         string    `json:"transaction_no"`
	FromUserID            *int64    `json:"from_user_id"`
	ToUserID              *int64    `json:"to_user_id"`
	ServiceID             *int64    `json:"service_id"`
	SkillcoinsTransferred int64     `json:"skillcoins_transferred"`
	Description           string    `json:"description"`
	TransactionType       string    `json:"transaction_type"`
	Direction             string    `json:"direction,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

type WalletView struct {
	Wallet       Wallet        `json:"wallet"`
	Transactions []Transaction `json:"transactions"`
}

type Donation struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	FromUserID    int64     `json:"from_user_id"`
	ToUserID      *int64    `json:"to_user_id"`
	Amount        int64     `json:"amount"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Payment struct {
	ID                    int64     `json:"id"`
	UserID                int64     `json:"user_id"`
	Amount                int64     `json:"amount"`
	Reference             string    `json:"reference"`
	ProviderTransactionID string    `json:"provider_transaction_id"`
	TransactionID         int64     `json:"transaction_id"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
}

type DonateRequest struct {
	FromUserID int64  `json:"from_user_id"`
	ToUserID   *int64 `json:"to_user_id"`
	Amount     int64  `json:"amount"`
	Message    string `json:"message,omitempty"`
}

type DonationResult struct {
	Message     string      `json:"message"`
	Donation    Donation    `json:"donation"`
	Transaction Transaction `json:"transaction"`
}

type CreditRequest struct {
	UserID        int64  `json:"userId"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId"`
}

type CreditResult struct {
	Success    bool    `json:"success"`
	Duplicate  bool    `json:"duplicate"`
	Skillcoins int64   `json:"skillcoins"`
	Payment    Payment `json:"payment"`
}

type AdjustResult struct {
	Message     string      `json:"message"`
	Skillcoins  int64       `json:"skillcoins"`
	Transaction Transaction `json:"transaction"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wallet api: %d %s", e.Status, e.Message)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetWallet(ctx context.Context, userID int64) (*WalletView, error) {
	var view WalletView
	err := c.do(ctx, http.MethodGet, "/wallet?userId="+strconv.FormatInt(userID, 10), nil, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Adjust(ctx context.Context, userID, adjustment int64, description string) (*AdjustResult, error) {
	body := map[string]interface{}{"userId": userID, "adjustment": adjustment, "description": description}
	var out AdjustResult
	if err := c.do(ctx, http.MethodPatch, "/wallet", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Credit(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	var out CreditResult
	if err := c.do(ctx, http.MethodPost, "/wallet/credit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Donate(ctx context.Context, req DonateRequest) (*DonationResult, error) {
	var out DonationResult
	if err := c.do(ctx, http.MethodPost, "/donations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDonations returns donations involving userID, or every donation when userID is 0.
func (c *Client) ListDonations(ctx context.Context, userID int64) ([]Donation, error) {
	path := "/donations"
	if userID != 0 {
		path += "?" + url.Values{"userId": {strconv.FormatInt(userID, 10)}}.Encode()
	}
	var out []Donation
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListPayments(ctx context.Context, userID int64) ([]Payment, error) {
	var out []Payment
	if err := c.do(ctx, http.MethodGet, "/wallet/payments?userId="+strconv.FormatInt(userID, 10), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
