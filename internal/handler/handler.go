package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"skillexchange/internal/infrastructure/lock"
	"skillexchange/internal/service"
	"skillexchange/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler holds every service the HTTP API exposes.
type Handler struct {
	walletService   *service.WalletService
	ledgerService   *service.LedgerService
	donationService *service.DonationService
	creditService   *service.CreditService
}

func NewHandler(wallet *service.WalletService, ledger *service.LedgerService,
	donation *service.DonationService, credit *service.CreditService) *Handler {
	return &Handler{
		walletService:   wallet,
		ledgerService:   ledger,
		donationService: donation,
		creditService:   credit,
	}
}

// fail maps a service error to its HTTP status. Unknown errors are logged and answered
// with 500 carrying the underlying message.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidAdjustment),
		errors.Is(err, service.ErrMissingUser),
		errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrCommunityDisabled),
		errors.Is(err, service.ErrMissingPaymentRef):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, service.ErrTransactionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.Error(c, http.StatusUnprocessableEntity, "insufficient skillcoins")
	case errors.Is(err, service.ErrPaymentNotVerified):
		response.Error(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrPaymentConflict):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, lock.ErrLockFailed):
		response.Error(c, http.StatusConflict, "another operation is in progress, retry shortly")
	default:
		log.Printf("[HTTP] %s %s failed requestID=%s err=%v",
			c.Request.Method, c.FullPath(), c.GetString(requestIDKey), err)
		response.ServerError(c, err.Error())
	}
}

// userIDParam reads a required positive user id from the query string.
func userIDParam(c *gin.Context, name string) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || userID <= 0 {
		response.ParamError(c, name+" must be a positive integer")
		return 0, false
	}
	return userID, true
}

// ============================================================
// Wallet
// ============================================================

// GetWallet returns the balance and history of one user.
// GET /wallet?userId=xxx
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}

	view, err := h.walletService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, view)
}

type AdjustWalletRequest struct {
	UserID      int64  `json:"userId"`
	Adjustment  int64  `json:"adjustment"`
	Description string `json:"description"`
}

// AdjustWallet credits or debits a user against the system account.
// PATCH /wallet
func (h *Handler) AdjustWallet(c *gin.Context) {
	var req AdjustWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body: "+err.Error())
		return
	}
	if !requireAdmin(c) {
		return
	}

	result, err := h.ledgerService.Adjust(c.Request.Context(), &service.AdjustRequest{
		UserID:      req.UserID,
		Adjustment:  req.Adjustment,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":     "Wallet updated",
		"skillcoins":  result.Skillcoins,
		"transaction": result.Transaction,
	})
}

type CreditRequest struct {
	UserID        int64  `json:"userId"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId"`
}

// CreditWallet credits coins bought through the payment provider.
// POST /wallet/credit
func (h *Handler) CreditWallet(c *gin.Context) {
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body: "+err.Error())
		return
	}
	if !actAs(c, req.UserID) {
		return
	}

	result, err := h.creditService.Credit(c.Request.Context(), &service.CreditRequest{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Reference:     req.Reference,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"success":    true,
		"duplicate":  result.Duplicate,
		"skillcoins": result.Skillcoins,
		"payment":    result.Payment,
	})
}

// ListPayments returns the payment credits of one user.
// GET /wallet/payments?userId=xxx
func (h *Handler) ListPayments(c *gin.Context) {
	userID, ok := userIDParam(c, "userId")
	if !ok {
		return
	}

	payments, err := h.creditService.ListPayments(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, payments)
}

// ============================================================
// Transactions
// ============================================================

// ListTransactions returns the whole ledger.
// GET /transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	list, err := h.ledgerService.ListTransactions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// GetTransaction returns one ledger row.
// GET /transactions/:transactionNo
func (h *Handler) GetTransaction(c *gin.Context) {
	trans, err := h.ledgerService.GetTransaction(c.Request.Context(), c.Param("transactionNo"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, trans)
}

type CreateTransactionRequest struct {
	FromUserID            int64  `json:"from_user_id"`
	ToUserID              int64  `json:"to_user_id"`
	ServiceID             *int64 `json:"service_id"`
	SkillcoinsTransferred int64  `json:"skillcoins_transferred"`
	Description           string `json:"description"`
}

// CreateTransaction pays the provider of a service.
// POST /transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body: "+err.Error())
		return
	}
	if !actAs(c, req.FromUserID) {
		return
	}

	trans, err := h.ledgerService.TransferForService(c.Request.Context(), &service.ServiceTransferRequest{
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		ServiceID:   req.ServiceID,
		Amount:      req.SkillcoinsTransferred,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, gin.H{
		"message":     "Transaction created",
		"transaction": trans,
	})
}

// ============================================================
// Donations
// ============================================================

// ListDonations returns donations given or received by userId, or all of them.
// GET /donations?userId=xxx
func (h *Handler) ListDonations(c *gin.Context) {
	var filter *int64
	if c.Query("userId") != "" {
		userID, ok := userIDParam(c, "userId")
		if !ok {
			return
		}
		filter = &userID
	}

	list, err := h.donationService.ListDonations(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

type DonateRequest struct {
	FromUserID int64  `json:"from_user_id"`
	ToUserID   *int64 `json:"to_user_id"`
	Amount     int64  `json:"amount"`
	Message    string `json:"message"`
}

// Donate gives coins to another user or to the community account.
// POST /donations
func (h *Handler) Donate(c *gin.Context) {
	var req DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body: "+err.Error())
		return
	}
	if !actAs(c, req.FromUserID) {
		return
	}

	result, err := h.donationService.Donate(c.Request.Context(), &service.DonationRequest{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		Message:    req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, gin.H{
		"message":     "Donation successful",
		"donation":    result.Donation,
		"transaction": result.Transaction,
	})
}
