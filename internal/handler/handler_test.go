package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"skillexchange/internal/config"
	"skillexchange/internal/infrastructure/lock"
	"skillexchange/internal/model"
	"skillexchange/internal/payment"
	"skillexchange/internal/service"
	"skillexchange/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context, payment.Claim) (*payment.Verification, error) {
	return nil, payment.ErrNotVerified
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T, verifier payment.Verifier, auth *Authenticator) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	locker := lock.NewLocalLocker()
	ledger := service.NewLedgerService(db, locker, "")
	h := NewHandler(
		service.NewWalletService(db),
		ledger,
		service.NewDonationService(db, ledger, locker, 0),
		service.NewCreditService(db, ledger, locker, verifier),
	)
	return &testServer{db: db, router: SetupRouter(h, auth)}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestWalletScenario(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	a := testutil.CreateUser(t, s.db, "alice", 100)
	b := testutil.CreateUser(t, s.db, "bob", 0)

	w := s.do(t, http.MethodPost, "/wallet/credit", gin.H{
		"userId": a.ID, "amount": 500, "reference": "ref-1", "transactionId": "4099",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["duplicate"])
	assert.EqualValues(t, 600, body["skillcoins"])

	w = s.do(t, http.MethodPost, "/api/v1/donations", gin.H{
		"from_user_id": a.ID, "to_user_id": b.ID, "amount": 50,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Donation successful", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/wallet?userId="+strconv.FormatInt(a.ID, 10), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view service.WalletView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, int64(550), view.Wallet.Skillcoins)
	require.Len(t, view.Transactions, 2)
	assert.Equal(t, model.DirectionSpent, view.Transactions[0].Direction)
	assert.Equal(t, model.TransactionTypePurchased, view.Transactions[1].TransactionType)

	assert.Equal(t, int64(50), testutil.Balance(t, s.db, b.ID))
	assert.Equal(t, int64(1), testutil.Count(t, s.db, &model.Donation{}))

	w = s.do(t, http.MethodGet, "/donations?userId="+strconv.FormatInt(b.ID, 10), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var donations []model.Donation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &donations))
	assert.Len(t, donations, 1)
}

func TestDuplicateCredit(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	a := testutil.CreateUser(t, s.db, "alice", 0)
	req := gin.H{"userId": a.ID, "amount": 20, "reference": "ref", "transactionId": "77"}

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/wallet/credit", req, "").Code)
	w := s.do(t, http.MethodPost, "/wallet/credit", req, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, int64(20), testutil.Balance(t, s.db, a.ID))
}

func TestCreditClaimOnAnotherUsersPayment(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	a := testutil.CreateUser(t, s.db, "alice", 0)
	b := testutil.CreateUser(t, s.db, "bob", 0)

	w := s.do(t, http.MethodPost, "/wallet/credit", gin.H{
		"userId": a.ID, "amount": 20, "reference": "ref-alice", "transactionId": "77",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/wallet/credit", gin.H{
		"userId": b.ID, "amount": 20, "reference": "ref-bob", "transactionId": "77",
	}, "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, http.StatusConflict, body["code"])
	assert.NotContains(t, w.Body.String(), "ref-alice")

	assert.Equal(t, int64(20), testutil.Balance(t, s.db, a.ID))
	assert.Zero(t, testutil.Balance(t, s.db, b.ID))
}

func TestServerErrorCarriesMessage(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	require.NoError(t, s.db.Migrator().DropTable(&model.Transaction{}))

	w := s.do(t, http.MethodGet, "/transactions", nil, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, http.StatusInternalServerError, body["code"])
	msg, _ := body["message"].(string)
	assert.NotEmpty(t, msg)
	assert.NotEqual(t, "internal server error", msg)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	a := testutil.CreateUser(t, s.db, "alice", 10)
	b := testutil.CreateUser(t, s.db, "bob", 0)
	id := strconv.FormatInt(a.ID, 10)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"wallet missing user id", http.MethodGet, "/wallet", nil, http.StatusBadRequest},
		{"wallet malformed user id", http.MethodGet, "/wallet?userId=abc", nil, http.StatusBadRequest},
		{"wallet unknown user", http.MethodGet, "/wallet?userId=999", nil, http.StatusNotFound},
		{"donation overdraft", http.MethodPost, "/donations", gin.H{"from_user_id": a.ID, "to_user_id": b.ID, "amount": 11}, http.StatusUnprocessableEntity},
		{"donation to self", http.MethodPost, "/donations", gin.H{"from_user_id": a.ID, "to_user_id": a.ID, "amount": 1}, http.StatusBadRequest},
		{"donation to unknown", http.MethodPost, "/donations", gin.H{"from_user_id": a.ID, "to_user_id": 999, "amount": 1}, http.StatusNotFound},
		{"community disabled", http.MethodPost, "/donations", gin.H{"from_user_id": a.ID, "amount": 1}, http.StatusBadRequest},
		{"donation zero amount", http.MethodPost, "/donations", gin.H{"from_user_id": a.ID, "to_user_id": b.ID, "amount": 0}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/donations", "not an object", http.StatusBadRequest},
		{"transaction overdraft", http.MethodPost, "/transactions", gin.H{"from_user_id": a.ID, "to_user_id": b.ID, "skillcoins_transferred": 11}, http.StatusUnprocessableEntity},
		{"adjust below zero", http.MethodPatch, "/wallet", gin.H{"userId": a.ID, "adjustment": -11}, http.StatusUnprocessableEntity},
		{"adjust zero", http.MethodPatch, "/wallet", gin.H{"userId": a.ID, "adjustment": 0}, http.StatusBadRequest},
		{"adjust above limit", http.MethodPatch, "/wallet", gin.H{"userId": a.ID, "adjustment": int64(math.MaxInt64)}, http.StatusBadRequest},
		{"donation above limit", http.MethodPost, "/donations", gin.H{"from_user_id": a.ID, "to_user_id": b.ID, "amount": int64(math.MaxInt64)}, http.StatusBadRequest},
		{"transaction above limit", http.MethodPost, "/transactions", gin.H{"from_user_id": a.ID, "to_user_id": b.ID, "skillcoins_transferred": service.MaxAmount + 1}, http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/transactions/TXN-missing", nil, http.StatusNotFound},
		{"credit missing reference", http.MethodPost, "/wallet/credit", gin.H{"userId": a.ID, "amount": 5, "transactionId": "1"}, http.StatusBadRequest},
		{"payments malformed user", http.MethodGet, "/wallet/payments?userId=-" + id, nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, tc.method, tc.path, tc.body, "")
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			body := decode(t, w)
			assert.EqualValues(t, tc.status, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}

	assert.Equal(t, int64(10), testutil.Balance(t, s.db, a.ID))
	assert.Equal(t, int64(0), testutil.Balance(t, s.db, b.ID))
}

func TestCreditNotVerified(t *testing.T) {
	s := newTestServer(t, rejectingVerifier{}, nil)
	a := testutil.CreateUser(t, s.db, "alice", 10)

	w := s.do(t, http.MethodPost, "/wallet/credit", gin.H{
		"userId": a.ID, "amount": 5, "reference": "ref", "transactionId": "1",
	}, "")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, int64(10), testutil.Balance(t, s.db, a.ID))
	assert.Zero(t, testutil.Count(t, s.db, &model.PaymentTransaction{}))
}

func TestTransactionsEndpoints(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	a := testutil.CreateUser(t, s.db, "alice", 40)
	b := testutil.CreateUser(t, s.db, "bob", 0)

	w := s.do(t, http.MethodPost, "/transactions", gin.H{
		"from_user_id": a.ID, "to_user_id": b.ID, "service_id": 3, "skillcoins_transferred": 15,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Transaction created", decode(t, w)["message"])

	w = s.do(t, http.MethodPatch, "/wallet", gin.H{"userId": b.ID, "adjustment": 5}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 20, decode(t, w)["skillcoins"])

	w = s.do(t, http.MethodGet, "/transactions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, model.TransactionTypeAdjustment, list[0].TransactionType)
	assert.Equal(t, model.TransactionTypeService, list[1].TransactionType)

	w = s.do(t, http.MethodGet, "/api/v1/transactions/"+list[1].TransactionNo, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got model.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, list[1].ID, got.ID)
	assert.Equal(t, int64(15), got.SkillcoinsTransferred)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)

	w := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "skillexchange_http_requests_total")
}

func TestAuthentication(t *testing.T) {
	auth := NewAuthenticator(&config.AuthConfig{Enabled: true, Secret: "test-secret", Issuer: "skillexchange"})
	s := newTestServer(t, payment.TrustingVerifier{}, auth)
	a := testutil.CreateUser(t, s.db, "alice", 30)
	b := testutil.CreateUser(t, s.db, "bob", 0)

	aliceToken, err := auth.IssueToken(a.ID, "", time.Hour)
	require.NoError(t, err)
	bobToken, err := auth.IssueToken(b.ID, "", time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.IssueToken(b.ID, RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken(a.ID, "", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewAuthenticator(&config.AuthConfig{Secret: "other", Issuer: "skillexchange"}).IssueToken(a.ID, "", time.Hour)
	require.NoError(t, err)

	donation := gin.H{"from_user_id": a.ID, "to_user_id": b.ID, "amount": 5}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/donations", donation, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/donations", donation, expired).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/donations", donation, foreign).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/donations", donation, bobToken).Code)
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/donations", donation, aliceToken).Code)

	adjust := gin.H{"userId": a.ID, "adjustment": 10}
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, "/wallet", adjust, aliceToken).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, "/wallet", adjust, adminToken).Code)

	assert.Equal(t, int64(35), testutil.Balance(t, s.db, a.ID))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil, "").Code)
}

func TestWithCORS(t *testing.T) {
	s := newTestServer(t, payment.TrustingVerifier{}, nil)
	h := WithCORS(s.router, []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/wallet", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
