package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/ledger"
	"github.com/deqrypt/yieldrouter/internal/service"
)

type fakeLendingService struct {
	depositErr  error
	withdrawErr error
	infoErr     error
	position    domain.Position
	withdrawRes ledger.WithdrawResult
}

func (f *fakeLendingService) Recommend(ctx context.Context, amount decimal.Decimal) (service.RecommendResult, error) {
	return service.RecommendResult{
		Recommendation: domain.Recommendation{Protocol: "moonwell", APY: 5.0, Safe: true},
		Projections:    service.Project(amount, 5.0),
	}, nil
}

func (f *fakeLendingService) Deposit(ctx context.Context, req service.DepositRequest) (domain.Position, error) {
	if f.depositErr != nil {
		return domain.Position{}, f.depositErr
	}
	return f.position, nil
}

func (f *fakeLendingService) Withdraw(ctx context.Context, req service.WithdrawRequest) (ledger.WithdrawResult, error) {
	if f.withdrawErr != nil {
		return ledger.WithdrawResult{}, f.withdrawErr
	}
	return f.withdrawRes, nil
}

func (f *fakeLendingService) Info(ctx context.Context, wallet string) (service.PortfolioResult, error) {
	if f.infoErr != nil {
		return service.PortfolioResult{}, f.infoErr
	}
	return service.PortfolioResult{}, nil
}

func (f *fakeLendingService) Sync(ctx context.Context, wallet string) (service.SyncResult, error) {
	return service.SyncResult{Wallet: wallet}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestDepositValidation(t *testing.T) {
	h := NewLendingHandler(&fakeLendingService{}, testLogger())

	rec := doRequest(t, h.Deposit, http.MethodPost, "/api/lending/deposit", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h.Deposit, http.MethodPost, "/api/lending/deposit",
		`{"protocol":"moonwell","token":"USDC","amount":"100"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h.Deposit, http.MethodPost, "/api/lending/deposit",
		`{"wallet_address":"0xabc","token":"USDC","amount":"100"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// auto mode does not require a protocol
	svc := &fakeLendingService{position: domain.Position{ID: "p1"}}
	h = NewLendingHandler(svc, testLogger())
	rec = doRequest(t, h.Deposit, http.MethodPost, "/api/lending/deposit",
		`{"wallet_address":"0xabc","token":"USDC","amount":"100","auto":true}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDepositErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"advisory rejection", &domain.AdvisoryRejectedError{Reason: "APY too high"}, http.StatusBadRequest},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"invalid apy", domain.ErrInvalidAPY, http.StatusUnprocessableEntity},
		{"duplicate tx", domain.ErrAlreadyExists, http.StatusConflict},
		{"chain failure", &domain.OnChainError{Op: "deposit", Err: domain.ErrNotFound}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewLendingHandler(&fakeLendingService{depositErr: tc.err}, testLogger())
			rec := doRequest(t, h.Deposit, http.MethodPost, "/api/lending/deposit",
				`{"wallet_address":"0xabc","protocol":"moonwell","token":"USDC","amount":"100","apy":5}`)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestDepositAdvisoryReasonSurfaced(t *testing.T) {
	h := NewLendingHandler(&fakeLendingService{
		depositErr: &domain.AdvisoryRejectedError{Reason: "protocol \"degen\" is not on the trusted list"},
	}, testLogger())

	rec := doRequest(t, h.Deposit, http.MethodPost, "/api/lending/deposit",
		`{"wallet_address":"0xabc","protocol":"degen","token":"USDC","amount":"100","apy":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "not on the trusted list")
}

func TestWithdrawErrorMapping(t *testing.T) {
	h := NewLendingHandler(&fakeLendingService{withdrawErr: domain.ErrPositionNotFound}, testLogger())

	rec := doRequest(t, h.Withdraw, http.MethodPost, "/api/lending/withdraw",
		`{"position_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithdrawDefaultsToFullAmount(t *testing.T) {
	svc := &fakeLendingService{
		withdrawRes: ledger.WithdrawResult{
			Position:  domain.Position{ID: "p1"},
			Withdrawn: decimal.RequireFromString("100"),
			Profit:    decimal.RequireFromString("2"),
			Remaining: decimal.Zero,
			Closed:    true,
		},
	}
	h := NewLendingHandler(svc, testLogger())

	rec := doRequest(t, h.Withdraw, http.MethodPost, "/api/lending/withdraw",
		`{"position_id":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body withdrawResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Closed)
	assert.Equal(t, "100", body.Withdrawn.String())
}

func TestProjectQueryValidation(t *testing.T) {
	h := NewLendingHandler(&fakeLendingService{}, testLogger())

	rec := doRequest(t, h.Project, http.MethodGet, "/api/lending/project?amount=-5&apy=5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h.Project, http.MethodGet, "/api/lending/project?amount=100&apy=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h.Project, http.MethodGet, "/api/lending/project?amount=100&apy=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Projections []service.Projection `json:"projections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Projections, 3)
	assert.Equal(t, "1_year", body.Projections[2].Label)
	// 100 at 10% for a full year is 10.
	assert.True(t, body.Projections[2].Profit.Equal(decimal.RequireFromString("10")))
}

func TestInfoRequiresWallet(t *testing.T) {
	h := NewLendingHandler(&fakeLendingService{}, testLogger())

	rec := doRequest(t, h.Info, http.MethodPost, "/api/lending/info", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h.Info, http.MethodPost, "/api/lending/info", `{"wallet_address":"0xabc"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
