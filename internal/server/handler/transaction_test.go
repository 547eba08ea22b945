package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

type fakeTransactionService struct {
	wallet string
	opts   domain.ListOpts
}

func (f *fakeTransactionService) Record(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	return tx, nil
}

func (f *fakeTransactionService) History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Transaction, error) {
	f.wallet = wallet
	f.opts = opts
	return nil, nil
}

func TestListRequiresWallet(t *testing.T) {
	h := NewTransactionHandler(&fakeTransactionService{}, testLogger())

	rec := doRequest(t, h.List, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTimeFilters(t *testing.T) {
	svc := &fakeTransactionService{}
	h := NewTransactionHandler(svc, testLogger())

	// RFC 3339 and epoch-second forms are both accepted.
	rec := doRequest(t, h.List, http.MethodGet,
		"/api/transactions?wallet=0xabc&since=1764547200&until=2026-06-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "0xabc", svc.wallet)
	require.NotNil(t, svc.opts.Since)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), svc.opts.Since.UTC())
	require.NotNil(t, svc.opts.Until)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), svc.opts.Until.UTC())

	// Garbage filters are ignored rather than failing the request.
	rec = doRequest(t, h.List, http.MethodGet, "/api/transactions?wallet=0xabc&since=yesterday", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.opts.Since)
}
