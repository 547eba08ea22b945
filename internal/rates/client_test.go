package rates

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUSDCToIDR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd-coin", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"usd-coin":{"idr":16234.5}}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL}, nil, testLogger())

	rate, err := c.USDCToIDR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16234.5, rate)
}

func TestUSDCToIDRFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL}, nil, testLogger())

	rate, err := c.USDCToIDR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackUSDCIDR, rate)
}

func TestUSDCToIDRRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usd-coin":{}}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL}, nil, testLogger())

	// Missing rate degrades to the fallback rather than erroring.
	rate, err := c.USDCToIDR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackUSDCIDR, rate)
}
