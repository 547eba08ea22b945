package yields

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

func TestTopPoolsFiltersAndRanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pools", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"chain":"Base","project":"moonwell","symbol":"USDC","tvlUsd":50000000,"apy":6.1,"pool":"p1"},
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":300000000,"apy":4.2,"pool":"p2"},
			{"chain":"Base","project":"shady-farm","symbol":"USDC","tvlUsd":1000,"apy":900,"pool":"p3"},
			{"chain":"Ethereum","project":"aave-v3","symbol":"USDC","tvlUsd":900000000,"apy":3.9,"pool":"p4"},
			{"chain":"Base","project":"spark","symbol":"DAI","tvlUsd":80000000,"apy":5.0,"pool":"p5"},
			{"chain":"Base","project":"compound-v3","symbol":"USDC","tvlUsd":200000000,"apy":0,"pool":"p6"},
			{"chain":"Base","project":"spark","symbol":"USDC","tvlUsd":90000000,"apy":5.5,"pool":"p7"}
		]}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL}, nil, testLogger())

	pools, err := c.TopPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 3)

	assert.Equal(t, "moonwell", pools[0].Protocol)
	assert.Equal(t, "spark", pools[1].Protocol)
	assert.Equal(t, "aave-v3", pools[2].Protocol)
	assert.Equal(t, "p1", pools[0].PoolID)
}

func TestTopPoolsTruncatesToFive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":1,"apy":1.0,"pool":"a"},
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":1,"apy":2.0,"pool":"b"},
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":1,"apy":3.0,"pool":"c"},
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":1,"apy":4.0,"pool":"d"},
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":1,"apy":5.0,"pool":"e"},
			{"chain":"Base","project":"aave-v3","symbol":"USDC","tvlUsd":1,"apy":6.0,"pool":"f"}
		]}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL}, nil, testLogger())

	pools, err := c.TopPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 5)
	assert.Equal(t, 6.0, pools[0].APY)
	assert.Equal(t, 2.0, pools[4].APY)
}

func TestTopPoolsFallsBackOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL}, nil, testLogger())

	pools, err := c.TopPools(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, pools)
	for _, p := range pools {
		assert.True(t, Trusted(p.Protocol), "fallback pool %s must be trusted", p.Protocol)
	}
}

func TestTrusted(t *testing.T) {
	assert.True(t, Trusted("moonwell"))
	assert.True(t, Trusted("AAVE-V3"))
	assert.False(t, Trusted("shady-farm"))
	assert.False(t, Trusted(""))
}
