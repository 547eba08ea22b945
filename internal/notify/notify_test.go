package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

type captureSender struct {
	titles   []string
	messages []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventFilter(t *testing.T) {
	sink := &captureSender{}
	n := NewNotifier([]Sender{sink}, []string{EventPositionOpened}, testLogger())
	ctx := context.Background()

	pos := domain.Position{
		Wallet: "0xabc", Protocol: "moonwell", Token: "USDC",
		Principal: decimal.RequireFromString("100"), APYSnapshot: 5.2,
	}

	require.NoError(t, n.PositionOpened(ctx, pos))
	require.NoError(t, n.AdvisoryRejected(ctx, "0xabc", "degen", "not trusted"))

	require.Len(t, sink.titles, 1, "filtered events must not reach senders")
	assert.Equal(t, "Position opened", sink.titles[0])
	assert.Contains(t, sink.messages[0], "moonwell")
	assert.Contains(t, sink.messages[0], "5.20%")
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Position closed", "wallet 0xabc withdrew 60 USDC"))

	assert.Equal(t, "yieldrouter", got.Username)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Position closed", got.Embeds[0].Title)
	assert.Contains(t, got.Embeds[0].Description, "0xabc")
	assert.Equal(t, embedColor, got.Embeds[0].Color)
}

func TestTelegramSenderPostsHTML(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("token", "chat42")
	s.baseURL = srv.URL

	require.NoError(t, s.Send(context.Background(), "Deposit blocked", `reason: APY > 50%`))

	assert.Equal(t, "chat42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	text, _ := got["text"].(string)
	assert.Contains(t, text, "<b>Deposit blocked</b>")
	// Body content is escaped, never interpreted as markup.
	assert.Contains(t, text, "APY &gt; 50%")
}

func TestSenderFailureReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.ErrorContains(t, err, "unexpected status 404")
}
