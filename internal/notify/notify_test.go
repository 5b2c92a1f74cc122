package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	name string
	err  error
	sent []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.sent = append(f.sent, title)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{"trade_listed", " "}, 0, discard())

	require.NoError(t, n.Notify(context.Background(), "trade_listed", "one", ""))
	require.NoError(t, n.Notify(context.Background(), "other", "two", ""))
	assert.Equal(t, []string{"one"}, s.sent)
}

func TestNotifier_EmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, 0, discard())
	require.NoError(t, n.Notify(context.Background(), "anything", "x", ""))
	assert.Len(t, s.sent, 1)
	assert.True(t, n.Enabled())
	assert.False(t, NewNotifier(nil, nil, 0, discard()).Enabled())
}

func TestNotifier_OneFailingSenderDoesNotStopOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, 0, discard())

	err := n.Notify(context.Background(), "e", "t", "m")
	assert.ErrorContains(t, err, "bad: boom")
	assert.Len(t, good.sent, 1)
}

func TestNotifier_RateCap(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, 2, discard())
	for i := 0; i < 5; i++ {
		require.NoError(t, n.Notify(context.Background(), "e", "t", ""))
	}
	assert.Len(t, s.sent, 2)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), "New offer", "100 DAI"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*New offer*\n100 DAI", got["text"])
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	assert.ErrorContains(t, err, "discord: unexpected status 404")
}
