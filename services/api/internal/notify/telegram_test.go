package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_Notify(t *testing.T) {
	var gotPath string
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = jsoniter.ConfigFastest.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	tg, err := NewTelegram("123:abc", "-100200", WithTelegramBaseURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), "No borrowings overdue today!"))
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, sendMessageRequest{ChatID: "-100200", Text: "No borrowings overdue today!"}, got)
}

func TestTelegram_NotifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "api rejects", status: http.StatusBadRequest, body: `{"ok":false,"description":"Bad Request: chat not found"}`, wantMsg: "chat not found"},
		{name: "ok false", status: http.StatusOK, body: `{"ok":false,"description":"flood"}`, wantMsg: "flood"},
		{name: "not json", status: http.StatusBadGateway, body: `<html>`, wantMsg: "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tg, err := NewTelegram("t", "c", WithTelegramBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			require.NoError(t, err)

			err = tg.Notify(context.Background(), "hello")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNewTelegram_RequiresCredentials(t *testing.T) {
	_, err := NewTelegram("", "chat")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewTelegram("token", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
