package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMessages(t *testing.T) {
	msg := MagicLinkMessage("a@example.com", "https://x/verify?token=abc", "abc")
	assert.Equal(t, "a@example.com", msg.To)
	assert.Contains(t, msg.Text, "https://x/verify?token=abc")
	assert.Contains(t, msg.Text, "--token abc")

	msg = ConfirmationMessage("a@example.com", "https://x/verify?token=def", "def")
	assert.Contains(t, msg.Text, "--type signup --token def")
	assert.Contains(t, msg.HTML, `href="https://x/verify?token=def"`)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", Text: "body"}))
	entries := logs.FilterMessage("email").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a@example.com", entries[0].ContextMap()["to"])
}

func TestOutbox(t *testing.T) {
	var o Outbox
	require.NoError(t, o.Send(context.Background(), Message{To: "a@example.com", Subject: "1"}))
	require.NoError(t, o.Send(context.Background(), Message{To: "b@example.com", Subject: "2"}))
	require.NoError(t, o.Send(context.Background(), Message{To: "a@example.com", Subject: "3"}))

	assert.Len(t, o.Messages(), 3)
	last, ok := o.Last("a@example.com")
	require.True(t, ok)
	assert.Equal(t, "3", last.Subject)
	_, ok = o.Last("c@example.com")
	assert.False(t, ok)
}

func TestSendGridSender(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if r.URL.Path != sendgridEndpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("sg-key", "ScanSetu", "noreply@scansetu.local", srv.URL)
	require.NoError(t, s.Send(context.Background(), MagicLinkMessage("a@example.com", "https://x", "tok")))

	assert.Equal(t, "Bearer sg-key", auth)
	from := body["from"].(map[string]any)
	assert.Equal(t, "noreply@scansetu.local", from["email"])
	personalizations := body["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	assert.Equal(t, "Your ScanSetu sign-in link", personalizations[0].(map[string]any)["subject"])
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("bad", "ScanSetu", "noreply@scansetu.local", srv.URL)
	err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "x", Text: "y", HTML: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
