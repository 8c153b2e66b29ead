// Package mail delivers confirmation and magic-link emails.
package mail

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ConfirmationMessage asks a new user to confirm their address. The token
// is included for terminal clients that cannot follow the link.
func ConfirmationMessage(to, link, token string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your ScanSetu account",
		Text: fmt.Sprintf("Follow this link to confirm your account:\n\n%s\n\n"+
			"Or run: scansetuctl auth verify --type signup --token %s\n", link, token),
		HTML: fmt.Sprintf(`<p>Follow this link to confirm your account:</p><p><a href="%s">Confirm your email</a></p>`+
			`<p>Or run <code>scansetuctl auth verify --type signup --token %s</code></p>`, link, token),
	}
}

// MagicLinkMessage carries a one-time sign-in link.
func MagicLinkMessage(to, link, token string) Message {
	return Message{
		To:      to,
		Subject: "Your ScanSetu sign-in link",
		Text: fmt.Sprintf("Follow this link to sign in:\n\n%s\n\n"+
			"Or run: scansetuctl auth verify --token %s\n", link, token),
		HTML: fmt.Sprintf(`<p>Follow this link to sign in:</p><p><a href="%s">Sign in</a></p>`+
			`<p>Or run <code>scansetuctl auth verify --token %s</code></p>`, link, token),
	}
}

// LogSender writes messages to the log. Used when no mail provider is
// configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

// Outbox records messages in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// Send implements Sender.
func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of what was sent.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the most recent message sent to addr.
func (o *Outbox) Last(addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].To == addr {
			return o.messages[i], true
		}
	}
	return Message{}, false
}
