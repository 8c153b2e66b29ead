package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/scansetu/scansetu/pkg/authctx"
)

const (
	minStreamBackoff = time.Second
	maxStreamBackoff = 30 * time.Second
)

// streamMessage is one frame of the server's session event stream.
type streamMessage struct {
	Event     string `json:"event"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// streamEvents keeps a websocket open to the server while credentials
// exist, reconnecting with backoff.
func (a *Auth) streamEvents(ctx context.Context) {
	backoff := minStreamBackoff
	for {
		creds, err := a.store.LoadCredentials()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-a.wake:
				continue
			}
		}

		connected, err := a.readStream(ctx, creds)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = minStreamBackoff
		}
		if err != nil {
			a.logger.Debug("event stream closed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-a.wake:
		case <-time.After(backoff):
			backoff = min(backoff*2, maxStreamBackoff)
		}
	}
}

func (a *Auth) readStream(ctx context.Context, creds *Credentials) (bool, error) {
	wsURL, err := streamURL(a.client.baseURL)
	if err != nil {
		return false, err
	}
	header := http.Header{"Authorization": {"Bearer " + creds.AccessToken}}
	conn, resp, err := a.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial event stream: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial event stream: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	defer a.dropConn()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		a.handleRemote(ctx, msg)
	}
}

func (a *Auth) handleRemote(ctx context.Context, msg streamMessage) {
	creds, err := a.store.LoadCredentials()
	if err != nil || creds.User.ID != msg.UserID {
		return
	}

	switch authctx.EventKind(msg.Event) {
	case authctx.EventSignedOut:
		a.logger.Info("session ended by server", zap.String("user_id", msg.UserID))
		a.clear()
		a.emit(authctx.EventSignedOut, nil)
	case authctx.EventUserUpdated:
		if u, err := a.User(ctx); err == nil {
			creds.User = *u
			if err := a.store.SaveCredentials(creds); err != nil {
				a.logger.Warn("save credentials failed", zap.Error(err))
			}
		} else {
			a.logger.Warn("user refresh failed", zap.Error(err))
		}
		a.emit(authctx.EventUserUpdated, creds)
	}
}

// resetStream reconnects the event stream with the current credentials.
func (a *Auth) resetStream() {
	a.dropConn()
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Auth) dropConn() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func streamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL + "/auth/v1/events")
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported server URL scheme: " + u.Scheme)
	}
	return u.String(), nil
}
