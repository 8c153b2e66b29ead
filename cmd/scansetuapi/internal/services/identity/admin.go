package identity

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
)

// Operator actions used by the admin CLI.

func (s *Service) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ConfirmUser marks an address confirmed without an emailed link.
func (s *Service) ConfirmUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Confirmed() {
		return user, nil
	}
	now := s.now()
	if err := s.users.MarkConfirmed(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.EmailConfirmedAt = &now
	return user, nil
}

// SetDisabled disables or re-enables a user. Disabling ends every session.
func (s *Service) SetDisabled(ctx context.Context, email string, disabled bool) (*models.User, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var at *time.Time
	if disabled {
		now := s.now()
		at = &now
	}
	if err := s.users.SetDisabled(ctx, user.ID, at); err != nil {
		return nil, err
	}
	user.DisabledAt = at
	if disabled {
		if _, err := s.RevokeSessions(ctx, email); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// RevokeSessions ends every session of a user and returns how many were
// active.
func (s *Service) RevokeSessions(ctx context.Context, email string) (int, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	ids, err := s.sessions.RevokeByUserID(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.Event{Kind: events.KindSignedOut, UserID: user.ID})
	return len(ids), nil
}

// CleanupExpired deletes sessions and one-time tokens past their expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int64, int64, error) {
	now := s.now()
	sessions, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	tokens, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return sessions, 0, err
	}
	if sessions > 0 || tokens > 0 {
		s.logger.Debug("expired rows removed", zap.Int64("sessions", sessions), zap.Int64("tokens", tokens))
	}
	return sessions, tokens, nil
}
