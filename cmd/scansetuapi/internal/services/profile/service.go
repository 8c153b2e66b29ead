// Package profile provisions profile rows and owns the admin allow-list that
// decides each profile's role.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
)

// ErrForbidden is returned when a caller writes a profile other than its own.
var ErrForbidden = errors.New("profile belongs to another user")

// Service manages profiles.
type Service struct {
	profiles repository.ProfileRepository
	admins   repository.AdminEmailRepository
	events   events.Publisher
	logger   *zap.Logger
}

// NewService creates a profile service. publisher may be nil.
func NewService(profiles repository.ProfileRepository, admins repository.AdminEmailRepository, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{profiles: profiles, admins: admins, events: publisher, logger: logger}
}

// Upsert writes the caller's profile. The role is recomputed from the
// allow-list using the authenticated email, never the submitted one.
func (s *Service) Upsert(ctx context.Context, caller auth.Principal, id, email, fullName string) error {
	if id != caller.UserID {
		return ErrForbidden
	}
	role, err := s.roleFor(ctx, caller.Email)
	if err != nil {
		return err
	}
	if email == "" {
		email = caller.Email
	}
	return s.profiles.Upsert(ctx, &models.Profile{
		ID:       id,
		Email:    email,
		FullName: strings.TrimSpace(fullName),
		Role:     role,
	})
}

// Get returns the profile row for id, or nil when the caller may not see it
// or it does not exist. Admins see every row.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (*models.Profile, error) {
	if id != caller.UserID && caller.Role != models.RoleAdmin {
		return nil, nil
	}
	p, err := s.profiles.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Role returns the stored role for userID; users without a profile row
// are students.
func (s *Service) Role(ctx context.Context, userID string) (string, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.RoleStudent, nil
	}
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

func (s *Service) roleFor(ctx context.Context, email string) (string, error) {
	if email == "" {
		return models.RoleStudent, nil
	}
	ok, err := s.admins.Contains(ctx, email)
	if err != nil {
		return "", err
	}
	if ok {
		return models.RoleAdmin, nil
	}
	return models.RoleStudent, nil
}

// AddAdmin puts email on the allow-list and promotes its profile, if any.
func (s *Service) AddAdmin(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if err := s.admins.Add(ctx, email); err != nil {
		return err
	}
	return s.reevaluate(ctx, email, models.RoleAdmin)
}

// RemoveAdmin takes email off the allow-list and demotes its profile, if any.
func (s *Service) RemoveAdmin(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if err := s.admins.Remove(ctx, email); err != nil {
		return err
	}
	return s.reevaluate(ctx, email, models.RoleStudent)
}

// ListAdmins returns the allow-list.
func (s *Service) ListAdmins(ctx context.Context) ([]models.AdminEmail, error) {
	return s.admins.List(ctx)
}

// SeedAdmins adds every address to the allow-list.
func (s *Service) SeedAdmins(ctx context.Context, emails []string) error {
	for _, email := range emails {
		if err := s.AddAdmin(ctx, email); err != nil {
			return fmt.Errorf("seed admin %s: %w", email, err)
		}
	}
	return nil
}

func (s *Service) reevaluate(ctx context.Context, email, role string) error {
	p, err := s.profiles.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Role == role {
		return nil
	}
	if err := s.profiles.SetRole(ctx, p.ID, role); err != nil {
		return err
	}
	s.logger.Info("profile role changed", zap.String("user_id", p.ID), zap.String("role", role))

	if s.events != nil {
		ev := events.Event{Kind: events.KindUserUpdated, UserID: p.ID}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish event failed", zap.String("event", string(ev.Kind)), zap.Error(err))
		}
	}
	return nil
}
