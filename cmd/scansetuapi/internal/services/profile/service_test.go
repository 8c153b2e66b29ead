package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/dbtest"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
)

func newService(t *testing.T) (*Service, *events.Hub, repository.UserRepository) {
	t.Helper()
	db := dbtest.Open(t)
	hub := events.NewHub()
	svc := NewService(
		repository.NewBunProfileRepository(db),
		repository.NewBunAdminEmailRepository(db),
		hub,
		nil,
	)
	return svc, hub, repository.NewBunUserRepository(db)
}

func createUser(t *testing.T, users repository.UserRepository, email string) auth.Principal {
	t.Helper()
	u := &models.User{Email: email, Provider: models.ProviderEmail}
	require.NoError(t, users.Create(context.Background(), u))
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: models.RoleStudent}
}

func TestUpsert_RoleFromAllowList(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newService(t)
	require.NoError(t, svc.AddAdmin(ctx, "Admin@Example.com"))

	admin := createUser(t, users, "admin@example.com")
	student := createUser(t, users, "student@example.com")

	require.NoError(t, svc.Upsert(ctx, admin, admin.UserID, "admin@example.com", "Asha Rao"))
	require.NoError(t, svc.Upsert(ctx, student, student.UserID, "", "Rohan Kumar"))

	p, err := svc.Get(ctx, admin, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.Equal(t, "Asha Rao", p.FullName)

	p, err = svc.Get(ctx, student, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, p.Role)
	assert.Equal(t, "student@example.com", p.Email)

	role, err := svc.Role(ctx, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
}

func TestUpsert_SubmittedEmailDoesNotGrantAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newService(t)
	require.NoError(t, svc.AddAdmin(ctx, "admin@example.com"))
	student := createUser(t, users, "student@example.com")

	require.NoError(t, svc.Upsert(ctx, student, student.UserID, "admin@example.com", ""))
	role, err := svc.Role(ctx, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
}

func TestUpsert_KeepsFullNameWhenOmitted(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newService(t)
	student := createUser(t, users, "student@example.com")

	require.NoError(t, svc.Upsert(ctx, student, student.UserID, "", "Rohan Kumar"))
	require.NoError(t, svc.Upsert(ctx, student, student.UserID, "", ""))

	p, err := svc.Get(ctx, student, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Rohan Kumar", p.FullName)
}

func TestUpsert_OtherUserForbidden(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newService(t)
	a := createUser(t, users, "a@example.com")
	b := createUser(t, users, "b@example.com")

	assert.ErrorIs(t, svc.Upsert(ctx, a, b.UserID, "", ""), ErrForbidden)
}

func TestGet_ZeroRowsAndVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newService(t)
	a := createUser(t, users, "a@example.com")
	b := createUser(t, users, "b@example.com")

	p, err := svc.Get(ctx, a, a.UserID)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, svc.Upsert(ctx, b, b.UserID, "", "B"))
	p, err = svc.Get(ctx, a, b.UserID)
	require.NoError(t, err)
	assert.Nil(t, p, "students cannot read other profiles")

	a.Role = models.RoleAdmin
	p, err = svc.Get(ctx, a, b.UserID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "B", p.FullName)

	role, err := svc.Role(ctx, a.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
}

func TestAdminAllowList_ReevaluatesAndPublishes(t *testing.T) {
	ctx := context.Background()
	svc, hub, users := newService(t)
	u := createUser(t, users, "ta@example.com")
	require.NoError(t, svc.Upsert(ctx, u, u.UserID, "", "TA"))

	ch, cancel := hub.Subscribe(u.UserID)
	defer cancel()

	require.NoError(t, svc.AddAdmin(ctx, "ta@example.com"))
	role, err := svc.Role(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
	assert.Equal(t, events.Event{Kind: events.KindUserUpdated, UserID: u.UserID}, <-ch)

	list, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ta@example.com", list[0].Email)

	require.NoError(t, svc.RemoveAdmin(ctx, "ta@example.com"))
	role, err = svc.Role(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
	assert.Equal(t, events.KindUserUpdated, (<-ch).Kind)

	require.NoError(t, svc.SeedAdmins(ctx, []string{"x@example.com", "y@example.com"}))
	list, err = svc.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
