package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/cache"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
)

type fakeRepo struct {
	counts      map[string]int64
	failures    map[string]error
	activity    []models.RecentActivity
	assignments map[string][]models.MyAssignment
}

func (f *fakeRepo) count(name string) (int64, error) {
	if err := f.failures[name]; err != nil {
		return 0, err
	}
	return f.counts[name], nil
}

func (f *fakeRepo) CountProducts(context.Context) (int64, error) { return f.count("products") }

func (f *fakeRepo) CountItemsByStatus(_ context.Context, status string) (int64, error) {
	return f.count(status)
}

func (f *fakeRepo) CountOverdue(context.Context, time.Time) (int64, error) { return f.count("overdue") }

func (f *fakeRepo) RecentActivity(_ context.Context, limit int) ([]models.RecentActivity, error) {
	if err := f.failures["activity"]; err != nil {
		return nil, err
	}
	if limit > len(f.activity) {
		limit = len(f.activity)
	}
	return f.activity[:limit], nil
}

func (f *fakeRepo) AssignmentsForUser(_ context.Context, userID string) ([]models.MyAssignment, error) {
	return f.assignments[userID], nil
}

func newRepo() *fakeRepo {
	holders := []string{"Rohan Kumar", "Priya Singh"}
	statuses := []string{"Issued", "In Stock"}
	var rows []models.RecentActivity
	for i := 0; i < 8; i++ {
		rows = append(rows, models.RecentActivity{
			Code:    "objA" + string(rune('1'+i)),
			Product: "Spanner Set A",
			Holder:  holders[i%2],
			Status:  statuses[i%2],
		})
	}
	return &fakeRepo{
		counts: map[string]int64{
			"products":         24,
			models.ItemInStock: 168,
			models.ItemIssued:  27,
			"overdue":          2,
		},
		failures: map[string]error{},
		activity: rows,
		assignments: map[string][]models.MyAssignment{
			"user-1": {{ID: "a1", Code: "objA1", Product: "Spanner Set A", Status: models.AssignmentIssued}},
		},
	}
}

func int64p(n int64) *int64 { return &n }

func TestStats(t *testing.T) {
	svc := NewService(newRepo(), cache.NewRedis(nil, time.Minute, nil), nil)
	stats := svc.Stats(context.Background())
	assert.Equal(t, Stats{
		TotalProducts:   int64p(24),
		ItemsInStock:    int64p(168),
		CurrentlyIssued: int64p(27),
		Overdue:         int64p(2),
	}, stats)
	assert.NoError(t, svc.InvalidateStats(context.Background()))
}

func TestStats_PerFieldFailure(t *testing.T) {
	repo := newRepo()
	repo.failures["overdue"] = errors.New("db down")
	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(repo, cache.NewRedis(nil, time.Minute, nil), zap.New(core))

	stats := svc.Stats(context.Background())
	assert.Equal(t, int64p(24), stats.TotalProducts)
	assert.Nil(t, stats.Overdue)

	entries := logs.FilterMessage("inventory count failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "overdue", entries[0].ContextMap()["count"])
}

func TestRecentActivity(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newRepo(), cache.NewRedis(nil, time.Minute, nil), nil)

	rows, err := svc.RecentActivity(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, rows, DefaultActivityLimit)

	rows, err = svc.RecentActivity(ctx, 2, `status == "Issued"`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "Issued", r.Status)
		assert.Equal(t, "Rohan Kumar", r.Holder)
	}

	rows, err = svc.RecentActivity(ctx, 10, `holder == "Priya Singh" and code == "objA2"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "objA2", rows[0].Code)

	_, err = svc.RecentActivity(ctx, 5, `status ==`)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestRecentActivity_RepositoryError(t *testing.T) {
	repo := newRepo()
	repo.failures["activity"] = errors.New("db down")
	svc := NewService(repo, cache.NewRedis(nil, time.Minute, nil), nil)

	_, err := svc.RecentActivity(context.Background(), 6, "")
	assert.Error(t, err)
}

func TestMyAssignments(t *testing.T) {
	svc := NewService(newRepo(), cache.NewRedis(nil, time.Minute, nil), nil)
	rows, err := svc.MyAssignments(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "objA1", rows[0].Code)

	rows, err = svc.MyAssignments(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
