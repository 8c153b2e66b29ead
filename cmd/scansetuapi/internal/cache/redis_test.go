package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_BypassedWithoutClient(t *testing.T) {
	ctx := context.Background()
	r := NewRedis(nil, time.Minute, nil)
	assert.False(t, r.Enabled())

	require.NoError(t, r.SetJSON(ctx, "k", map[string]int{"a": 1}))
	var out map[string]int
	found, err := r.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, r.Delete(ctx, "k"))

	var nilCache *Redis
	assert.False(t, nilCache.Enabled())
}

func TestConnect_EmptyOrInvalidURL(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), "", nil))
	assert.Nil(t, Connect(context.Background(), "::not-a-url", nil))
}
