package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterStore_GetLimiter(t *testing.T) {
	store := NewLimiterStore(rate.Every(time.Second), 1)

	a := store.GetLimiter("price")
	assert.Same(t, a, store.GetLimiter("price"))
	assert.NotSame(t, a, store.GetLimiter("search"))
}

func TestLimiterStore_Wait(t *testing.T) {
	store := NewLimiterStore(rate.Every(time.Hour), 1)

	throttled, err := store.Wait(context.Background(), "price")
	require.NoError(t, err)
	assert.False(t, throttled)

	// The bucket is empty and the next token is an hour away.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	throttled, err = store.Wait(ctx, "price")
	assert.True(t, throttled)
	assert.Error(t, err)

	// Other keys have their own budget.
	throttled, err = store.Wait(context.Background(), "search")
	require.NoError(t, err)
	assert.False(t, throttled)
}
