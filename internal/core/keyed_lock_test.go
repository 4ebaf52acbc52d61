package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLock(t *testing.T) {
	l := newKeyedLock()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	// other keys are independent
	unlockB, err := l.Lock(context.Background(), "b")
	require.NoError(t, err)
	unlockB()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlockA()
	unlockA()

	unlockA, err = l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockA()

	assert.Empty(t, l.locks)
}
