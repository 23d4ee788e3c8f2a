// SPDX-License-Identifier: MIT

package device

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/store"
)

func newTestQueue(t *testing.T) *CommandQueue {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewCommandQueue(s)
}

func TestEnqueueAndDrainFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "frame-1", "stay_awake", 30_000)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "frame-1", "update_now", 0)
	require.NoError(t, err)

	cmds, err := q.Drain(ctx, "frame-1")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "stay_awake", cmds[0].Command)
	assert.Equal(t, int64(30_000), cmds[0].DurationMS)
	assert.Equal(t, "update_now", cmds[1].Command)

	// The drain was destructive: the queue is now empty.
	cmds, err = q.Drain(ctx, "frame-1")
	require.NoError(t, err)
	assert.Empty(t, cmds)
	assert.NotNil(t, cmds, "empty drain returns [], not null")
}

func TestEnqueueValidation(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "", "stay_awake", 0)
	require.ErrorIs(t, err, ErrBadStatus)

	_, err = q.Enqueue(ctx, "frame-1", "self_destruct", 0)
	require.ErrorIs(t, err, ErrBadStatus)
}

func TestEnqueueTruncatesToNewest(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < maxQueuedCommands+5; i++ {
		cmd := "stay_awake"
		if i%2 == 1 {
			cmd = "update_now"
		}
		_, err := q.Enqueue(ctx, "frame-1", cmd, int64(i))
		require.NoError(t, err)
	}

	cmds, err := q.Drain(ctx, "frame-1")
	require.NoError(t, err)
	require.Len(t, cmds, maxQueuedCommands)
	assert.Equal(t, int64(5), cmds[0].DurationMS, "oldest five dropped")
	assert.Equal(t, int64(maxQueuedCommands+4), cmds[len(cmds)-1].DurationMS)
}

func TestQueuesAreIndependent(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, fmt.Sprintf("frame-%d", i), "stay_awake", 0)
		require.NoError(t, err)
	}

	cmds, err := q.Drain(ctx, "frame-1")
	require.NoError(t, err)
	assert.Len(t, cmds, 1)

	cmds, err = q.Drain(ctx, "frame-2")
	require.NoError(t, err)
	assert.Len(t, cmds, 1)
}
