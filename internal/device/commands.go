// SPDX-License-Identifier: MIT

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/inkframe/inkframe/internal/store"
)

const entityCommands = "commands"

// maxQueuedCommands bounds each device's queue; older items are dropped.
const maxQueuedCommands = 10

// Commands the device understands.
var validCommands = map[string]struct{}{
	"stay_awake":        {},
	"force_update":      {},
	"update_now":        {},
	"enable_streaming":  {},
	"disable_streaming": {},
}

// Command is one queued instruction for a device.
type Command struct {
	Command    string    `json:"command"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceID   string    `json:"deviceId"`
}

type commandQueues map[string][]Command

// CommandQueue is the per-device FIFO the frame drains on each wake.
type CommandQueue struct {
	store store.Store
	now   func() time.Time
}

func NewCommandQueue(s store.Store) *CommandQueue {
	return &CommandQueue{store: s, now: time.Now}
}

// Enqueue appends a command, keeping only the newest maxQueuedCommands.
func (q *CommandQueue) Enqueue(ctx context.Context, deviceID, command string, durationMS int64) (Command, error) {
	if deviceID == "" {
		return Command{}, fmt.Errorf("%w: missing deviceId", ErrBadStatus)
	}
	if _, ok := validCommands[command]; !ok {
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrBadStatus, command)
	}

	cmd := Command{
		Command:    command,
		DurationMS: durationMS,
		Timestamp:  q.now(),
		DeviceID:   deviceID,
	}
	err := store.Mutate(ctx, q.store, entityCommands, func(queues *commandQueues) error {
		if *queues == nil {
			*queues = make(commandQueues)
		}
		(*queues)[deviceID] = appendBounded((*queues)[deviceID], cmd, maxQueuedCommands)
		return nil
	})
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Drain returns all pending commands in insertion order and clears the
// queue in the same atomic update. An empty queue drains to [].
func (q *CommandQueue) Drain(ctx context.Context, deviceID string) ([]Command, error) {
	drained := []Command{}
	err := store.Mutate(ctx, q.store, entityCommands, func(queues *commandQueues) error {
		if *queues == nil {
			return nil
		}
		pending := (*queues)[deviceID]
		if len(pending) == 0 {
			return nil
		}
		drained = append(drained, pending...)
		delete(*queues, deviceID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}
