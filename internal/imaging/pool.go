// SPDX-License-Identifier: MIT

package imaging

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
)

// Pool bounds concurrent quantization jobs so device pollers are never
// starved by simultaneous uploads. Requests wait for a slot and honor
// context cancellation while waiting.
type Pool struct {
	sem     *semaphore.Weighted
	workers int
}

// NewPool creates a pool with the given number of worker slots.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// Process runs the pipeline on a worker slot. The caller's context cancels
// both the wait for a slot and the result delivery; a released worker always
// finishes its job so a canceled request never leaves a half-processed state.
func (p *Pool) Process(ctx context.Context, src []byte, params Params) (*Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire pipeline worker: %w", err)
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer p.sem.Release(1)
		start := time.Now()
		res, err := Process(src, params)
		metrics.ObservePipelineJob(time.Since(start), err == nil)
		if err != nil {
			logger := log.WithComponent("imaging")
			logger.Warn().Err(err).Msg("pipeline job failed")
		}
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
