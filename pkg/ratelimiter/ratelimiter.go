package ratelimiter

import (
	"context"
	"math/rand"
	"time"
)

// RateLimiter spaces out operations by a delay drawn uniformly from [min, max].
// The first Wait returns immediately; each later Wait sleeps before returning.
type RateLimiter struct {
	ctx   context.Context
	min   time.Duration
	max   time.Duration
	first chan struct{} // Pre-filled so the first Wait passes without delay.
	timer *time.Timer
	rand  func(n int64) int64
}

// New creates a new RateLimiter. A fixed delay is expressed with min == max.
func New(ctx context.Context, min, max time.Duration) *RateLimiter {
	if max < min {
		max = min
	}
	rl := &RateLimiter{
		ctx:   ctx,
		min:   min,
		max:   max,
		first: make(chan struct{}, 1),
		rand:  rand.Int63n,
	}
	rl.first <- struct{}{}
	return rl
}

// Next returns the delay the next Wait would sleep for.
func (r *RateLimiter) Next() time.Duration {
	span := int64(r.max - r.min)
	if span <= 0 {
		return r.min
	}
	return r.min + time.Duration(r.rand(span+1))
}

// Wait blocks for the next delay, or until the context is done.
func (r *RateLimiter) Wait() error {
	select {
	case <-r.first:
		return r.ctx.Err()
	default:
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}

	d := r.Next()
	if d <= 0 {
		return nil
	}
	if r.timer == nil {
		r.timer = time.NewTimer(d)
	} else {
		r.timer.Reset(d)
	}
	select {
	case <-r.timer.C:
		return nil
	case <-r.ctx.Done():
		r.timer.Stop()
		return r.ctx.Err()
	}
}

// Stop releases the timer.
func (r *RateLimiter) Stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}
