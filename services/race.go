package services

import (
	"context"
	"time"
)

type raceResult[T any] struct {
	value T
	err   error
}

// FirstOf races op against a timer that yields fallback after timeout. The first to settle wins.
// A losing op is abandoned rather than cancelled: it keeps the parent context and its result is
// dropped into a buffered channel nobody reads. timedOut reports that fallback was used.
func FirstOf[T any](ctx context.Context, timeout time.Duration, fallback T, op func(context.Context) (T, error)) (value T, timedOut bool, err error) {
	done := make(chan raceResult[T], 1)
	go func() {
		v, err := op(ctx)
		done <- raceResult[T]{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, false, res.err
	case <-timer.C:
		return fallback, true, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}
