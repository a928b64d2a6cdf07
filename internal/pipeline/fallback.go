package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TryInOrder runs try on each variant in order and returns the first variant
// that succeeds along with its index. When all fail, the joined errors are
// returned. A canceled ctx stops the sequence before the next variant.
func TryInOrder[T any](ctx context.Context, variants []T, try func(ctx context.Context, index int, v T) error) (T, int, error) {
	var zero T
	if len(variants) == 0 {
		return zero, -1, errors.New("no variants to try")
	}

	var errs []error
	for i, v := range variants {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := try(ctx, i, v)
		if err == nil {
			return v, i, nil
		}
		errs = append(errs, fmt.Errorf("variant %d: %w", i, err))
	}
	return zero, -1, errors.Join(errs...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
