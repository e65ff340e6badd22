package join

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSettings is wrapped by every configuration error reported while
	// building table settings or a join specification.
	ErrInvalidSettings = errors.New("invalid join settings")

	// ErrCanceled is returned when the caller's context ends during a join.
	ErrCanceled = errors.New("join canceled")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
}

// checkCanceled returns a cancellation error when ctx is done.
func checkCanceled(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w during %s: %w", ErrCanceled, phase, err)
	}
	return nil
}
