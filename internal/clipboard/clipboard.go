package clipboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("clipboard not available")

var (
	writeAll    = clipboard.WriteAll
	unsupported = func() bool { return clipboard.Unsupported }
)

// Copy puts text on the system clipboard. The helper tool atotto shells out
// to can hang on a missing display, so the write is bounded by ctx.
func Copy(ctx context.Context, text string) error {
	if unsupported() {
		return ErrUnavailable
	}

	done := make(chan error, 1)
	go func() { done <- writeAll(text) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("clipboard write: %w", ctx.Err())
	}
}
