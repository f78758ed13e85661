package context

import (
	"context"
	"errors"
)

// WithStop derives a cancellable context from parent that is additionally
// canceled when stop is done. The returned CancelFunc must be called to
// release the link to stop.
func WithStop(parent, stop context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	unlink := context.AfterFunc(stop, cancel)
	return ctx, func() {
		unlink()
		cancel()
	}
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut returns true if the context was canceled due to a timeout
func IsTimedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}


// StoppedBy reports whether err is the work function giving up because ctx
// ended, by cancellation or by its own deadline.
func StoppedBy(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return err != nil && ctxErr != nil && errors.Is(err, ctxErr)
}
