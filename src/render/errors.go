package render

import (
	"errors"
	"fmt"
)

var (
	ErrFenceWait = errors.New("failed to wait for a fence")
	ErrAcquire   = errors.New("failed to acquire next image")
	ErrRecord    = errors.New("failed to record command buffer")
	ErrSubmit    = errors.New("failed to submit command buffer")
	ErrPresent   = errors.New("failed to present")
	ErrOutOfDate = errors.New("swapchain is out of date")
	ErrClosed    = errors.New("renderer is closed")

	// ErrTimeout is wrapped by Device implementations when a bounded wait
	// expires.
	ErrTimeout = errors.New("timeout expired")

	ErrNoSurfaceFormat = errors.New("surface reports no formats")
	ErrNoImages        = errors.New("swapchain returned no images")
	// ErrEmptyExtent means the surface has no area to build a swapchain
	// for, as with a minimized window.
	ErrEmptyExtent = errors.New("swapchain extent is empty")
)

func frameError(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// IsOutOfDate reports whether err asks for a swapchain rebuild.
func IsOutOfDate(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}
