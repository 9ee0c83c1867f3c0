package gpu

import (
	stderrors "errors"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

var (
	ErrNoDevices     = stderrors.New("no vulkan physical devices found")
	ErrNoQueueFamily = stderrors.New("no queue family with graphics support")
	ErrNoSelection   = stderrors.New("selector returned an index out of range")
	ErrUnknownHandle = stderrors.New("unknown handle")
)

// NewError converts a Vulkan result into an error carrying the call stack.
// Success converts to nil.
func NewError(ret vk.Result) error {
	if !IsError(ret) {
		return nil
	}
	return errors.WithStack(vk.Error(ret))
}

func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// check wraps a failed Vulkan call with the name of the operation.
func check(ret vk.Result, op string) error {
	if err := NewError(ret); err != nil {
		return errors.Wrapf(err, "vulkan error: %s (%d)", op, ret)
	}
	return nil
}
