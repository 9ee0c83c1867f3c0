package gpu

/*
#include <stdlib.h>

typedef void* (*proc_lookup_fn)(void* dispatchable, const char* name);
typedef void (*cmd_info_fn)(void* commandBuffer, const void* info);
typedef void (*cmd_fn)(void* commandBuffer);

static void* lookupProc(void* lookup, void* dispatchable, const char* name) {
	return ((proc_lookup_fn)lookup)(dispatchable, name);
}

static void callCmdInfo(void* fn, void* commandBuffer, const void* info) {
	((cmd_info_fn)fn)(commandBuffer, info);
}

static void callCmd(void* fn, void* commandBuffer) {
	((cmd_fn)fn)(commandBuffer);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// ErrMissingCommand is returned when the driver does not expose a
// synchronization2 or dynamic rendering entry point.
var ErrMissingCommand = errors.New("device command not available")

// deviceCommands holds the Vulkan 1.3 recording entry points the binding
// does not wrap. They are loaded per device through vkGetDeviceProcAddr.
type deviceCommands struct {
	pipelineBarrier2 unsafe.Pointer
	beginRendering   unsafe.Pointer
	endRendering     unsafe.Pointer
}

// resolveCommands looks every command up by its core name, then by the
// extension alias.
func resolveCommands(lookup func(name string) unsafe.Pointer) (deviceCommands, error) {
	var cmds deviceCommands
	for _, entry := range []struct {
		names []string
		dst   *unsafe.Pointer
	}{
		{[]string{"vkCmdPipelineBarrier2", "vkCmdPipelineBarrier2KHR"}, &cmds.pipelineBarrier2},
		{[]string{"vkCmdBeginRendering", "vkCmdBeginRenderingKHR"}, &cmds.beginRendering},
		{[]string{"vkCmdEndRendering", "vkCmdEndRenderingKHR"}, &cmds.endRendering},
	} {
		for _, name := range entry.names {
			if p := lookup(name); p != nil {
				*entry.dst = p
				break
			}
		}
		if *entry.dst == nil {
			return deviceCommands{}, fmt.Errorf("%s: %w", entry.names[0], ErrMissingCommand)
		}
	}
	return cmds, nil
}

func procAddr(lookup, dispatchable unsafe.Pointer, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.lookupProc(lookup, dispatchable, cname)
}

// loadDeviceCommands resolves vkGetDeviceProcAddr through the loader's
// vkGetInstanceProcAddr and uses it to load the device commands.
func loadDeviceCommands(getInstanceProcAddr unsafe.Pointer, instance vk.Instance, device vk.Device) (deviceCommands, error) {
	if getInstanceProcAddr == nil {
		return deviceCommands{}, errors.Wrap(ErrMissingCommand, "vkGetInstanceProcAddr")
	}
	getDeviceProcAddr := procAddr(getInstanceProcAddr, unsafe.Pointer(instance), "vkGetDeviceProcAddr")
	if getDeviceProcAddr == nil {
		return deviceCommands{}, errors.Wrap(ErrMissingCommand, "vkGetDeviceProcAddr")
	}
	return resolveCommands(func(name string) unsafe.Pointer {
		return procAddr(getDeviceProcAddr, unsafe.Pointer(device), name)
	})
}

func (d deviceCommands) pipelineBarrier(cb vk.CommandBuffer, dependency *vk.DependencyInfo) {
	ref, _ := dependency.PassRef()
	defer dependency.Free()
	C.callCmdInfo(d.pipelineBarrier2, unsafe.Pointer(cb), unsafe.Pointer(ref))
}

func (d deviceCommands) beginRenderingPass(cb vk.CommandBuffer, info *vk.RenderingInfo) {
	ref, _ := info.PassRef()
	defer info.Free()
	C.callCmdInfo(d.beginRendering, unsafe.Pointer(cb), unsafe.Pointer(ref))
}

func (d deviceCommands) endRenderingPass(cb vk.CommandBuffer) {
	C.callCmd(d.endRendering, unsafe.Pointer(cb))
}
