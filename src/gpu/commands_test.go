package gpu

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

type procTable map[string]unsafe.Pointer

func (p procTable) lookup(name string) unsafe.Pointer { return p[name] }

func TestResolveCommandsPrefersCoreNames(t *testing.T) {
	var barrier, barrierKHR, begin, end int
	procs := procTable{
		"vkCmdPipelineBarrier2":    unsafe.Pointer(&barrier),
		"vkCmdPipelineBarrier2KHR": unsafe.Pointer(&barrierKHR),
		"vkCmdBeginRendering":      unsafe.Pointer(&begin),
		"vkCmdEndRendering":        unsafe.Pointer(&end),
	}

	cmds, err := resolveCommands(procs.lookup)
	require.NoError(t, err)
	require.Equal(t, unsafe.Pointer(&barrier), cmds.pipelineBarrier2)
	require.Equal(t, unsafe.Pointer(&begin), cmds.beginRendering)
	require.Equal(t, unsafe.Pointer(&end), cmds.endRendering)
}

func TestResolveCommandsFallsBackToExtensionNames(t *testing.T) {
	var barrier, begin, end int
	procs := procTable{
		"vkCmdPipelineBarrier2KHR": unsafe.Pointer(&barrier),
		"vkCmdBeginRenderingKHR":   unsafe.Pointer(&begin),
		"vkCmdEndRenderingKHR":     unsafe.Pointer(&end),
	}

	cmds, err := resolveCommands(procs.lookup)
	require.NoError(t, err)
	require.Equal(t, unsafe.Pointer(&barrier), cmds.pipelineBarrier2)
	require.Equal(t, unsafe.Pointer(&begin), cmds.beginRendering)
	require.Equal(t, unsafe.Pointer(&end), cmds.endRendering)
}

func TestResolveCommandsMissing(t *testing.T) {
	var barrier, begin int
	procs := procTable{
		"vkCmdPipelineBarrier2": unsafe.Pointer(&barrier),
		"vkCmdBeginRendering":   unsafe.Pointer(&begin),
	}

	_, err := resolveCommands(procs.lookup)
	require.ErrorIs(t, err, ErrMissingCommand)
	require.Contains(t, err.Error(), "vkCmdEndRendering")
}

func TestLoadDeviceCommandsWithoutLoader(t *testing.T) {
	_, err := loadDeviceCommands(nil, nil, nil)
	require.ErrorIs(t, err, ErrMissingCommand)
}
