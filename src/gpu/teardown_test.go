package gpu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTeardownRunsNewestFirst(t *testing.T) {
	var released []string
	var td teardown
	for _, name := range []string{"instance", "device", "surface"} {
		name := name
		td.push(func() { released = append(released, name) })
	}
	require.Equal(t, 3, td.len())

	td.run()
	require.Equal(t, []string{"surface", "device", "instance"}, released)
	require.Zero(t, td.len())

	td.run()
	require.Len(t, released, 3)
}

func TestTeardownEmpty(t *testing.T) {
	var td teardown
	require.NotPanics(t, td.run)
}

func TestHandleTable(t *testing.T) {
	table := newHandleTable[string]()
	a := table.put("a")
	b := table.put("b")
	require.NotZero(t, a)
	require.NotEqual(t, a, b)
	require.Equal(t, 2, table.len())

	v, ok := table.get(b)
	require.True(t, ok)
	require.Equal(t, "b", v)

	v, ok = table.take(a)
	require.True(t, ok)
	require.Equal(t, "a", v)
	_, ok = table.get(a)
	require.False(t, ok)
	_, ok = table.take(a)
	require.False(t, ok)

	// Handles are never reused.
	require.Greater(t, table.put("c"), b)
	require.Equal(t, 2, table.len())
}

func TestSafeStrings(t *testing.T) {
	require.Nil(t, safeStrings(nil))
	require.Equal(t, []string{"VK_KHR_swapchain\x00", "VK_KHR_surface\x00"},
		safeStrings([]string{"VK_KHR_swapchain", "VK_KHR_surface"}))
	require.Equal(t, "umisu\x00", safeString(EngineName))
}
