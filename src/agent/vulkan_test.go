package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"umisu/src/config"
)

func TestNewVulkanContextNeedsSurfaceWindow(t *testing.T) {
	a := NewVulkan(config.Default(), nil)

	var calls calls
	ctx, err := a.factory.NewContext(&fakeWindow{calls: &calls})
	require.ErrorIs(t, err, ErrNoSurface)
	require.Contains(t, err.Error(), "*agent.fakeWindow")
	require.Nil(t, ctx)
	require.Empty(t, calls)
}
