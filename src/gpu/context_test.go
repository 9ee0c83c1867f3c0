package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// creates returns a step that registers a release of name on the teardown
// stack, the way the real creation steps do.
func creates(c *Context, name string, released *[]string) createStep {
	return createStep{name, func() error {
		c.undo.push(func() { *released = append(*released, name) })
		return nil
	}}
}

func TestBuildRollsBackInReverseOrder(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := &Context{log: zap.New(core)}
	boom := errors.New("no suitable queue family")

	var released []string
	surfaceRan := false
	err := c.build([]createStep{
		creates(c, "instance", &released),
		creates(c, "device", &released),
		creates(c, "device commands", &released),
		{"physical device", func() error { return boom }},
		{"surface", func() error { surfaceRan = true; return nil }},
	})

	require.Same(t, boom, err)
	require.False(t, surfaceRan)
	require.Equal(t, []string{"device commands", "device", "instance"}, released)
	require.Zero(t, c.undo.len())

	failures := logs.FilterMessage("context creation failed").All()
	require.Len(t, failures, 1)
	require.Equal(t, "physical device", failures[0].ContextMap()["step"])
}

func TestBuildFirstStepFailureReleasesNothing(t *testing.T) {
	c := &Context{log: zap.NewNop()}
	boom := errors.New("instance refused")

	var released []string
	err := c.build([]createStep{
		{"instance", func() error { return boom }},
		creates(c, "device", &released),
	})
	require.Same(t, boom, err)
	require.Empty(t, released)
}

func TestBuildSuccessKeepsObjects(t *testing.T) {
	c := &Context{log: zap.NewNop()}

	var released []string
	require.NoError(t, c.build([]createStep{
		creates(c, "instance", &released),
		creates(c, "device", &released),
		creates(c, "surface", &released),
	}))
	require.Empty(t, released)
	require.Equal(t, 3, c.undo.len())

	c.undo.run()
	require.Equal(t, []string{"surface", "device", "instance"}, released)
}
