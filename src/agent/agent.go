package agent

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"umisu/src/render"
)

type Window interface {
	render.Window
	ShouldClose() bool
	PollEvents()
	Destroy()
}

// Context is the presentation context the renderer draws through.
type Context interface {
	render.Device
	Close() error
}

type Renderer interface {
	Frame(draw render.DrawFunc) error
	Close() error
}

// Factory creates the three components in dependency order.
type Factory struct {
	NewWindow   func() (Window, error)
	NewContext  func(w Window) (Context, error)
	NewRenderer func(w Window, device render.Device) (Renderer, error)
}

// Agent owns the window, the presentation context and the renderer and
// drives the frame loop.
type Agent struct {
	factory Factory
	log     *zap.Logger

	window   Window
	context  Context
	renderer Renderer
}

func New(factory Factory, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{factory: factory, log: log.Named("agent")}
}

// Init creates the window, then the presentation context, then the
// renderer. On failure whatever was created is closed and the first error
// is returned as is.
func (a *Agent) Init() error {
	window, err := a.factory.NewWindow()
	if err != nil {
		return err
	}
	a.window = window
	a.log.Info("main window created", zap.Uint32("width", window.Width()), zap.Uint32("height", window.Height()))

	ctx, err := a.factory.NewContext(window)
	if err != nil {
		a.Close()
		return err
	}
	a.context = ctx
	a.log.Info("vulkan context created")

	renderer, err := a.factory.NewRenderer(window, ctx)
	if err != nil {
		a.Close()
		return err
	}
	a.renderer = renderer
	a.log.Info("initialized components")
	return nil
}

// Run renders frames until ctx is cancelled or the window asks to close.
// A frame error ends the loop and is returned unchanged.
func (a *Agent) Run(ctx context.Context, draw render.DrawFunc) error {
	var frames uint64
	for {
		select {
		case <-ctx.Done():
			a.log.Info("stopping", zap.String("reason", "signal"), zap.Uint64("frames", frames))
			return nil
		default:
		}
		if a.window.ShouldClose() {
			a.log.Info("stopping", zap.String("reason", "window closed"), zap.Uint64("frames", frames))
			return nil
		}

		if err := a.renderer.Frame(draw); err != nil {
			return err
		}
		frames++
		a.window.PollEvents()
	}
}

// Close releases the renderer, the context and the window, in that order.
// It is safe to call more than once.
func (a *Agent) Close() error {
	var err error
	if a.renderer != nil {
		err = multierr.Append(err, a.renderer.Close())
		a.renderer = nil
	}
	if a.context != nil {
		err = multierr.Append(err, a.context.Close())
		a.context = nil
	}
	if a.window != nil {
		a.window.Destroy()
		a.window = nil
	}
	return err
}
