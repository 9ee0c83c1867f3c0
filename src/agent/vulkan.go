package agent

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"umisu/src/config"
	"umisu/src/gpu"
	"umisu/src/platform"
	"umisu/src/render"
)

// ErrNoSurface is returned when the window handed to the context cannot
// create a Vulkan surface.
var ErrNoSurface = errors.New("window cannot create a vulkan surface")

var (
	_ Window     = (*platform.Window)(nil)
	_ gpu.Window = (*platform.Window)(nil)
)

// NewVulkan wires a GLFW window, the Vulkan presentation context and the
// renderer from cfg. platform.Init must have succeeded.
func NewVulkan(cfg config.Config, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return New(Factory{
		NewWindow: func() (Window, error) {
			w, err := platform.NewWindow(platform.WindowConfig{
				Title:     cfg.Window.Title,
				Width:     cfg.Window.Width,
				Height:    cfg.Window.Height,
				Resizable: cfg.Window.Resizable,
			}, log)
			if err != nil {
				return nil, err
			}
			return w, nil
		},
		NewContext: func(w Window) (Context, error) {
			surfaceWindow, ok := w.(gpu.Window)
			if !ok {
				return nil, errors.Wrapf(ErrNoSurface, "%T", w)
			}
			c, err := gpu.Create(surfaceWindow, append(cfg.GPUOptions(), gpu.WithLogger(log))...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		NewRenderer: func(w Window, device render.Device) (Renderer, error) {
			r, err := render.New(w, device, append(cfg.RenderOptions(), render.WithLogger(log))...)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}, log)
}
