package platform

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Init starts GLFW and points the Vulkan loader at it. It must run on the
// main OS thread before any window or Vulkan object is created.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw: vulkan is not supported")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "vulkan init")
	}
	return nil
}

// Terminate shuts GLFW down. Every window must be destroyed first.
func Terminate() {
	glfw.Terminate()
}

type WindowConfig struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
}

// Window is a GLFW window without a client API, sized in pixels through its
// framebuffer.
type Window struct {
	title  string
	handle *glfw.Window
	log    *zap.Logger
}

func NewWindow(cfg WindowConfig, log *zap.Logger) (*Window, error) {
	if log == nil {
		log = zap.NewNop()
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	handle, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}

	w := &Window{title: cfg.Title, handle: handle, log: log.Named("window")}
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.log.Debug("framebuffer resized", zap.Int("width", width), zap.Int("height", height))
	})
	return w, nil
}

func (w *Window) Title() string { return w.title }

// Width is the framebuffer width in pixels, zero while minimized.
func (w *Window) Width() uint32 {
	width, _ := w.handle.GetFramebufferSize()
	return uint32(max(width, 0))
}

func (w *Window) Height() uint32 {
	_, height := w.handle.GetFramebufferSize()
	return uint32(max(height, 0))
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// InstanceProcAddr is the vkGetInstanceProcAddr GLFW loaded, the same one
// Init hands to the binding.
func (w *Window) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) Destroy() {
	if w.handle == nil {
		return
	}
	w.handle.Destroy()
	w.handle = nil
}
