package render

import (
	"fmt"

	"go.uber.org/zap"
)

// SwapchainState is either Valid, carrying the live handle and the
// generation it was built in, or Invalid and waiting for a rebuild.
type SwapchainState struct {
	Handle     Swapchain
	Generation uint64
	Valid      bool
}

type Stats struct {
	// Frames counts successful presents.
	Frames   uint64
	Rebuilds uint64
	// Divergences counts frames whose acquired image index differed from
	// the frame slot.
	Divergences uint64
}

// Renderer owns the swapchain and everything derived from it, and runs the
// acquire, record, submit, present protocol one frame at a time. It is not
// safe for concurrent use.
type Renderer struct {
	window Window
	device Device
	opts   options
	log    *zap.Logger

	swapchain     SwapchainState
	ownsSwapchain bool
	format        SurfaceFormat
	extent        Extent
	images        []Image
	views         []ImageView

	pool           CommandPool
	ownsPool       bool
	commandBuffers []CommandBuffer

	fences         []Fence
	imageAvailable []Semaphore
	renderFinished []Semaphore

	frames  int
	current int
	stale   bool
	closed  bool
	stats   Stats
}

// New builds the swapchain, its image views, the command pool and buffers,
// and the per-slot synchronization objects. The window and device stay
// shared with the caller. On failure everything created so far is released.
func New(window Window, device Device, opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		window: window,
		device: device,
		opts:   o,
		log:    o.logger.Named("renderer"),
	}
	if err := r.create(); err != nil {
		r.release()
		return nil, err
	}
	r.swapchain.Valid = true

	r.log.Info("renderer initialized",
		zap.Int("frames", r.frames),
		zap.Uint32("width", r.extent.Width),
		zap.Uint32("height", r.extent.Height),
		zap.Int32("format", int32(r.format.Format)))
	return r, nil
}

func (r *Renderer) create() error {
	if err := r.createSwapchain(); err != nil {
		return err
	}
	if err := r.createImages(); err != nil {
		return err
	}
	if err := r.createCommands(); err != nil {
		return err
	}
	return r.createSyncs()
}

func (r *Renderer) createSwapchain() error {
	caps, err := r.device.SurfaceCapabilities()
	if err != nil {
		return err
	}
	formats, err := r.device.SurfaceFormats()
	if err != nil {
		return err
	}
	if len(formats) == 0 {
		return ErrNoSurfaceFormat
	}
	if caps.MinImageCount == 0 {
		return fmt.Errorf("surface reports a minimum image count of zero")
	}

	r.format = formats[0]
	r.frames = int(caps.MinImageCount)
	r.extent = clampExtent(r.windowExtent(), caps.MinImageExtent, caps.MaxImageExtent)
	if r.extent.Empty() {
		return fmt.Errorf("%w: %dx%d", ErrEmptyExtent, r.extent.Width, r.extent.Height)
	}

	sc, err := r.device.CreateSwapchain(SwapchainCreateInfo{
		MinImageCount:  caps.MinImageCount,
		Format:         r.format,
		Extent:         r.extent,
		QueueFamily:    r.device.QueueFamilyIndex(),
		PresentMode:    PresentModeFIFO,
		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: CompositeAlphaPreMultiplied,
		Clipped:        true,
	})
	if err != nil {
		return err
	}
	r.swapchain.Handle = sc
	r.ownsSwapchain = true
	return nil
}

func (r *Renderer) createImages() error {
	images, err := r.device.SwapchainImages(r.swapchain.Handle)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return ErrNoImages
	}
	// The driver may hand out more images than the minimum asked for; slots
	// follow the images so every image has one.
	if len(images) != r.frames {
		r.log.Debug("swapchain image count differs from minimum",
			zap.Int("min", r.frames), zap.Int("images", len(images)))
		r.frames = len(images)
	}
	r.images = images

	for _, image := range images {
		view, err := r.device.CreateImageView(image, r.format.Format)
		if err != nil {
			return err
		}
		r.views = append(r.views, view)
	}
	return nil
}

func (r *Renderer) createCommands() error {
	pool, err := r.device.CreateCommandPool(r.device.QueueFamilyIndex())
	if err != nil {
		return err
	}
	r.pool = pool
	r.ownsPool = true

	buffers, err := r.device.AllocateCommandBuffers(pool, r.frames)
	if err != nil {
		return err
	}
	r.commandBuffers = buffers
	return nil
}

func (r *Renderer) createSyncs() error {
	for i := 0; i < r.frames; i++ {
		fence, err := r.device.CreateFence(true)
		if err != nil {
			return err
		}
		r.fences = append(r.fences, fence)

		available, err := r.device.CreateSemaphore()
		if err != nil {
			return err
		}
		r.imageAvailable = append(r.imageAvailable, available)

		finished, err := r.device.CreateSemaphore()
		if err != nil {
			return err
		}
		r.renderFinished = append(r.renderFinished, finished)
	}
	return nil
}

// release destroys whatever create managed to build: sync objects, then
// the command pool with its buffers, then views, then the swapchain.
func (r *Renderer) release() {
	for _, s := range r.renderFinished {
		r.device.DestroySemaphore(s)
	}
	for _, s := range r.imageAvailable {
		r.device.DestroySemaphore(s)
	}
	for _, f := range r.fences {
		r.device.DestroyFence(f)
	}
	r.renderFinished, r.imageAvailable, r.fences = nil, nil, nil

	if r.ownsPool {
		r.device.DestroyCommandPool(r.pool)
		r.ownsPool = false
	}
	r.commandBuffers = nil

	for _, v := range r.views {
		r.device.DestroyImageView(v)
	}
	r.views = nil
	r.images = nil

	if r.ownsSwapchain {
		r.device.DestroySwapchain(r.swapchain.Handle)
		r.ownsSwapchain = false
	}
	r.swapchain.Valid = false
}

// Rebuild waits for the device to go idle, tears down every
// swapchain-derived resource and creates it again. The slot counter
// restarts at zero. If creation fails the swapchain stays Invalid.
func (r *Renderer) Rebuild() error {
	if r.closed {
		return ErrClosed
	}
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	r.release()
	if err := r.create(); err != nil {
		r.release()
		return err
	}

	r.swapchain.Generation++
	r.swapchain.Valid = true
	r.current = 0
	r.stale = false
	r.stats.Rebuilds++

	r.log.Info("swapchain rebuilt",
		zap.Uint64("generation", r.swapchain.Generation),
		zap.Int("frames", r.frames),
		zap.Uint32("width", r.extent.Width),
		zap.Uint32("height", r.extent.Height))
	return nil
}

// Close waits for the device to go idle and releases every resource the
// renderer created. The release happens even when the wait fails. Calling
// Close again is a no-op.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.device.WaitIdle()
	r.release()
	r.log.Info("renderer closed", zap.Uint64("frames", r.stats.Frames))
	return err
}

// Slot is the frame slot the next Frame call will use.
func (r *Renderer) Slot() int { return r.current }

// FrameCount is N, the number of swapchain images and frame slots.
func (r *Renderer) FrameCount() int { return r.frames }

func (r *Renderer) Swapchain() SwapchainState { return r.swapchain }

// Extent is the swapchain image extent.
func (r *Renderer) Extent() Extent { return r.extent }

func (r *Renderer) Format() SurfaceFormat { return r.format }

func (r *Renderer) Stats() Stats { return r.stats }

func (r *Renderer) windowExtent() Extent {
	return Extent{Width: r.window.Width(), Height: r.window.Height()}
}

// clampExtent bounds e by lo and hi. A minimized surface reports a zero hi,
// which yields an empty extent.
func clampExtent(e, lo, hi Extent) Extent {
	return Extent{
		Width:  max(lo.Width, min(e.Width, hi.Width)),
		Height: max(lo.Height, min(e.Height, hi.Height)),
	}
}
