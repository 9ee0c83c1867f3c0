package render

import "time"

// Handles are opaque to the renderer. The Device that issued a handle is the
// only one that can interpret it.
type (
	Swapchain     uint64
	Image         uint64
	ImageView     uint64
	CommandPool   uint64
	CommandBuffer uint64
	Fence         uint64
	Semaphore     uint64
)

// Status is the non-error outcome of an acquire or present request.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSuboptimal means the request succeeded but the swapchain no
	// longer matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used with the
	// surface and must be rebuilt.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	default:
		return "unknown"
	}
}

type (
	Format           int32
	ColorSpace       int32
	SurfaceTransform uint32
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type Extent struct {
	Width, Height uint32
}

func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// SurfaceCapabilities is the subset of the surface capabilities the
// renderer needs to size a swapchain.
type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	MinImageExtent   Extent
	MaxImageExtent   Extent
	CurrentTransform SurfaceTransform
}

type PresentMode int

const (
	PresentModeFIFO PresentMode = iota
)

type CompositeAlpha int

const (
	CompositeAlphaPreMultiplied CompositeAlpha = iota
)

type SwapchainCreateInfo struct {
	MinImageCount  uint32
	Format         SurfaceFormat
	Extent         Extent
	QueueFamily    uint32
	PresentMode    PresentMode
	PreTransform   SurfaceTransform
	CompositeAlpha CompositeAlpha
	Clipped        bool
}

type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutColorAttachmentOptimal
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutColorAttachmentOptimal:
		return "color-attachment-optimal"
	case LayoutPresentSrc:
		return "present-src"
	default:
		return "unknown"
	}
}

type PipelineStage int

const (
	StageNone PipelineStage = iota
	StageColorAttachmentOutput
	StageBottomOfPipe
)

type Access int

const (
	AccessNone Access = iota
	AccessColorAttachmentWrite
)

// ImageBarrier is a single image memory barrier on the colour aspect of mip
// level 0, array layer 0.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcStage  PipelineStage
	SrcAccess Access
	DstStage  PipelineStage
	DstAccess Access
}

type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// RenderingInfo describes one dynamic rendering pass with a single colour
// attachment.
type RenderingInfo struct {
	View       ImageView
	Area       Extent
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearColor [4]float32
}

type SubmitInfo struct {
	CommandBuffer CommandBuffer
	WaitSemaphore Semaphore
	WaitStage     PipelineStage
	Signal        Semaphore
	Fence         Fence
}

type PresentInfo struct {
	Swapchain     Swapchain
	ImageIndex    uint32
	WaitSemaphore Semaphore
}

type SurfaceQuery interface {
	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	QueueFamilyIndex() uint32
}

type ResourceFactory interface {
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	SwapchainImages(sc Swapchain) ([]Image, error)
	CreateImageView(image Image, format Format) (ImageView, error)
	CreateCommandPool(queueFamily uint32) (CommandPool, error)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)

	DestroySemaphore(s Semaphore)
	DestroyFence(f Fence)
	// DestroyCommandPool also frees every command buffer allocated from it.
	DestroyCommandPool(pool CommandPool)
	DestroyImageView(view ImageView)
	DestroySwapchain(sc Swapchain)
}

type Synchronizer interface {
	// WaitForFence blocks until the fence is signaled or the timeout
	// elapses. A timeout is reported as an error wrapping ErrTimeout.
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	WaitIdle() error
}

type Recorder interface {
	ResetCommandBuffer(cb CommandBuffer) error
	// BeginCommandBuffer starts one-time-submit recording.
	BeginCommandBuffer(cb CommandBuffer) error
	CmdImageBarrier(cb CommandBuffer, barrier ImageBarrier)
	CmdBeginRendering(cb CommandBuffer, info RenderingInfo)
	CmdEndRendering(cb CommandBuffer)
	EndCommandBuffer(cb CommandBuffer) error
}

type Presenter interface {
	AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, Status, error)
	QueueSubmit(submit SubmitInfo) error
	QueuePresent(present PresentInfo) (Status, error)
}

// Device is everything the renderer needs from the GPU. The Vulkan
// presentation context implements it; tests use an in-memory fake.
type Device interface {
	SurfaceQuery
	ResourceFactory
	Synchronizer
	Recorder
	Presenter
}

// Window reports the current pixel size of the presentation target.
type Window interface {
	Width() uint32
	Height() uint32
}
