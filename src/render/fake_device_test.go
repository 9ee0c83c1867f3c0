package render

import (
	"errors"
	"fmt"
	"time"
)

type event struct {
	op      string
	handle  uint64
	barrier ImageBarrier
	render  RenderingInfo
	submit  SubmitInfo
	present PresentInfo
}

type fakeFence struct {
	signaled bool
	// pending is set between a submit and the simulated GPU completing it.
	pending bool
}

// fakeDevice is an in-memory Device. The GPU finishes submitted work only
// when the CPU waits on its fence or on the whole device, so a renderer that
// skips a wait is caught touching objects that are still in flight.
type fakeDevice struct {
	caps    SurfaceCapabilities
	formats []SurfaceFormat
	family  uint32

	next   uint64
	live   map[uint64]string
	images []Image
	fences map[Fence]*fakeFence
	// inflight maps a submitted command buffer to the fence guarding it.
	inflight  map[CommandBuffer]Fence
	recording map[CommandBuffer]bool
	rendering map[CommandBuffer]bool

	// extraImages is how many images the swapchain hands out beyond the
	// minimum asked for.
	extraImages uint32
	nextImage   uint32
	acquires    int
	presents    int

	acquireHook func(call int) (uint32, Status, error)
	presentHook func(call int) (Status, error)
	waitErr     error
	// failCreate makes the n-th creation of a kind fail, counting from 1.
	failCreate map[string]int
	created    map[string]int

	events     []event
	violations []string
}

func newFakeDevice(minImages uint32) *fakeDevice {
	return &fakeDevice{
		caps: SurfaceCapabilities{
			MinImageCount:    minImages,
			MaxImageCount:    8,
			MinImageExtent:   Extent{1, 1},
			MaxImageExtent:   Extent{4096, 4096},
			CurrentTransform: 1,
		},
		formats:    []SurfaceFormat{{Format: 44, ColorSpace: 0}, {Format: 50, ColorSpace: 0}},
		family:     0,
		live:       make(map[uint64]string),
		fences:     make(map[Fence]*fakeFence),
		inflight:   make(map[CommandBuffer]Fence),
		recording:  make(map[CommandBuffer]bool),
		rendering:  make(map[CommandBuffer]bool),
		failCreate: make(map[string]int),
		created:    make(map[string]int),
	}
}

func (d *fakeDevice) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) record(e event) {
	d.events = append(d.events, e)
}

func (d *fakeDevice) alloc(kind string) (uint64, error) {
	d.created[kind]++
	if n, ok := d.failCreate[kind]; ok && n == d.created[kind] {
		return 0, fmt.Errorf("create %s: %w", kind, errFakeOutOfMemory)
	}
	d.next++
	d.live[d.next] = kind
	d.record(event{op: "create-" + kind, handle: d.next})
	return d.next, nil
}

func (d *fakeDevice) free(kind string, h uint64) {
	if d.live[h] != kind {
		d.violate("destroy of unknown %s %d", kind, h)
		return
	}
	delete(d.live, h)
	d.record(event{op: "destroy-" + kind, handle: h})
}

func (d *fakeDevice) count(kind string) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *fakeDevice) ops(prefix string) []event {
	var out []event
	for _, e := range d.events {
		if len(e.op) >= len(prefix) && e.op[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

func (d *fakeDevice) indexOf(op string, handle uint64) int {
	for i, e := range d.events {
		if e.op == op && e.handle == handle {
			return i
		}
	}
	return -1
}

// complete plays the role of the GPU finishing the work guarded by f.
func (d *fakeDevice) complete(f Fence) {
	state := d.fences[f]
	if state == nil || !state.pending {
		return
	}
	state.pending = false
	state.signaled = true
	for cb, guard := range d.inflight {
		if guard == f {
			delete(d.inflight, cb)
		}
	}
}

// draw stands in for a draw command issued by a callback.
func (d *fakeDevice) draw(cb CommandBuffer) {
	if !d.rendering[cb] {
		d.violate("draw outside rendering on command buffer %d", cb)
	}
	d.record(event{op: "cmd-draw", handle: uint64(cb)})
}

var errFakeOutOfMemory = errors.New("out of device memory")

func (d *fakeDevice) SurfaceCapabilities() (SurfaceCapabilities, error) { return d.caps, nil }

func (d *fakeDevice) SurfaceFormats() ([]SurfaceFormat, error) { return d.formats, nil }

func (d *fakeDevice) QueueFamilyIndex() uint32 { return d.family }

func (d *fakeDevice) CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error) {
	if info.PresentMode != PresentModeFIFO || !info.Clipped || info.CompositeAlpha != CompositeAlphaPreMultiplied {
		d.violate("unexpected swapchain create info %+v", info)
	}
	if info.Extent.Empty() {
		d.violate("swapchain with empty extent %+v", info.Extent)
	}
	h, err := d.alloc("swapchain")
	if err != nil {
		return 0, err
	}
	d.images = d.images[:0]
	for i := uint32(0); i < info.MinImageCount+d.extraImages; i++ {
		d.next++
		d.images = append(d.images, Image(d.next))
	}
	d.nextImage = 0
	return Swapchain(h), nil
}

func (d *fakeDevice) SwapchainImages(sc Swapchain) ([]Image, error) {
	if d.live[uint64(sc)] != "swapchain" {
		d.violate("images of unknown swapchain %d", sc)
	}
	out := make([]Image, len(d.images))
	copy(out, d.images)
	return out, nil
}

func (d *fakeDevice) CreateImageView(image Image, format Format) (ImageView, error) {
	h, err := d.alloc("view")
	return ImageView(h), err
}

func (d *fakeDevice) CreateCommandPool(queueFamily uint32) (CommandPool, error) {
	h, err := d.alloc("pool")
	return CommandPool(h), err
}

func (d *fakeDevice) AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error) {
	out := make([]CommandBuffer, 0, count)
	for i := 0; i < count; i++ {
		h, err := d.alloc("cmd")
		if err != nil {
			return nil, err
		}
		out = append(out, CommandBuffer(h))
	}
	return out, nil
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	h, err := d.alloc("fence")
	if err != nil {
		return 0, err
	}
	d.fences[Fence(h)] = &fakeFence{signaled: signaled}
	return Fence(h), nil
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	h, err := d.alloc("semaphore")
	return Semaphore(h), err
}

func (d *fakeDevice) DestroySemaphore(s Semaphore) { d.free("semaphore", uint64(s)) }

func (d *fakeDevice) DestroyFence(f Fence) {
	if st := d.fences[f]; st != nil && st.pending {
		d.violate("destroy of in-flight fence %d", f)
	}
	delete(d.fences, f)
	d.free("fence", uint64(f))
}

func (d *fakeDevice) DestroyCommandPool(pool CommandPool) {
	for h, kind := range d.live {
		if kind == "cmd" {
			delete(d.live, h)
		}
	}
	d.free("pool", uint64(pool))
}

func (d *fakeDevice) DestroyImageView(v ImageView) { d.free("view", uint64(v)) }

func (d *fakeDevice) DestroySwapchain(sc Swapchain) { d.free("swapchain", uint64(sc)) }

func (d *fakeDevice) WaitForFence(f Fence, timeout time.Duration) error {
	d.record(event{op: "wait-fence", handle: uint64(f)})
	if d.waitErr != nil {
		return d.waitErr
	}
	state := d.fences[f]
	if state == nil {
		d.violate("wait on unknown fence %d", f)
		return ErrTimeout
	}
	d.complete(f)
	if !state.signaled {
		// Nothing will ever signal it.
		return ErrTimeout
	}
	return nil
}

func (d *fakeDevice) ResetFence(f Fence) error {
	d.record(event{op: "reset-fence", handle: uint64(f)})
	state := d.fences[f]
	if state == nil {
		d.violate("reset of unknown fence %d", f)
		return nil
	}
	if state.pending {
		d.violate("reset of in-flight fence %d", f)
	}
	state.signaled = false
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.record(event{op: "wait-idle"})
	for f := range d.fences {
		d.complete(f)
	}
	return nil
}

func (d *fakeDevice) ResetCommandBuffer(cb CommandBuffer) error {
	d.record(event{op: "cmd-reset", handle: uint64(cb)})
	if _, busy := d.inflight[cb]; busy {
		d.violate("reset of in-flight command buffer %d", cb)
	}
	return nil
}

func (d *fakeDevice) BeginCommandBuffer(cb CommandBuffer) error {
	d.record(event{op: "cmd-begin", handle: uint64(cb)})
	if _, busy := d.inflight[cb]; busy {
		d.violate("recording into in-flight command buffer %d", cb)
	}
	d.recording[cb] = true
	return nil
}

func (d *fakeDevice) CmdImageBarrier(cb CommandBuffer, b ImageBarrier) {
	if !d.recording[cb] {
		d.violate("barrier outside recording on %d", cb)
	}
	d.record(event{op: "cmd-barrier", handle: uint64(cb), barrier: b})
}

func (d *fakeDevice) CmdBeginRendering(cb CommandBuffer, info RenderingInfo) {
	if d.rendering[cb] {
		d.violate("nested rendering on %d", cb)
	}
	d.rendering[cb] = true
	d.record(event{op: "cmd-begin-rendering", handle: uint64(cb), render: info})
}

func (d *fakeDevice) CmdEndRendering(cb CommandBuffer) {
	if !d.rendering[cb] {
		d.violate("end rendering without begin on %d", cb)
	}
	d.rendering[cb] = false
	d.record(event{op: "cmd-end-rendering", handle: uint64(cb)})
}

func (d *fakeDevice) EndCommandBuffer(cb CommandBuffer) error {
	if d.rendering[cb] {
		d.violate("end recording inside rendering on %d", cb)
	}
	d.recording[cb] = false
	d.record(event{op: "cmd-end", handle: uint64(cb)})
	return nil
}

func (d *fakeDevice) AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, Status, error) {
	d.acquires++
	d.record(event{op: "acquire", handle: uint64(signal)})
	if d.acquireHook != nil {
		return d.acquireHook(d.acquires)
	}
	index := d.nextImage
	d.nextImage = (d.nextImage + 1) % uint32(len(d.images))
	return index, StatusSuccess, nil
}

func (d *fakeDevice) QueueSubmit(s SubmitInfo) error {
	d.record(event{op: "submit", handle: uint64(s.CommandBuffer), submit: s})
	if d.recording[s.CommandBuffer] {
		d.violate("submit of command buffer %d still recording", s.CommandBuffer)
	}
	state := d.fences[s.Fence]
	if state == nil {
		d.violate("submit with unknown fence %d", s.Fence)
		return nil
	}
	if state.signaled || state.pending {
		d.violate("submit with fence %d not reset", s.Fence)
	}
	state.pending = true
	d.inflight[s.CommandBuffer] = s.Fence
	return nil
}

func (d *fakeDevice) QueuePresent(p PresentInfo) (Status, error) {
	d.presents++
	d.record(event{op: "present", handle: uint64(p.Swapchain), present: p})
	if d.presentHook != nil {
		return d.presentHook(d.presents)
	}
	return StatusSuccess, nil
}

type fakeWindow struct {
	width, height uint32
}

func (w *fakeWindow) Width() uint32  { return w.width }
func (w *fakeWindow) Height() uint32 { return w.height }
