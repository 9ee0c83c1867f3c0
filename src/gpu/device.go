package gpu

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"

	"umisu/src/render"
)

var _ render.Device = (*Context)(nil)

type swapchainEntry struct {
	handle vk.Swapchain
	images []uint64
}

type poolEntry struct {
	handle  vk.CommandPool
	buffers []uint64
}

var colorRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

func unknown(kind string, h uint64) error {
	return fmt.Errorf("%s %d: %w", kind, h, ErrUnknownHandle)
}

// CommandBuffer returns the Vulkan command buffer behind a renderer handle,
// for draw callbacks that record their own commands.
func (c *Context) CommandBuffer(h render.CommandBuffer) (vk.CommandBuffer, bool) {
	return c.buffers.get(uint64(h))
}

func (c *Context) SurfaceCapabilities() (render.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(c.physicalDevice, c.surface, &caps)
	if err := check(ret, "get surface capabilities"); err != nil {
		return render.SurfaceCapabilities{}, err
	}
	caps.Deref()
	return render.SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		MinImageExtent:   extent(caps.MinImageExtent),
		MaxImageExtent:   extent(caps.MaxImageExtent),
		CurrentTransform: render.SurfaceTransform(caps.CurrentTransform),
	}, nil
}

func (c *Context) SurfaceFormats() ([]render.SurfaceFormat, error) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(c.physicalDevice, c.surface, &count, nil)
	if err := check(ret, "get surface formats"); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(c.physicalDevice, c.surface, &count, formats)
	if err := check(ret, "get surface formats"); err != nil {
		return nil, err
	}

	out := make([]render.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		out = append(out, render.SurfaceFormat{
			Format:     render.Format(f.Format),
			ColorSpace: render.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

func (c *Context) CreateSwapchain(ci render.SwapchainCreateInfo) (render.Swapchain, error) {
	clipped := vk.Bool32(vk.False)
	if ci.Clipped {
		clipped = vk.True
	}
	info := &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               c.surface,
		MinImageCount:         ci.MinImageCount,
		ImageFormat:           vk.Format(ci.Format.Format),
		ImageColorSpace:       vk.ColorSpace(ci.Format.ColorSpace),
		ImageExtent:           vk.Extent2D{Width: ci.Extent.Width, Height: ci.Extent.Height},
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      vk.SharingModeExclusive,
		QueueFamilyIndexCount: 1,
		PQueueFamilyIndices:   []uint32{ci.QueueFamily},
		PreTransform:          vk.SurfaceTransformFlagBits(ci.PreTransform),
		CompositeAlpha:        vk.CompositeAlphaPreMultipliedBit,
		PresentMode:           vk.PresentModeFifo,
		Clipped:               clipped,
	}

	var sc vk.Swapchain
	if err := check(vk.CreateSwapchain(c.device, info, nil, &sc), "create swapchain"); err != nil {
		return 0, err
	}
	h := c.swapchains.put(swapchainEntry{handle: sc})
	c.log.Debug("swapchain created",
		zap.Uint64("handle", h),
		zap.Uint32("width", ci.Extent.Width),
		zap.Uint32("height", ci.Extent.Height))
	return render.Swapchain(h), nil
}

func (c *Context) SwapchainImages(h render.Swapchain) ([]render.Image, error) {
	entry, ok := c.swapchains.get(uint64(h))
	if !ok {
		return nil, unknown("swapchain", uint64(h))
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(c.device, entry.handle, &count, nil), "get swapchain images"); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(c.device, entry.handle, &count, images), "get swapchain images"); err != nil {
		return nil, err
	}

	// Images belong to the swapchain; asking twice must not leak handles.
	for _, old := range entry.images {
		c.images.take(old)
	}
	entry.images = entry.images[:0]
	out := make([]render.Image, 0, count)
	for _, image := range images[:count] {
		ih := c.images.put(image)
		entry.images = append(entry.images, ih)
		out = append(out, render.Image(ih))
	}
	c.swapchains.objects[uint64(h)] = entry
	return out, nil
}

func (c *Context) CreateImageView(h render.Image, format render.Format) (render.ImageView, error) {
	image, ok := c.images.get(uint64(h))
	if !ok {
		return 0, unknown("image", uint64(h))
	}
	info := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange,
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(c.device, info, nil, &view), "create image view"); err != nil {
		return 0, err
	}
	return render.ImageView(c.views.put(view)), nil
}

func (c *Context) CreateCommandPool(queueFamily uint32) (render.CommandPool, error) {
	info := &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}
	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(c.device, info, nil, &pool), "create command pool"); err != nil {
		return 0, err
	}
	return render.CommandPool(c.pools.put(poolEntry{handle: pool})), nil
}

func (c *Context) AllocateCommandBuffers(h render.CommandPool, count int) ([]render.CommandBuffer, error) {
	entry, ok := c.pools.get(uint64(h))
	if !ok {
		return nil, unknown("command pool", uint64(h))
	}
	info := &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        entry.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	buffers := make([]vk.CommandBuffer, count)
	if err := check(vk.AllocateCommandBuffers(c.device, info, buffers), "allocate command buffers"); err != nil {
		return nil, err
	}

	out := make([]render.CommandBuffer, 0, count)
	for _, cb := range buffers {
		bh := c.buffers.put(cb)
		entry.buffers = append(entry.buffers, bh)
		out = append(out, render.CommandBuffer(bh))
	}
	c.pools.objects[uint64(h)] = entry
	return out, nil
}

func (c *Context) CreateFence(signaled bool) (render.Fence, error) {
	info := &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check(vk.CreateFence(c.device, info, nil, &fence), "create fence"); err != nil {
		return 0, err
	}
	return render.Fence(c.fences.put(fence)), nil
}

func (c *Context) CreateSemaphore() (render.Semaphore, error) {
	info := &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if err := check(vk.CreateSemaphore(c.device, info, nil, &sem), "create semaphore"); err != nil {
		return 0, err
	}
	return render.Semaphore(c.semaphores.put(sem)), nil
}

func (c *Context) DestroySemaphore(h render.Semaphore) {
	if sem, ok := c.semaphores.take(uint64(h)); ok {
		vk.DestroySemaphore(c.device, sem, nil)
	}
}

func (c *Context) DestroyFence(h render.Fence) {
	if fence, ok := c.fences.take(uint64(h)); ok {
		vk.DestroyFence(c.device, fence, nil)
	}
}

func (c *Context) DestroyCommandPool(h render.CommandPool) {
	entry, ok := c.pools.take(uint64(h))
	if !ok {
		return
	}
	for _, bh := range entry.buffers {
		c.buffers.take(bh)
	}
	vk.DestroyCommandPool(c.device, entry.handle, nil)
}

func (c *Context) DestroyImageView(h render.ImageView) {
	if view, ok := c.views.take(uint64(h)); ok {
		vk.DestroyImageView(c.device, view, nil)
	}
}

func (c *Context) DestroySwapchain(h render.Swapchain) {
	entry, ok := c.swapchains.take(uint64(h))
	if !ok {
		return
	}
	for _, ih := range entry.images {
		c.images.take(ih)
	}
	vk.DestroySwapchain(c.device, entry.handle, nil)
}

func (c *Context) WaitForFence(h render.Fence, timeout time.Duration) error {
	fence, ok := c.fences.get(uint64(h))
	if !ok {
		return unknown("fence", uint64(h))
	}
	ret := vk.WaitForFences(c.device, 1, []vk.Fence{fence}, vk.True, uint64(timeout.Nanoseconds()))
	if ret == vk.Timeout {
		return fmt.Errorf("fence %d after %s: %w", h, timeout, render.ErrTimeout)
	}
	return check(ret, "wait for fence")
}

func (c *Context) ResetFence(h render.Fence) error {
	fence, ok := c.fences.get(uint64(h))
	if !ok {
		return unknown("fence", uint64(h))
	}
	return check(vk.ResetFences(c.device, 1, []vk.Fence{fence}), "reset fence")
}

func (c *Context) WaitIdle() error {
	return check(vk.DeviceWaitIdle(c.device), "device wait idle")
}

func (c *Context) ResetCommandBuffer(h render.CommandBuffer) error {
	cb, ok := c.buffers.get(uint64(h))
	if !ok {
		return unknown("command buffer", uint64(h))
	}
	return check(vk.ResetCommandBuffer(cb, 0), "reset command buffer")
}

func (c *Context) BeginCommandBuffer(h render.CommandBuffer) error {
	cb, ok := c.buffers.get(uint64(h))
	if !ok {
		return unknown("command buffer", uint64(h))
	}
	info := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check(vk.BeginCommandBuffer(cb, info), "begin command buffer")
}

func (c *Context) EndCommandBuffer(h render.CommandBuffer) error {
	cb, ok := c.buffers.get(uint64(h))
	if !ok {
		return unknown("command buffer", uint64(h))
	}
	return check(vk.EndCommandBuffer(cb), "end command buffer")
}

// recording looks up a command buffer for a Cmd* call, which has no error
// return. An unknown handle is logged and the command dropped; the error
// surfaces at EndCommandBuffer or submit.
func (c *Context) recording(h render.CommandBuffer, op string) (vk.CommandBuffer, bool) {
	cb, ok := c.buffers.get(uint64(h))
	if !ok {
		c.log.Error("command on unknown command buffer",
			zap.String("op", op), zap.Uint64("handle", uint64(h)))
	}
	return cb, ok
}

func (c *Context) CmdImageBarrier(h render.CommandBuffer, b render.ImageBarrier) {
	cb, ok := c.recording(h, "image barrier")
	if !ok {
		return
	}
	image, ok := c.images.get(uint64(b.Image))
	if !ok {
		c.log.Error("barrier on unknown image", zap.Uint64("image", uint64(b.Image)))
		return
	}

	barrier := vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        vk.PipelineStageFlags2(stage2(b.SrcStage)),
		SrcAccessMask:       vk.AccessFlags2(access2(b.SrcAccess)),
		DstStageMask:        vk.PipelineStageFlags2(stage2(b.DstStage)),
		DstAccessMask:       vk.AccessFlags2(access2(b.DstAccess)),
		OldLayout:           imageLayout(b.OldLayout),
		NewLayout:           imageLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorRange,
	}
	dependency := &vk.DependencyInfo{
		SType:                   vk.StructureTypeDependencyInfo,
		ImageMemoryBarrierCount: 1,
		PImageMemoryBarriers:    []vk.ImageMemoryBarrier2{barrier},
	}
	c.cmds.pipelineBarrier(cb, dependency)
}

func (c *Context) CmdBeginRendering(h render.CommandBuffer, info render.RenderingInfo) {
	cb, ok := c.recording(h, "begin rendering")
	if !ok {
		return
	}
	view, ok := c.views.get(uint64(info.View))
	if !ok {
		c.log.Error("rendering to unknown image view", zap.Uint64("view", uint64(info.View)))
		return
	}

	attachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   view,
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      loadOp(info.LoadOp),
		StoreOp:     storeOp(info.StoreOp),
		ClearValue:  vk.NewClearValue(info.ClearColor[:]),
	}
	rendering := &vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: info.Area.Width, Height: info.Area.Height},
		},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{attachment},
	}
	c.cmds.beginRenderingPass(cb, rendering)
}

func (c *Context) CmdEndRendering(h render.CommandBuffer) {
	if cb, ok := c.recording(h, "end rendering"); ok {
		c.cmds.endRenderingPass(cb)
	}
}

func (c *Context) AcquireNextImage(h render.Swapchain, timeout time.Duration, signal render.Semaphore) (uint32, render.Status, error) {
	entry, ok := c.swapchains.get(uint64(h))
	if !ok {
		return 0, render.StatusSuccess, unknown("swapchain", uint64(h))
	}
	sem, ok := c.semaphores.get(uint64(signal))
	if !ok {
		return 0, render.StatusSuccess, unknown("semaphore", uint64(signal))
	}

	var index uint32
	ret := vk.AcquireNextImage(c.device, entry.handle, uint64(timeout.Nanoseconds()), sem, vk.NullFence, &index)
	status, err := presentStatus(ret, "acquire next image")
	return index, status, err
}

func (c *Context) QueueSubmit(s render.SubmitInfo) error {
	cb, ok := c.buffers.get(uint64(s.CommandBuffer))
	if !ok {
		return unknown("command buffer", uint64(s.CommandBuffer))
	}
	wait, ok := c.semaphores.get(uint64(s.WaitSemaphore))
	if !ok {
		return unknown("semaphore", uint64(s.WaitSemaphore))
	}
	signal, ok := c.semaphores.get(uint64(s.Signal))
	if !ok {
		return unknown("semaphore", uint64(s.Signal))
	}
	fence, ok := c.fences.get(uint64(s.Fence))
	if !ok {
		return unknown("fence", uint64(s.Fence))
	}

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait},
		PWaitDstStageMask:    []vk.PipelineStageFlags{stageFlags(s.WaitStage)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal},
	}
	return check(vk.QueueSubmit(c.queue, 1, []vk.SubmitInfo{info}, fence), "queue submit")
}

func (c *Context) QueuePresent(p render.PresentInfo) (render.Status, error) {
	entry, ok := c.swapchains.get(uint64(p.Swapchain))
	if !ok {
		return render.StatusSuccess, unknown("swapchain", uint64(p.Swapchain))
	}
	wait, ok := c.semaphores.get(uint64(p.WaitSemaphore))
	if !ok {
		return render.StatusSuccess, unknown("semaphore", uint64(p.WaitSemaphore))
	}

	info := &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{entry.handle},
		PImageIndices:      []uint32{p.ImageIndex},
	}
	return presentStatus(vk.QueuePresent(c.queue, info), "queue present")
}
