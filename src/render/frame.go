package render

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Frame renders and presents one frame: wait for the slot's fence, reset it,
// acquire an image, record the clear pass around draw, submit and present.
//
// A swapchain reported out of date is rebuilt and the frame retried once.
// Every other failure is returned as is; the renderer does not retry it.
func (r *Renderer) Frame(draw DrawFunc) error {
	if r.closed {
		return ErrClosed
	}
	if draw == nil {
		draw = NoDraw
	}

	if ok, err := r.ensureSwapchain(); !ok {
		return err
	}

	err := r.renderFrame(draw)
	if !IsOutOfDate(err) {
		return err
	}

	r.log.Debug("swapchain out of date", zap.Uint64("generation", r.swapchain.Generation))
	if ok, err := r.ensureSwapchain(); !ok {
		return err
	}
	return r.renderFrame(draw)
}

// ensureSwapchain rebuilds an Invalid swapchain. It reports false with a nil
// error when there is nothing to present to, as with a minimized window; the
// swapchain then stays Invalid and the frame is skipped.
func (r *Renderer) ensureSwapchain() (bool, error) {
	if r.swapchain.Valid {
		return true, nil
	}
	if r.windowExtent().Empty() {
		return false, nil
	}
	err := r.Rebuild()
	if errors.Is(err, ErrEmptyExtent) {
		r.log.Debug("skipping frame", zap.Error(err))
		return false, nil
	}
	return err == nil, err
}

func (r *Renderer) renderFrame(draw DrawFunc) error {
	slot := r.current
	fence := r.fences[slot]
	imageAvailable := r.imageAvailable[slot]
	renderFinished := r.renderFinished[slot]
	cb := r.commandBuffers[slot]

	if err := r.device.WaitForFence(fence, r.opts.fenceTimeout); err != nil {
		return frameError(ErrFenceWait, err)
	}
	if err := r.device.ResetFence(fence); err != nil {
		return frameError(ErrFenceWait, err)
	}

	index, status, err := r.device.AcquireNextImage(r.swapchain.Handle, r.opts.acquireTimeout, imageAvailable)
	if err != nil {
		return frameError(ErrAcquire, err)
	}
	switch status {
	case StatusOutOfDate:
		// The fence of this slot stays unsignaled; the rebuild replaces it.
		r.swapchain.Valid = false
		return ErrOutOfDate
	case StatusSuboptimal:
		r.stale = true
	}
	if int(index) >= len(r.images) {
		return fmt.Errorf("%w: image index %d out of range [0,%d)", ErrAcquire, index, len(r.images))
	}
	if int(index) != slot {
		r.stats.Divergences++
		r.log.Debug("acquired image differs from frame slot",
			zap.Uint32("image", index), zap.Int("slot", slot))
	}

	rc := &RecordingContext{
		CommandBuffer: cb,
		Image:         r.images[index],
		ImageView:     r.views[index],
		ImageIndex:    index,
		Slot:          slot,
		Extent:        r.frameExtent(),
		Generation:    r.swapchain.Generation,
	}
	if err := r.record(rc, draw); err != nil {
		return frameError(ErrRecord, err)
	}

	err = r.device.QueueSubmit(SubmitInfo{
		CommandBuffer: cb,
		WaitSemaphore: imageAvailable,
		WaitStage:     StageColorAttachmentOutput,
		Signal:        renderFinished,
		Fence:         fence,
	})
	if err != nil {
		return frameError(ErrSubmit, err)
	}

	status, err = r.device.QueuePresent(PresentInfo{
		Swapchain:     r.swapchain.Handle,
		ImageIndex:    index,
		WaitSemaphore: renderFinished,
	})
	if err != nil {
		return frameError(ErrPresent, err)
	}
	if status == StatusOutOfDate {
		r.swapchain.Valid = false
		return ErrOutOfDate
	}

	r.current = (slot + 1) % r.frames
	r.stats.Frames++
	if status == StatusSuboptimal || r.stale {
		r.stale = false
		r.swapchain.Valid = false
	}
	return nil
}

// record fills the slot's command buffer: transition the image for colour
// output, clear it inside a dynamic rendering pass that brackets draw, then
// transition it for presentation.
func (r *Renderer) record(rc *RecordingContext, draw DrawFunc) error {
	cb := rc.CommandBuffer
	if err := r.device.ResetCommandBuffer(cb); err != nil {
		return err
	}
	if err := r.device.BeginCommandBuffer(cb); err != nil {
		return err
	}

	r.device.CmdImageBarrier(cb, ImageBarrier{
		Image:     rc.Image,
		OldLayout: LayoutUndefined,
		NewLayout: LayoutColorAttachmentOptimal,
		SrcStage:  StageColorAttachmentOutput,
		SrcAccess: AccessNone,
		DstStage:  StageColorAttachmentOutput,
		DstAccess: AccessColorAttachmentWrite,
	})

	r.device.CmdBeginRendering(cb, RenderingInfo{
		View:       rc.ImageView,
		Area:       rc.Extent,
		LoadOp:     LoadOpClear,
		StoreOp:    StoreOpStore,
		ClearColor: [4]float32(r.opts.clearColor),
	})
	draw(rc)
	r.device.CmdEndRendering(cb)

	r.device.CmdImageBarrier(cb, ImageBarrier{
		Image:     rc.Image,
		OldLayout: LayoutColorAttachmentOptimal,
		NewLayout: LayoutPresentSrc,
		SrcStage:  StageColorAttachmentOutput,
		SrcAccess: AccessColorAttachmentWrite,
		DstStage:  StageBottomOfPipe,
		DstAccess: AccessNone,
	})

	return r.device.EndCommandBuffer(cb)
}

// frameExtent is the window size at record time, bounded by the swapchain
// extent so the render area never leaves the image.
func (r *Renderer) frameExtent() Extent {
	w := r.windowExtent()
	return Extent{
		Width:  min(w.Width, r.extent.Width),
		Height: min(w.Height, r.extent.Height),
	}
}
