package gpu

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"umisu/src/render"
)

// synchronization2 stage and access bits are 64-bit and not generated as
// enums by the binding.
const (
	stage2None                  uint64 = 0
	stage2ColorAttachmentOutput uint64 = 0x00000400
	stage2BottomOfPipe          uint64 = 0x00002000

	access2None                 uint64 = 0
	access2ColorAttachmentWrite uint64 = 0x00000100
)

func imageLayout(l render.ImageLayout) vk.ImageLayout {
	switch l {
	case render.LayoutColorAttachmentOptimal:
		return vk.ImageLayoutColorAttachmentOptimal
	case render.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func stage2(s render.PipelineStage) uint64 {
	switch s {
	case render.StageColorAttachmentOutput:
		return stage2ColorAttachmentOutput
	case render.StageBottomOfPipe:
		return stage2BottomOfPipe
	default:
		return stage2None
	}
}

func access2(a render.Access) uint64 {
	switch a {
	case render.AccessColorAttachmentWrite:
		return access2ColorAttachmentWrite
	default:
		return access2None
	}
}

// stageFlags is the legacy 32-bit form used by the submit wait mask.
func stageFlags(s render.PipelineStage) vk.PipelineStageFlags {
	switch s {
	case render.StageColorAttachmentOutput:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case render.StageBottomOfPipe:
		return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

func loadOp(op render.LoadOp) vk.AttachmentLoadOp {
	if op == render.LoadOpLoad {
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpClear
}

func storeOp(op render.StoreOp) vk.AttachmentStoreOp {
	if op == render.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

// presentStatus splits an acquire or present result into the outcomes the
// renderer handles and real failures.
func presentStatus(ret vk.Result, op string) (render.Status, error) {
	switch ret {
	case vk.Success:
		return render.StatusSuccess, nil
	case vk.Suboptimal:
		return render.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return render.StatusOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return render.StatusSuccess, fmt.Errorf("%s: %w", op, render.ErrTimeout)
	default:
		return render.StatusSuccess, check(ret, op)
	}
}

func extent(e vk.Extent2D) render.Extent {
	e.Deref()
	return render.Extent{Width: e.Width, Height: e.Height}
}
