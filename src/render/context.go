package render

// RecordingContext is handed to the draw callback while a dynamic rendering
// pass is open on CommandBuffer.
type RecordingContext struct {
	CommandBuffer CommandBuffer
	Image         Image
	ImageView     ImageView
	ImageIndex    uint32
	Slot          int
	Extent        Extent
	Generation    uint64
}

// DrawFunc records draw commands into rc.CommandBuffer. It must not acquire,
// submit or present.
type DrawFunc func(rc *RecordingContext)

// NoDraw leaves the cleared attachment as is.
func NoDraw(*RecordingContext) {}
