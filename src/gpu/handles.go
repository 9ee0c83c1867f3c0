package gpu

// handleTable maps the opaque uint64 handles the renderer holds to the
// Vulkan objects behind them. Zero is never issued.
type handleTable[T any] struct {
	next    uint64
	objects map[uint64]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{objects: make(map[uint64]T)}
}

func (t *handleTable[T]) put(v T) uint64 {
	t.next++
	t.objects[t.next] = v
	return t.next
}

func (t *handleTable[T]) get(h uint64) (T, bool) {
	v, ok := t.objects[h]
	return v, ok
}

// take removes h and returns what it referred to.
func (t *handleTable[T]) take(h uint64) (T, bool) {
	v, ok := t.objects[h]
	if ok {
		delete(t.objects, h)
	}
	return v, ok
}

func (t *handleTable[T]) len() int { return len(t.objects) }
