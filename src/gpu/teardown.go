package gpu

// teardown collects release functions as objects are created and runs them
// newest first.
type teardown struct {
	fns []func()
}

func (t *teardown) push(fn func()) {
	t.fns = append(t.fns, fn)
}

// run releases everything pushed so far. It leaves the stack empty, so a
// second run does nothing.
func (t *teardown) run() {
	for i := len(t.fns) - 1; i >= 0; i-- {
		t.fns[i]()
	}
	t.fns = nil
}

func (t *teardown) len() int { return len(t.fns) }
