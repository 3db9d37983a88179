package gpu

// Destroyer is any handle that is released with Destroy.
type Destroyer interface {
	Destroy()
}

// Releaser collects release functions for objects as they are created and
// runs them in reverse order. A constructor that fails partway releases what
// it already created; an owner that succeeds keeps the Releaser and calls
// Release when it is torn down.
//
// The zero value is ready to use.
type Releaser struct {
	funcs []func()
}

// Add registers d for release. Nil interfaces are ignored.
func (r *Releaser) Add(d Destroyer) {
	if d == nil {
		return
	}
	r.funcs = append(r.funcs, d.Destroy)
}

func (r *Releaser) AddFunc(f func()) {
	if f == nil {
		return
	}
	r.funcs = append(r.funcs, f)
}

// Len reports how many releases are pending.
func (r *Releaser) Len() int {
	return len(r.funcs)
}

// Release runs all pending releases, newest first, and empties the
// Releaser. Calling it again is a no-op.
func (r *Releaser) Release() {
	for i := len(r.funcs) - 1; i >= 0; i-- {
		r.funcs[i]()
	}
	r.funcs = r.funcs[:0]
}

// ReleaseOnError releases everything if *err is non-nil. Use it deferred in
// constructors:
//
//	var rel gpu.Releaser
//	defer rel.ReleaseOnError(&err)
func (r *Releaser) ReleaseOnError(err *error) {
	if err != nil && *err != nil {
		r.Release()
	}
}
