package rc

import (
	"github.com/martinjungblut/cellbox/heap"
	"github.com/martinjungblut/cellbox/trace"
)

// Dropper is implemented by values that must release something when
// the last Rc pointing at them is dropped.
type Dropper interface {
	Drop()
}

// Rc is a single-threaded, reference-counted pointer to an immutable
// value. Clone() produces another owner of the same value; the value
// is freed, and its Drop() called if it is a Dropper, when the last
// owner calls Drop().
//
// Copying an Rc with '=' does not produce a new owner; use Clone().
type Rc[T any] struct {
	pool   *Pool[T]
	handle heap.Handle
}

// New() allocates 'value' in a pool of its own.
func New[T any](value T) Rc[T] {
	return NewPool[T]().New(value)
}

// Clone increments the strong count and returns a new owner of the
// same value; it never allocates.
func (this Rc[T]) Clone() Rc[T] {
	b := this.block()

	count := b.strong.Get() + 1
	b.strong.Set(count)

	this.pool.emit(this.handle, trace.Clone, count)
	return Rc[T]{pool: this.pool, handle: this.handle}
}

// StrongCount returns the number of owners of the value.
func (this Rc[T]) StrongCount() int {
	return this.block().strong.Get()
}

// WeakCount returns the number of live Weak pointers to the value.
func (this Rc[T]) WeakCount() int {
	return this.block().weak.Get()
}

// Get returns a copy of the value. The copy is shallow: if T holds a
// slice, map or pointer, the copy shares that memory with every other
// owner, and mutating it bypasses the read-only contract of Rc. Wrap
// such values in a refcell.RefCell to mutate them.
func (this Rc[T]) Get() T {
	return this.block().value
}

// Use() takes a 'handler' func(T) as its input, and passes a copy of
// the value to said function.
func (this Rc[T]) Use(handler func(T)) {
	handler(this.Get())
}

// IsDropped reports whether Drop() was called on this handle.
func (this Rc[T]) IsDropped() bool {
	return this.pool == nil
}

// Drop releases this owner; if it was the last one, the block is freed
// and the value's Drop() is called. The handle cannot be used again.
// Drop *panics* if:
// 1: the handle was already dropped;
// 2: the block was already freed through another copy of this handle.
func (this *Rc[T]) Drop() {
	b := this.block()
	pool, handle := this.pool, this.handle
	this.pool, this.handle = nil, heap.Handle{}

	count := b.strong.Get()
	if count > 1 {
		b.strong.Set(count - 1)
		pool.emit(handle, trace.Drop, count-1)
		return
	}

	b.strong.Set(0)
	freed, err := pool.heap.Free(handle)
	if err != nil {
		panic("Invalid state: " + err.Error() + ".")
	}
	pool.emit(handle, trace.Free, 0)

	drop(freed.value)
}

// Downgrade returns a Weak pointer to the value, which does not keep
// it alive.
func (this Rc[T]) Downgrade() Weak[T] {
	b := this.block()

	count := b.weak.Get() + 1
	b.weak.Set(count)

	this.pool.emit(this.handle, trace.Downgrade, count)
	dropped := false
	return Weak[T]{pool: this.pool, handle: this.handle, dropped: &dropped}
}

// PtrEq reports whether 'a' and 'b' point at the same block.
func PtrEq[T any](a, b Rc[T]) bool {
	return a.pool == b.pool && a.handle == b.handle
}

func (this Rc[T]) block() *block[T] {
	if this.pool == nil {
		panic("Invalid state: Rc was dropped or never created.")
	}
	return this.pool.mustLookup(this.handle)
}

func drop[T any](value T) {
	if dropper, ok := any(value).(Dropper); ok {
		dropper.Drop()
	} else if dropper, ok := any(&value).(Dropper); ok {
		dropper.Drop()
	}
}
