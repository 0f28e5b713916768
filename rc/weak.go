package rc

import (
	"github.com/martinjungblut/cellbox/heap"
	"github.com/martinjungblut/cellbox/trace"
)

// Weak is a non-owning pointer to a value held by Rc; it does not
// affect the strong count, and fails to upgrade once the value has
// been freed. The zero Weak never upgrades.
//
// Copies of a Weak share one dropped flag, so a Weak is dropped once
// no matter how many times it was copied.
type Weak[T any] struct {
	pool    *Pool[T]
	handle  heap.Handle
	dropped *bool
}

// Upgrade returns a new owner of the value, or false if the value has
// already been freed.
func (this Weak[T]) Upgrade() (Rc[T], bool) {
	b, ok := this.block()
	if !ok {
		this.pool.emit(this.handle, trace.Refuse, 0)
		return Rc[T]{}, false
	}

	count := b.strong.Get() + 1
	b.strong.Set(count)

	this.pool.emit(this.handle, trace.Upgrade, count)
	return Rc[T]{pool: this.pool, handle: this.handle}, true
}

// StrongCount returns the number of owners of the value, or 0 if it
// has been freed.
func (this Weak[T]) StrongCount() int {
	b, ok := this.block()
	if !ok {
		return 0
	}
	return b.strong.Get()
}

// Drop releases this Weak pointer; dropping the zero Weak has no
// effect. Drop *panics* if:
// 1: this Weak, or a copy of it, was already dropped.
func (this *Weak[T]) Drop() {
	if this.dropped == nil {
		return
	}
	this.mustNotBeDropped()

	if b, ok := this.block(); ok {
		b.weak.Set(b.weak.Get() - 1)
	}
	*this.dropped = true
	this.pool, this.handle = nil, heap.Handle{}
}

func (this Weak[T]) mustNotBeDropped() {
	if this.dropped != nil && *this.dropped {
		panic("Invalid state: Weak was already dropped.")
	}
}

// block returns false for the zero Weak and for freed blocks; using a
// dropped Weak panics.
func (this Weak[T]) block() (*block[T], bool) {
	this.mustNotBeDropped()

	if this.pool == nil {
		return nil, false
	}
	return this.pool.lookup(this.handle)
}
