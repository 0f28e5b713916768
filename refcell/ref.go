package refcell

import (
	"github.com/martinjungblut/cellbox/trace"
)

// handle is the part shared by Ref and RefMut: the cell it borrows
// from, and a liveness flag shared by all copies of the handle.
type handle[T any] struct {
	cell     RefCell[T]
	released *bool
}

func newHandle[T any](cell RefCell[T]) handle[T] {
	released := false
	return handle[T]{cell: cell, released: &released}
}

func (this handle[T]) mustBeLive() {
	if this.released == nil {
		panic("Invalid state: handle was never issued.")
	}
	if *this.released {
		panic("Invalid state: handle was already released.")
	}
}

// Ref is a shared borrow of a RefCell's value.
type Ref[T any] struct {
	handle[T]
}

// Get returns a copy of the borrowed value. The copy is shallow: if T
// holds a slice, map or pointer, writing through the copy mutates the
// cell's value under a shared borrow; use BorrowMut for that instead.
func (this Ref[T]) Get() T {
	this.mustBeLive()
	return *this.cell.value
}

// Release ends the shared borrow; Release *panics* if:
// 1: the handle was already released, or was never issued;
// 2: the cell is not in a shared state, meaning the borrow state has
// been corrupted.
func (this Ref[T]) Release() {
	this.mustBeLive()

	state := this.cell.state.Get()
	n, ok := state.Shared()
	if !ok {
		panic("Invalid state: releasing a shared borrow of a cell that is " + state.String() + ".")
	}

	if n == 1 {
		state = Unborrowed
	} else {
		state = SharedBy(n - 1)
	}

	this.cell.state.Set(state)
	*this.released = true
	this.cell.emit(trace.Release, state)
}

// RefMut is an exclusive borrow of a RefCell's value.
type RefMut[T any] struct {
	handle[T]
}

// Get returns a copy of the borrowed value.
func (this RefMut[T]) Get() T {
	this.mustBeLive()
	return *this.cell.value
}

// Set replaces the borrowed value.
func (this RefMut[T]) Set(value T) {
	this.mustBeLive()
	*this.cell.value = value
}

// Pointer returns the borrowed value for in-place mutation; it must
// not be used after Release().
func (this RefMut[T]) Pointer() *T {
	this.mustBeLive()
	return this.cell.value
}

// Release ends the exclusive borrow; Release *panics* if:
// 1: the handle was already released, or was never issued;
// 2: the cell is not exclusively borrowed, meaning the borrow state
// has been corrupted.
func (this RefMut[T]) Release() {
	this.mustBeLive()

	state := this.cell.state.Get()
	if !state.IsExclusive() {
		panic("Invalid state: releasing an exclusive borrow of a cell that is " + state.String() + ".")
	}

	this.cell.state.Set(Unborrowed)
	*this.released = true
	this.cell.emit(trace.Release, Unborrowed)
}
