package refcell

import (
	"github.com/pkg/errors"

	"github.com/martinjungblut/cellbox/cell"
	"github.com/martinjungblut/cellbox/trace"
)

var (
	// ErrAlreadyBorrowed is returned by TryBorrowMut when shared or
	// exclusive borrows are live.
	ErrAlreadyBorrowed = errors.New("already borrowed")
	// ErrAlreadyMutablyBorrowed is returned by TryBorrow when an
	// exclusive borrow is live.
	ErrAlreadyMutablyBorrowed = errors.New("already mutably borrowed")
)

// RefCell is a mutable memory location with dynamically checked
// borrow rules; copies of a RefCell always refer to the same value and
// the same borrow state.
//
// Any number of Ref handles, or exactly one RefMut handle, may be live
// at a time. Handles must be released explicitly, or obtained through
// Read() and Write(), which release them on every exit path.
type RefCell[T any] struct {
	value *T
	state cell.Cell[BorrowState]
	name  string
	group *trace.Group
}

// New() creates a new, unborrowed RefCell.
func New[T any](value T) RefCell[T] {
	return RefCell[T]{
		value: &value,
		state: cell.New(Unborrowed),
	}
}

// NewNamed() creates a new RefCell whose borrows, refusals and
// releases are reported to 'group' under 'name'.
func NewNamed[T any](group *trace.Group, name string, value T) RefCell[T] {
	instance := New(value)
	instance.name = name
	instance.group = group
	return instance
}

// State returns the current borrow state.
func (this RefCell[T]) State() BorrowState {
	this.mustBeAlive()
	return this.state.Get()
}

// Borrow issues a shared borrow; it returns false, and no handle, if
// the cell is exclusively borrowed.
func (this RefCell[T]) Borrow() (Ref[T], bool) {
	this.mustBeAlive()

	state := this.state.Get()
	switch {
	case state.IsUnborrowed():
		state = SharedBy(1)
	case state > 0:
		state = state + 1
	default:
		this.emit(trace.Refuse, state)
		return Ref[T]{}, false
	}

	this.state.Set(state)
	this.emit(trace.Borrow, state)
	return Ref[T]{handle: newHandle(this)}, true
}

// BorrowMut issues an exclusive borrow; it returns false, and no
// handle, if any borrow is live.
func (this RefCell[T]) BorrowMut() (RefMut[T], bool) {
	this.mustBeAlive()

	state := this.state.Get()
	if !state.IsUnborrowed() {
		this.emit(trace.Refuse, state)
		return RefMut[T]{}, false
	}

	this.state.Set(Exclusive)
	this.emit(trace.BorrowMut, Exclusive)
	return RefMut[T]{handle: newHandle(this)}, true
}

// TryBorrow is Borrow, reporting a refusal as ErrAlreadyMutablyBorrowed.
func (this RefCell[T]) TryBorrow() (Ref[T], error) {
	ref, ok := this.Borrow()
	if !ok {
		return ref, errors.Wrapf(ErrAlreadyMutablyBorrowed, "borrow %s", this.describe())
	}
	return ref, nil
}

// TryBorrowMut is BorrowMut, reporting a refusal as ErrAlreadyBorrowed.
func (this RefCell[T]) TryBorrowMut() (RefMut[T], error) {
	ref, ok := this.BorrowMut()
	if !ok {
		return ref, errors.Wrapf(ErrAlreadyBorrowed, "borrow_mut %s", this.describe())
	}
	return ref, nil
}

// Read() takes a 'handler' func(T) as its input, and passes a copy of
// the cell's value to it while a shared borrow is held; the borrow is
// released when 'handler' returns or panics. Read returns false, and
// never calls 'handler', if the borrow is refused.
func (this RefCell[T]) Read(handler func(T)) bool {
	ref, ok := this.Borrow()
	if !ok {
		return false
	}
	defer ref.Release()

	handler(ref.Get())
	return true
}

// Write() takes a 'handler' func(*T) as its input, and passes the
// cell's value to it while an exclusive borrow is held; the borrow is
// released when 'handler' returns or panics. The pointer must not be
// retained after 'handler' returns.
func (this RefCell[T]) Write(handler func(*T)) bool {
	ref, ok := this.BorrowMut()
	if !ok {
		return false
	}
	defer ref.Release()

	handler(ref.Pointer())
	return true
}

// Replace stores 'value' and returns the previous one; it returns
// false if the cell cannot be exclusively borrowed.
func (this RefCell[T]) Replace(value T) (T, bool) {
	var previous T

	ok := this.Write(func(current *T) {
		previous = *current
		*current = value
	})
	return previous, ok
}

// Take replaces the value with T's zero value and returns it.
func (this RefCell[T]) Take() (T, bool) {
	var zero T
	return this.Replace(zero)
}

// Swap exchanges the values of two cells; it returns false, leaving
// both untouched, if either cell cannot be exclusively borrowed. A
// cell can never be swapped with itself.
func (this RefCell[T]) Swap(other RefCell[T]) bool {
	mine, ok := this.BorrowMut()
	if !ok {
		return false
	}
	defer mine.Release()

	theirs, ok := other.BorrowMut()
	if !ok {
		return false
	}
	defer theirs.Release()

	*mine.Pointer(), *theirs.Pointer() = *theirs.Pointer(), *mine.Pointer()
	return true
}

func (this RefCell[T]) mustBeAlive() {
	if this.value == nil {
		panic("Invalid state: RefCell was not created by New().")
	}
}

func (this RefCell[T]) describe() string {
	state := this.state.Get().String()
	if this.name == "" {
		return "cell is " + state
	}
	return "cell " + this.name + " is " + state
}

func (this RefCell[T]) emit(kind trace.Kind, state BorrowState) {
	if this.group != nil {
		this.group.Emit(this.name, kind, state.String())
	}
}

// SliceExtract() converts a slice of RefCell[T] into a slice of T,
// skipping cells that are exclusively borrowed.
func SliceExtract[T any](input []RefCell[T]) []T {
	output := make([]T, 0, len(input))

	for _, item := range input {
		item.Read(func(value T) {
			output = append(output, value)
		})
	}

	return output
}
