package cell

import (
	"reflect"
)

// Cell is a mutable memory location that only ever hands out copies of
// its value; copies of a Cell always refer to the same location, so a
// Set() on any copy is observed by all copies.
type Cell[T any] struct {
	// 'value' is a *T so that a Cell passed by value can still be
	// mutated.
	value *T
}

// New() creates a new Cell;
// New *panics* if:
// 1: T is not bitwise copyable (see IsCopyable).
func New[T any](value T) Cell[T] {
	if !IsCopyable(reflect.TypeOf((*T)(nil)).Elem()) {
		panic("Invalid state: value is not bitwise copyable.")
	}

	return Cell[T]{value: &value}
}

// Set replaces the Cell's value.
func (this Cell[T]) Set(value T) {
	*this.value = value
}

// Get returns a copy of the Cell's value.
func (this Cell[T]) Get() T {
	return *this.value
}

// Replace stores 'value' and returns the previous one.
func (this Cell[T]) Replace(value T) T {
	previous := this.Get()
	this.Set(value)
	return previous
}

// Update passes a copy of the Cell's value to 'handler' and stores
// the returned value, which is also returned to the caller.
func (this Cell[T]) Update(handler func(T) T) T {
	current := handler(this.Get())
	this.Set(current)
	return current
}

// IsCopyable reports whether a copy of a value of type 't' shares no
// mutable memory with the original. Strings count as copyable since
// Go strings are immutable.
func IsCopyable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	case reflect.Array:
		return IsCopyable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !IsCopyable(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
