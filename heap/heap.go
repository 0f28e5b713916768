// Package heap is a generational arena: values live in slots addressed
// by Handle, and are released explicitly with Free. A Handle to a freed
// slot is detected as stale, even after the slot has been reused.
package heap

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var (
	ErrInvalidHandle = errors.New("invalid handle")
	ErrStaleHandle   = errors.New("stale handle")
)

// Handle addresses one allocation. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether 'h' is the zero Handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d@%d", h.index, h.generation)
}

type slot[T any] struct {
	value T
	// generation is odd while the slot is live, even while it is free.
	generation uint32
}

func (s *slot[T]) live() bool {
	return s.generation%2 == 1
}

// Heap owns every value allocated in it. It is not safe for concurrent
// use.
type Heap[T any] struct {
	// slots holds pointers so that values never move when the arena
	// grows.
	slots []*slot[T]
	free  []uint32
	live  int
}

type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity preallocates room for 'n' slots.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

func New[T any](opts ...Option) *Heap[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &Heap[T]{
		slots: make([]*slot[T], 0, o.capacity),
	}
}

// Alloc stores 'value' in a free slot, reusing freed slots first.
func (h *Heap[T]) Alloc(value T) Handle {
	var index uint32
	var s *slot[T]

	if n := len(h.free); n > 0 {
		index = h.free[n-1]
		h.free = h.free[:n-1]
		s = h.slots[index]
	} else {
		index = uint32(len(h.slots))
		s = &slot[T]{}
		h.slots = append(h.slots, s)
	}

	s.value = value
	s.generation++
	h.live++

	return Handle{index: index, generation: s.generation}
}

// Get returns the value addressed by 'handle'. The pointer is valid
// until the slot is freed.
func (h *Heap[T]) Get(handle Handle) (*T, error) {
	s, err := h.lookup(handle)
	if err != nil {
		return nil, err
	}
	return &s.value, nil
}

// Free releases the slot addressed by 'handle' and returns the value it
// held; every Handle to the slot becomes stale.
func (h *Heap[T]) Free(handle Handle) (T, error) {
	var zero T

	s, err := h.lookup(handle)
	if err != nil {
		return zero, err
	}

	value := s.value
	s.value = zero
	s.generation++
	h.free = append(h.free, handle.index)
	h.live--

	return value, nil
}

// Live returns the number of allocated slots.
func (h *Heap[T]) Live() int {
	return h.live
}

// Each calls 'handler' for every live slot, in slot order.
func (h *Heap[T]) Each(handler func(Handle, *T)) {
	for index, s := range h.slots {
		if s.live() {
			handler(Handle{index: uint32(index), generation: s.generation}, &s.value)
		}
	}
}

// Close reports every slot that is still live as a leak; it does not
// free them.
func (h *Heap[T]) Close() error {
	var result *multierror.Error

	h.Each(func(handle Handle, _ *T) {
		result = multierror.Append(result, errors.Errorf("leaked allocation %s", handle))
	})

	return result.ErrorOrNil()
}

func (h *Heap[T]) lookup(handle Handle) (*slot[T], error) {
	if handle.IsZero() || int(handle.index) >= len(h.slots) {
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %s", handle)
	}

	s := h.slots[handle.index]
	if s.generation != handle.generation {
		return nil, errors.Wrapf(ErrStaleHandle, "handle %s, slot is at generation %d", handle, s.generation)
	}
	return s, nil
}
