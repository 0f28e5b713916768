package rc

import (
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/martinjungblut/cellbox/cell"
	"github.com/martinjungblut/cellbox/heap"
	"github.com/martinjungblut/cellbox/trace"
)

// block is the single allocation shared by every Rc and Weak pointing
// at the same value; the counts live next to the value, not in the
// handles, so that every handle observes the same counts.
type block[T any] struct {
	value  T
	strong cell.Cell[int]
	weak   cell.Cell[int]
}

// Pool owns the blocks of the Rc values created from it. It is not
// safe for concurrent use, and neither are the Rc values it creates.
type Pool[T any] struct {
	heap  *heap.Heap[block[T]]
	group *trace.Group
}

type Option func(*options)

type options struct {
	capacity int
	group    *trace.Group
	logger   hclog.Logger
}

// WithCapacity preallocates room for 'n' blocks.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithTrace reports allocations, clones, drops and frees to 'group'.
func WithTrace(group *trace.Group) Option {
	return func(o *options) {
		o.group = group
	}
}

// WithLogger writes allocations, clones, drops and frees to 'logger';
// it has no effect when WithTrace is also given.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func NewPool[T any](opts ...Option) *Pool[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	group := o.group
	if group == nil && o.logger != nil {
		group = trace.NewGroup(o.logger.Name())
		group.OnEvent(trace.HCLog(o.logger))
	}

	return &Pool[T]{
		heap:  heap.New[block[T]](heap.WithCapacity(o.capacity)),
		group: group,
	}
}

// New allocates a block holding 'value' with a strong count of 1.
func (p *Pool[T]) New(value T) Rc[T] {
	handle := p.heap.Alloc(block[T]{
		value:  value,
		strong: cell.New(1),
		weak:   cell.New(0),
	})

	p.emit(handle, trace.Alloc, 1)
	return Rc[T]{pool: p, handle: handle}
}

// Live returns the number of blocks that have not been freed.
func (p *Pool[T]) Live() int {
	return p.heap.Live()
}

// Close reports every block that has not been freed as a leak.
func (p *Pool[T]) Close() error {
	return p.heap.Close()
}

// lookup returns the block addressed by 'handle', or false if it has
// been freed.
func (p *Pool[T]) lookup(handle heap.Handle) (*block[T], bool) {
	b, err := p.heap.Get(handle)
	if err != nil {
		return nil, false
	}
	return b, true
}

// mustLookup is lookup for strong handles, which must never observe a
// freed block.
func (p *Pool[T]) mustLookup(handle heap.Handle) *block[T] {
	b, err := p.heap.Get(handle)
	if err != nil {
		panic("Invalid state: " + err.Error() + ".")
	}
	return b
}

func (p *Pool[T]) emit(handle heap.Handle, kind trace.Kind, count int) {
	if p != nil && p.group != nil {
		p.group.Emit(handle.String(), kind, strconv.Itoa(count))
	}
}
