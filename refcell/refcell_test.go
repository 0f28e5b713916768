package refcell

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/martinjungblut/cellbox/trace"
)

// Counter is used by the test suite to observe state mutations.
type Counter struct {
	Value int
}

func Test_RefCell_New_Unborrowed(t *testing.T) {
	cell := New(42)

	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_Borrow(t *testing.T) {
	cell := New(42)

	ref, ok := cell.Borrow()

	require.True(t, ok)
	require.Equal(t, 42, ref.Get())
	require.Equal(t, SharedBy(1), cell.State())
}

func Test_RefCell_Borrow_String(t *testing.T) {
	cell := New("hello")

	ref, ok := cell.Borrow()
	require.True(t, ok)
	defer ref.Release()

	require.Equal(t, "hello", ref.Get())
}

func Test_RefCell_Borrow_Release_BorrowMut(t *testing.T) {
	cell := New(1)

	ref, ok := cell.Borrow()
	require.True(t, ok)
	ref.Release()

	_, ok = cell.BorrowMut()
	require.True(t, ok)
}

func Test_RefCell_Two_Borrows_Refuse_BorrowMut(t *testing.T) {
	cell := New(1)

	first, ok := cell.Borrow()
	require.True(t, ok)
	second, ok := cell.Borrow()
	require.True(t, ok)

	_, ok = cell.BorrowMut()
	require.False(t, ok)
	require.Equal(t, SharedBy(2), cell.State())

	first.Release()
	require.Equal(t, SharedBy(1), cell.State())
	second.Release()
	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_BorrowMut_Refuses_Everything(t *testing.T) {
	cell := New(1)

	ref, ok := cell.BorrowMut()
	require.True(t, ok)
	require.Equal(t, Exclusive, cell.State())

	_, ok = cell.Borrow()
	require.False(t, ok)
	_, ok = cell.BorrowMut()
	require.False(t, ok)
	require.Equal(t, Exclusive, cell.State())

	ref.Release()
	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_BorrowMut_Set_And_Pointer(t *testing.T) {
	cell := New(Counter{})

	ref, ok := cell.BorrowMut()
	require.True(t, ok)

	ref.Set(Counter{Value: 10})
	ref.Pointer().Value++
	require.Equal(t, Counter{Value: 11}, ref.Get())
	ref.Release()

	require.True(t, cell.Read(func(counter Counter) {
		require.Equal(t, 11, counter.Value)
	}))
}

func Test_RefCell_Copies_Share_State(t *testing.T) {
	cell := New(1)
	copied := cell

	ref, ok := copied.BorrowMut()
	require.True(t, ok)

	_, ok = cell.Borrow()
	require.False(t, ok)

	ref.Release()
	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_TryBorrow(t *testing.T) {
	cell := New(1)

	ref, err := cell.TryBorrowMut()
	require.NoError(t, err)

	_, err = cell.TryBorrow()
	require.ErrorIs(t, err, ErrAlreadyMutablyBorrowed)
	require.EqualError(t, err, "borrow cell is exclusive: already mutably borrowed")

	ref.Release()
}

func Test_RefCell_TryBorrowMut(t *testing.T) {
	cell := NewNamed(nil, "settings", 1)

	ref, err := cell.TryBorrow()
	require.NoError(t, err)

	_, err = cell.TryBorrowMut()
	require.ErrorIs(t, err, ErrAlreadyBorrowed)
	require.EqualError(t, err, "borrow_mut cell settings is shared(1): already borrowed")

	ref.Release()
}

func Test_RefCell_Read(t *testing.T) {
	cell := New(5)
	seen := 0

	ok := cell.Read(func(value int) {
		seen = value
		require.Equal(t, SharedBy(1), cell.State())
	})

	require.True(t, ok)
	require.Equal(t, 5, seen)
	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_Read_Refused(t *testing.T) {
	cell := New(5)
	ref, _ := cell.BorrowMut()
	defer ref.Release()

	called := false
	ok := cell.Read(func(int) {
		called = true
	})

	require.False(t, ok)
	require.False(t, called, "Read() should not invoke its handler when refused.")
}

func Test_RefCell_Write(t *testing.T) {
	cell := New(Counter{})

	ok := cell.Write(func(counter *Counter) {
		counter.Value = 3
		require.Equal(t, Exclusive, cell.State())
	})

	require.True(t, ok)
	require.Equal(t, Unborrowed, cell.State())
	cell.Read(func(counter Counter) {
		require.Equal(t, 3, counter.Value)
	})
}

func Test_RefCell_Nested_Read_Write(t *testing.T) {
	cell := New(0)

	cell.Read(func(int) {
		require.True(t, cell.Read(func(int) {
			require.Equal(t, SharedBy(2), cell.State())
		}))
		require.False(t, cell.Write(func(*int) {}))
	})

	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_Write_Releases_On_Panic(t *testing.T) {
	cell := New(0)

	require.Panics(t, func() {
		cell.Write(func(*int) {
			panic("boom")
		})
	})

	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_Replace_And_Take(t *testing.T) {
	cell := New("first")

	previous, ok := cell.Replace("second")
	require.True(t, ok)
	require.Equal(t, "first", previous)

	taken, ok := cell.Take()
	require.True(t, ok)
	require.Equal(t, "second", taken)

	cell.Read(func(value string) {
		require.Equal(t, "", value)
	})
}

func Test_RefCell_Replace_Refused(t *testing.T) {
	cell := New(1)
	ref, _ := cell.Borrow()
	defer ref.Release()

	_, ok := cell.Replace(2)
	require.False(t, ok)
	require.Equal(t, 1, ref.Get())
}

func Test_RefCell_Swap(t *testing.T) {
	left := New(1)
	right := New(2)

	require.True(t, left.Swap(right))

	left.Read(func(value int) { require.Equal(t, 2, value) })
	right.Read(func(value int) { require.Equal(t, 1, value) })
	require.Equal(t, Unborrowed, left.State())
	require.Equal(t, Unborrowed, right.State())
}

func Test_RefCell_Swap_Self_Refused(t *testing.T) {
	cell := New(1)

	require.False(t, cell.Swap(cell))
	require.Equal(t, Unborrowed, cell.State())
}

func Test_RefCell_Swap_Borrowed_Refused(t *testing.T) {
	left := New(1)
	right := New(2)
	ref, _ := right.Borrow()

	require.False(t, left.Swap(right))
	require.Equal(t, Unborrowed, left.State())

	ref.Release()
	right.Read(func(value int) { require.Equal(t, 2, value) })
}

func Test_RefCell_Zero_Value_Panics(t *testing.T) {
	var cell RefCell[int]

	require.PanicsWithValue(t, "Invalid state: RefCell was not created by New().", func() {
		cell.Borrow()
	})
}

func Test_Ref_Double_Release_Panics(t *testing.T) {
	cell := New(1)
	ref, _ := cell.Borrow()
	copied := ref
	ref.Release()

	require.PanicsWithValue(t, "Invalid state: handle was already released.", func() {
		copied.Release()
	})
	require.Equal(t, Unborrowed, cell.State())
}

func Test_Ref_Use_After_Release_Panics(t *testing.T) {
	cell := New(1)
	ref, _ := cell.BorrowMut()
	ref.Release()

	require.Panics(t, func() {
		ref.Set(2)
	})
	require.Panics(t, func() {
		ref.Pointer()
	})
}

func Test_Ref_Refused_Handle_Panics(t *testing.T) {
	cell := New(1)
	mut, _ := cell.BorrowMut()
	defer mut.Release()

	ref, ok := cell.Borrow()
	require.False(t, ok)
	require.PanicsWithValue(t, "Invalid state: handle was never issued.", func() {
		ref.Get()
	})
}

func Test_Ref_Release_Corrupted_State_Panics(t *testing.T) {
	cell := New(1)
	ref, _ := cell.Borrow()
	cell.state.Set(Exclusive)

	require.PanicsWithValue(t, "Invalid state: releasing a shared borrow of a cell that is exclusive.", func() {
		ref.Release()
	})
}

func Test_RefMut_Release_Corrupted_State_Panics(t *testing.T) {
	cell := New(1)
	ref, _ := cell.BorrowMut()
	cell.state.Set(SharedBy(3))

	require.PanicsWithValue(t, "Invalid state: releasing an exclusive borrow of a cell that is shared(3).", func() {
		ref.Release()
	})
}

func Test_RefCell_Group_Events(t *testing.T) {
	group := trace.NewGroup("cells")
	events := []trace.Event{}
	group.OnEvent(func(event trace.Event) {
		events = append(events, event)
	})

	cell := NewNamed(group, "counter", 0)
	ref, _ := cell.Borrow()
	cell.BorrowMut()
	ref.Release()
	cell.Write(func(value *int) { *value++ })

	want := []trace.Event{
		{GroupName: "cells", Name: "counter", Kind: trace.Borrow, State: "shared(1)"},
		{GroupName: "cells", Name: "counter", Kind: trace.Refuse, State: "shared(1)"},
		{GroupName: "cells", Name: "counter", Kind: trace.Release, State: "unborrowed"},
		{GroupName: "cells", Name: "counter", Kind: trace.BorrowMut, State: "exclusive"},
		{GroupName: "cells", Name: "counter", Kind: trace.Release, State: "unborrowed"},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}

// Test_RefCell_Random_Sequences drives random borrow/release sequences
// and checks the state against a model of the live handles.
func Test_RefCell_Random_Sequences(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	cell := New(0)

	shared := []Ref[int]{}
	exclusive := []RefMut[int]{}

	for step := 0; step < 10000; step++ {
		switch random.Intn(4) {
		case 0:
			ref, ok := cell.Borrow()
			require.Equal(t, len(exclusive) == 0, ok)
			if ok {
				shared = append(shared, ref)
			}
		case 1:
			ref, ok := cell.BorrowMut()
			require.Equal(t, len(exclusive) == 0 && len(shared) == 0, ok)
			if ok {
				exclusive = append(exclusive, ref)
			}
		case 2:
			if len(shared) > 0 {
				i := random.Intn(len(shared))
				shared[i].Release()
				shared = append(shared[:i], shared[i+1:]...)
			}
		case 3:
			if len(exclusive) > 0 {
				exclusive[0].Release()
				exclusive = exclusive[:0]
			}
		}

		require.LessOrEqual(t, len(exclusive), 1)
		require.False(t, len(exclusive) > 0 && len(shared) > 0)

		state := cell.State()
		switch {
		case len(exclusive) == 1:
			require.Equal(t, Exclusive, state)
		case len(shared) > 0:
			require.Equal(t, SharedBy(len(shared)), state)
		default:
			require.Equal(t, Unborrowed, state)
		}
	}
}

func Test_SliceExtract(t *testing.T) {
	cells := []RefCell[int]{New(1), New(2), New(3)}
	ref, _ := cells[1].BorrowMut()

	require.Equal(t, []int{1, 3}, SliceExtract(cells))

	ref.Release()
	require.Equal(t, []int{1, 2, 3}, SliceExtract(cells))
}

func Test_Ref_Get_Is_Shallow_Copy(t *testing.T) {
	cell := New(Counter{Value: 1})
	ref, _ := cell.Borrow()

	copied := ref.Get()
	copied.Value = 100
	require.Equal(t, 1, ref.Get().Value)
	ref.Release()

	items := New([]int{1, 2})
	items.Read(func(value []int) {
		value[0] = 99
	})
	items.Read(func(value []int) {
		require.Equal(t, []int{99, 2}, value)
	})
}
