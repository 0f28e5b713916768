package refcell

import (
	"strconv"
)

// BorrowState tracks the live handles of a RefCell: zero means
// unborrowed, a positive n means n shared borrows, and -1 means one
// exclusive borrow.
type BorrowState int

const (
	Unborrowed BorrowState = 0
	Exclusive  BorrowState = -1
)

// SharedBy() returns the state of 'n' live shared borrows;
// SharedBy *panics* if:
// 1: n is less than 1.
func SharedBy(n int) BorrowState {
	if n < 1 {
		panic("Invalid state: shared borrow count must be positive.")
	}
	return BorrowState(n)
}

func (s BorrowState) IsUnborrowed() bool {
	return s == Unborrowed
}

func (s BorrowState) IsExclusive() bool {
	return s == Exclusive
}

// Shared returns the number of shared borrows, and false if the state
// is not SharedBy(n).
func (s BorrowState) Shared() (int, bool) {
	if s > 0 {
		return int(s), true
	}
	return 0, false
}

func (s BorrowState) String() string {
	switch {
	case s == Unborrowed:
		return "unborrowed"
	case s == Exclusive:
		return "exclusive"
	case s > 0:
		return "shared(" + strconv.Itoa(int(s)) + ")"
	default:
		return "invalid(" + strconv.Itoa(int(s)) + ")"
	}
}
