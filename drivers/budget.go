package drivers

import "strconv"

// Budget is the number of polling iterations, either a fixed count or
// unbounded.
type Budget struct {
	n         int
	unbounded bool
}

// Bounded returns a budget of n iterations. Negative n is treated as zero.
func Bounded(n int) Budget {
	if n < 0 {
		n = 0
	}
	return Budget{n: n}
}

// Unbounded returns a budget that never runs out.
func Unbounded() Budget {
	return Budget{unbounded: true}
}

// BudgetFromInt maps the command line convention (negative means forever)
// onto a Budget.
func BudgetFromInt(i int) Budget {
	if i < 0 {
		return Unbounded()
	}
	return Bounded(i)
}

func (b Budget) IsUnbounded() bool {
	return b.unbounded
}

// Remaining returns the iterations left; -1 for an unbounded budget.
func (b Budget) Remaining() int {
	if b.unbounded {
		return -1
	}
	return b.n
}

func (b Budget) exhausted() bool {
	return !b.unbounded && b.n <= 0
}

func (b Budget) spend() Budget {
	if b.unbounded || b.n == 0 {
		return b
	}
	return Budget{n: b.n - 1}
}

func (b Budget) String() string {
	if b.unbounded {
		return "unbounded"
	}
	return strconv.Itoa(b.n)
}
