package regalloc

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyPool is returned when Allocate is given no registers.
	ErrEmptyPool = errors.New("register pool is empty")
	// ErrNoEvictable means the active set was full but held nothing to
	// evict. It signals a broken allocator invariant.
	ErrNoEvictable = errors.New("no evictable interval in active set")
)

type Register struct {
	Name     string
	Interval *Interval
}

func (r *Register) String() string { return fmt.Sprintf("{%s, %v}", r.Name, r.Interval) }

// Pool is a fixed, ordered set of allocatable registers.
type Pool struct {
	regs []*Register
}

func NewPool(names []string) *Pool {
	p := &Pool{regs: make([]*Register, len(names))}
	for i, n := range names {
		p.regs[i] = &Register{Name: n}
	}
	return p
}

func (p *Pool) Len() int { return len(p.regs) }

func (p *Pool) Registers() []*Register { return p.regs }

// activeSet keeps the registers in use ordered by the end of the interval
// they hold. Equal ends keep insertion order.
type activeSet struct {
	regs []*Register
}

func (a *activeSet) insert(r *Register) {
	i := sort.Search(len(a.regs), func(i int) bool { return a.regs[i].Interval.End > r.Interval.End })
	a.regs = append(a.regs, nil)
	copy(a.regs[i+1:], a.regs[i:])
	a.regs[i] = r
}

func (a *activeSet) remove(i int) *Register {
	r := a.regs[i]
	a.regs = append(a.regs[:i], a.regs[i+1:]...)
	return r
}

func (a *activeSet) contains(r *Register) bool {
	for _, x := range a.regs {
		if x == r { return true }
	}
	return false
}

// expire frees every register whose interval ends strictly before start.
func (a *activeSet) expire(start int) {
	for len(a.regs) > 0 && a.regs[0].Interval.End < start {
		a.remove(0).Interval = nil
	}
}

// furthest returns the index of the register whose interval ends last.
// The earliest such register in active order wins ties.
func (a *activeSet) furthest() int {
	best := -1
	for i, r := range a.regs {
		if best < 0 || r.Interval.End > a.regs[best].Interval.End { best = i }
	}
	return best
}

// Allocate assigns a register to every interval. When the pool runs dry
// the active interval with the furthest end is evicted: its SpillAt becomes
// the start of the incoming interval, which takes over the register.
// The intervals slice itself is not reordered.
func Allocate(intervals []*Interval, pool *Pool) error {
	if pool.Len() == 0 { return ErrEmptyPool }

	for _, r := range pool.regs {
		r.Interval = nil
	}

	sorted := make([]*Interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	active := &activeSet{}
	for _, iv := range sorted {
		active.expire(iv.Start)

		if len(active.regs) < pool.Len() {
			reg := freeRegister(pool, active)
			if reg == nil { return fmt.Errorf("%w: no free register for %s", ErrNoEvictable, iv.Name) }
			reg.Interval = iv
			iv.Reg = reg.Name
			active.insert(reg)
			continue
		}

		idx := active.furthest()
		if idx < 0 { return fmt.Errorf("%w: while placing %s", ErrNoEvictable, iv.Name) }
		reg := active.remove(idx)
		reg.Interval.SpillAt = iv.Start
		iv.Reg = reg.Name
		reg.Interval = iv
		active.insert(reg)
	}
	return nil
}

func freeRegister(pool *Pool, active *activeSet) *Register {
	for _, r := range pool.regs {
		if !active.contains(r) { return r }
	}
	return nil
}
