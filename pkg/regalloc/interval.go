// Package regalloc discovers block-local live intervals and assigns
// registers to them with a single linear scan.
//
// Positions are instruction indices within one basic block. A Table and the
// register state built from it belong to exactly one block; nothing carries
// over to the next block.
package regalloc

import (
	"fmt"
	"math"
	"strings"
)

// Never is the SpillAt value of an interval that is never evicted.
const Never = math.MaxInt32

type Interval struct {
	Name    string
	Start   int
	End     int
	SpillAt int    // position at which the value leaves its register
	Reg     string // register held before any spill
	LiveIn  bool   // first occurrence in the block is a use
}

func newInterval(name string, pos int) *Interval {
	return &Interval{Name: name, Start: pos, End: pos, SpillAt: Never}
}

// InRegister reports whether the value lives in Reg at position pos.
func (iv *Interval) InRegister(pos int) bool { return pos < iv.SpillAt }

// Spilled reports whether the allocator evicted this interval.
func (iv *Interval) Spilled() bool { return iv.SpillAt != Never }

func (iv *Interval) String() string {
	spill := "never"
	if iv.Spilled() { spill = fmt.Sprint(iv.SpillAt) }
	return fmt.Sprintf("[%s, (%d, %d), @%s, %s]", iv.Name, iv.Start, iv.End, iv.Reg, spill)
}

// Table holds one interval per name, in discovery order.
type Table struct {
	order  []*Interval
	byName map[string]*Interval
}

func NewTable() *Table { return &Table{byName: make(map[string]*Interval)} }

// Lookup returns the interval for name, or nil.
func (t *Table) Lookup(name string) *Interval { return t.byName[name] }

// Intervals returns the intervals in discovery order. The slice is shared.
func (t *Table) Intervals() []*Interval { return t.order }

func (t *Table) Len() int { return len(t.order) }

// Def records a definition of name at pos.
func (t *Table) Def(name string, pos int) *Interval { return t.touch(name, pos, false) }

// Use extends name's interval to pos.
func (t *Table) Use(name string, pos int) *Interval { return t.touch(name, pos, true) }

func (t *Table) touch(name string, pos int, use bool) *Interval {
	if iv, ok := t.byName[name]; ok {
		if pos > iv.End { iv.End = pos }
		return iv
	}
	iv := newInterval(name, pos)
	iv.LiveIn = use
	t.byName[name] = iv
	t.order = append(t.order, iv)
	return iv
}

// HoldUntil extends the interval of every name in names to end. A value
// that must be written back when the block falls through keeps its
// register until then; names without an interval are ignored.
func (t *Table) HoldUntil(names map[string]bool, end int) {
	for _, iv := range t.order {
		if names[iv.Name] && iv.End < end { iv.End = end }
	}
}

// SpillsAt returns every interval evicted at pos, in discovery order.
func (t *Table) SpillsAt(pos int) []*Interval {
	var out []*Interval
	for _, iv := range t.order {
		if iv.SpillAt == pos { out = append(out, iv) }
	}
	return out
}

func (t *Table) String() string {
	var sb strings.Builder
	for i, iv := range t.order {
		if i > 0 { sb.WriteString(" ") }
		sb.WriteString(iv.String())
	}
	return sb.String()
}
