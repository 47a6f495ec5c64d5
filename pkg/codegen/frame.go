package codegen

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameExhausted is returned when a function needs more stack slots
	// than its fixed frame holds.
	ErrFrameExhausted = errors.New("stack frame exhausted")
	// ErrUnresolved is returned for a name with no interval or no stack slot.
	ErrUnresolved = errors.New("unresolved name")
)

const slotSize = 4

// StackFrame hands out word slots from the top of a fixed-size frame
// downwards. Offsets are relative to the stack pointer after the prologue.
type StackFrame struct {
	Size  int
	Next  int
	slots map[string]int
	names []string
}

func NewStackFrame(size int) *StackFrame {
	return &StackFrame{Size: size, Next: size, slots: make(map[string]int)}
}

// Allocate reserves a new slot for name, replacing any earlier slot.
func (f *StackFrame) Allocate(name string) (int, error) {
	if f.Next-slotSize < 0 {
		return 0, fmt.Errorf("%w: no room for '%s' in %d bytes", ErrFrameExhausted, name, f.Size)
	}
	f.Next -= slotSize
	if _, ok := f.slots[name]; !ok { f.names = append(f.names, name) }
	f.slots[name] = f.Next
	return f.Next, nil
}

func (f *StackFrame) Resolve(name string) (int, error) {
	off, ok := f.slots[name]
	if !ok { return 0, fmt.Errorf("%w: no stack slot for '%s'", ErrUnresolved, name) }
	return off, nil
}

// Used is the number of bytes handed out so far.
func (f *StackFrame) Used() int { return f.Size - f.Next }

// Slots returns the names holding a slot, in allocation order.
func (f *StackFrame) Slots() []string { return f.names }
