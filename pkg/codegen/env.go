package codegen

import "github.com/xplshn/rvbe/pkg/ir"

// Env is the symbol and stack environment threaded through analysis and
// emission. Globals live for the whole module; the shadow set and the
// stack frame are reset by BeginFunction.
type Env struct {
	frameSize int
	globals   []*ir.Global
	values    map[string]int32
	shadowed  map[string]bool
	frame     *StackFrame
}

func NewEnv(frameSize int) *Env {
	e := &Env{frameSize: frameSize, values: make(map[string]int32)}
	e.BeginFunction()
	return e
}

// DefineGlobal records an initializer. Redefining a name keeps its
// original position and updates its value.
func (e *Env) DefineGlobal(name string, value int32) {
	if _, ok := e.values[name]; ok {
		for _, g := range e.globals {
			if g.Name == name { g.Value = value }
		}
	} else {
		e.globals = append(e.globals, &ir.Global{Name: name, Value: value})
	}
	e.values[name] = value
}

// Globals returns the recorded globals in definition order.
func (e *Env) Globals() []*ir.Global { return e.globals }

// Shadow marks name as re-declared locally for the rest of the function.
func (e *Env) Shadow(name string) { e.shadowed[name] = true }

func (e *Env) IsShadowed(name string) bool { return e.shadowed[name] }

func (e *Env) IsGlobal(name string) bool {
	_, ok := e.values[name]
	return ok && !e.shadowed[name]
}

func (e *Env) AllocateSlot(name string) (int, error) { return e.frame.Allocate(name) }

func (e *Env) ResolveSlot(name string) (int, error) { return e.frame.Resolve(name) }

// SlotFor returns name's home slot, allocating it on first use.
func (e *Env) SlotFor(name string) (int, error) {
	if off, err := e.frame.Resolve(name); err == nil { return off, nil }
	return e.frame.Allocate(name)
}

func (e *Env) Frame() *StackFrame { return e.frame }

// BeginFunction gives the next function a fresh frame and shadow set.
func (e *Env) BeginFunction() {
	e.shadowed = make(map[string]bool)
	e.frame = NewStackFrame(e.frameSize)
}
