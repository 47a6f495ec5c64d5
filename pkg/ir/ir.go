package ir

import (
	"fmt"
	"strconv"
)

type Op int

const (
	OpRet Op = iota
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpSRem
	OpAlloca
	OpLoad
	OpStore
	// OpOther stands for every opcode the backend does not lower.
	OpOther
)

var opNames = [...]string{
	OpRet:    "ret",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpSDiv:   "sdiv",
	OpSRem:   "srem",
	OpAlloca: "alloca",
	OpLoad:   "load",
	OpStore:  "store",
	OpOther:  "other",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opNames) { return opNames[op] }
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// IsArith reports whether op is one of the two-operand integer operations.
func (op Op) IsArith() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpSRem: return true
	}
	return false
}

// LookupOp maps a textual opcode to its Op. Unknown names map to OpOther.
func LookupOp(name string) Op {
	for op, n := range opNames {
		if n == name && Op(op) != OpOther { return Op(op) }
	}
	return OpOther
}

// Operand is either a *Const or a *Var.
type Operand interface {
	isOperand()
	String() string
}

type Const struct{ Value int32 }

// Var names a value. Whether the name refers to a global or a local is
// decided by the backend's symbol environment, not by the operand.
type Var struct{ Name string }

func (c *Const) isOperand() {}
func (v *Var) isOperand()   {}

func (c *Const) String() string { return strconv.FormatInt(int64(c.Value), 10) }
func (v *Var) String() string   { return v.Name }

func NewConst(v int32) *Const  { return &Const{Value: v} }
func NewVar(name string) *Var  { return &Var{Name: name} }

// NameOf returns the name referenced by op, if any.
func NameOf(op Operand) (string, bool) {
	if v, ok := op.(*Var); ok { return v.Name, true }
	return "", false
}

type Instruction struct {
	Op     Op
	Args   []Operand
	Result *Var // nil when the instruction produces no value
}

func (in *Instruction) String() string {
	s := ""
	if in.Result != nil { s = in.Result.Name + " = " }
	s += in.Op.String()
	for i, a := range in.Args {
		if i == 0 {
			s += " " + a.String()
		} else {
			s += ", " + a.String()
		}
	}
	return s
}

type BasicBlock struct {
	Label        string
	Instructions []*Instruction
}

// Terminates reports whether the block ends in a return.
func (b *BasicBlock) Terminates() bool {
	n := len(b.Instructions)
	return n > 0 && b.Instructions[n-1].Op == OpRet
}

type Func struct {
	Name   string
	Blocks []*BasicBlock
}

type Global struct {
	Name  string
	Value int32
}

type Module struct {
	Globals []*Global
	Funcs   []*Func
}

// FindFunc returns the first function called name, or nil.
func (m *Module) FindFunc(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name { return f }
	}
	return nil
}

// FindGlobal returns the first global called name, or nil.
func (m *Module) FindGlobal(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name { return g }
	}
	return nil
}

// Validate rejects structurally malformed modules. It does not check
// use-before-definition, which is a precondition of the IR contract.
func (m *Module) Validate() error {
	for _, g := range m.Globals {
		if g.Name == "" { return fmt.Errorf("global with empty name") }
		if m.FindGlobal(g.Name) != g { return fmt.Errorf("duplicate global '%s'", g.Name) }
	}

	for _, f := range m.Funcs {
		if m.FindFunc(f.Name) != f { return fmt.Errorf("duplicate function '%s'", f.Name) }

		labels := make(map[string]bool)
		for _, b := range f.Blocks {
			if labels[b.Label] { return fmt.Errorf("%s: duplicate block label '%s'", f.Name, b.Label) }
			labels[b.Label] = true
			for pos, in := range b.Instructions {
				if err := in.Check(); err != nil {
					return fmt.Errorf("%s/%s:%d: %w", f.Name, b.Label, pos, err)
				}
			}
		}
	}
	return nil
}

// Check reports whether in has the operand count and result its opcode requires.
func (in *Instruction) Check() error {
	want := func(n int) error {
		if len(in.Args) != n { return fmt.Errorf("%s takes %d operand(s), got %d", in.Op, n, len(in.Args)) }
		return nil
	}
	needResult := func(need bool) error {
		if need && in.Result == nil { return fmt.Errorf("%s requires a result", in.Op) }
		if !need && in.Result != nil { return fmt.Errorf("%s cannot produce a result", in.Op) }
		return nil
	}
	for _, a := range in.Args {
		if a == nil { return fmt.Errorf("%s has a nil operand", in.Op) }
	}

	switch in.Op {
	case OpRet:
		if len(in.Args) > 1 { return fmt.Errorf("ret takes at most 1 operand, got %d", len(in.Args)) }
		return needResult(false)
	case OpAdd, OpSub, OpMul, OpSDiv, OpSRem:
		if err := want(2); err != nil { return err }
		return needResult(true)
	case OpAlloca:
		if err := want(0); err != nil { return err }
		return needResult(true)
	case OpLoad:
		if err := want(1); err != nil { return err }
		if _, ok := NameOf(in.Args[0]); !ok { return fmt.Errorf("load source must be a name") }
		return needResult(true)
	case OpStore:
		if err := want(2); err != nil { return err }
		if _, ok := NameOf(in.Args[1]); !ok { return fmt.Errorf("store destination must be a name") }
		return needResult(false)
	case OpOther:
		return nil
	default:
		return fmt.Errorf("unknown opcode %s", in.Op)
	}
}

func Ret(v Operand) *Instruction {
	if v == nil { return &Instruction{Op: OpRet} }
	return &Instruction{Op: OpRet, Args: []Operand{v}}
}

func Binary(op Op, result string, a, b Operand) *Instruction {
	return &Instruction{Op: op, Args: []Operand{a, b}, Result: NewVar(result)}
}

func Alloca(name string) *Instruction { return &Instruction{Op: OpAlloca, Result: NewVar(name)} }

func Load(result, src string) *Instruction {
	return &Instruction{Op: OpLoad, Args: []Operand{NewVar(src)}, Result: NewVar(result)}
}

func Store(src Operand, dst string) *Instruction {
	return &Instruction{Op: OpStore, Args: []Operand{src, NewVar(dst)}}
}
