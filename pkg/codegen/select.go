package codegen

import (
	"fmt"

	"github.com/xplshn/rvbe/pkg/ir"
)

var arithMnemonics = map[ir.Op]string{
	ir.OpAdd:  "add",
	ir.OpSub:  "sub",
	ir.OpMul:  "mul",
	ir.OpSDiv: "div",
	ir.OpSRem: "rem",
}

func (t *Translator) selectInstr(in *ir.Instruction) error {
	s0, s1 := t.cfg.Scratch[0], t.cfg.Scratch[1]

	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpSRem:
		t.operand(in.Args[0], s0)
		t.operand(in.Args[1], s1)
		t.out.Arith(arithMnemonics[in.Op], s0, s0, s1)
		return t.place(in.Result.Name, s0)

	case ir.OpRet:
		if len(in.Args) == 1 { t.operand(in.Args[0], t.cfg.ReturnReg) }
		return nil

	case ir.OpAlloca:
		t.env.Shadow(in.Result.Name)
		return nil

	case ir.OpLoad:
		src, _ := ir.NameOf(in.Args[0])
		if t.env.IsGlobal(src) {
			t.out.LA(s0, src)
			t.out.LW(s0, 0, s0)
		} else {
			t.operand(in.Args[0], s0)
		}
		return t.place(in.Result.Name, s0)

	case ir.OpStore:
		dst, _ := ir.NameOf(in.Args[1])
		t.operand(in.Args[0], s0)
		if t.env.IsGlobal(dst) {
			t.out.LA(s1, dst)
			t.out.SW(s0, 0, s1)
			return nil
		}
		return t.place(dst, s0)

	case ir.OpOther:
		return nil
	}
	return fmt.Errorf("unhandled opcode %s", in.Op)
}

// operand materializes op into rd.
func (t *Translator) operand(op ir.Operand, rd string) {
	switch v := op.(type) {
	case *ir.Const:
		t.out.LI(rd, v.Value)
	case *ir.Var:
		if t.env.IsGlobal(v.Name) {
			t.out.LA(rd, v.Name)
			t.out.LW(rd, 0, rd)
			return
		}
		iv := t.table.Lookup(v.Name)
		if iv == nil {
			t.unresolved(fmt.Errorf("%w: no interval for '%s'", ErrUnresolved, v.Name))
			t.out.LI(rd, 0)
			return
		}
		if iv.InRegister(t.pos) {
			t.out.MV(rd, iv.Reg)
			return
		}
		off, err := t.env.ResolveSlot(v.Name)
		if err != nil { t.unresolved(err) }
		t.out.LW(rd, off, t.cfg.StackReg)
	}
}

// place moves a computed value from rs into name's register, or into its
// home slot once the name has been evicted.
func (t *Translator) place(name, rs string) error {
	iv := t.table.Lookup(name)
	if iv == nil {
		t.unresolved(fmt.Errorf("%w: no interval for '%s'", ErrUnresolved, name))
		return nil
	}
	if iv.InRegister(t.pos) {
		t.out.MV(iv.Reg, rs)
		return nil
	}
	off, err := t.env.SlotFor(name)
	if err != nil { return err }
	t.out.SW(rs, off, t.cfg.StackReg)
	return nil
}
