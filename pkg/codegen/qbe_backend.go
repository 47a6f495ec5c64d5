package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/ir"
)

// qbeBackend lowers the same IR to QBE and lets QBE do selection and
// allocation. Locals become QBE temporaries, so a store to a local is a
// copy, matching the register-or-slot semantics of the rv32 backend.
type qbeBackend struct {
	out *strings.Builder
	env *Env
}

func NewQBEBackend() IRBackend { return &qbeBackend{} }

func (b *qbeBackend) GenerateIR(mod *ir.Module, cfg *config.Config) (string, error) {
	if cfg.IsFeatureEnabled(config.FeatValidate) {
		if err := mod.Validate(); err != nil { return "", fmt.Errorf("invalid module: %w", err) }
	}

	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.env = NewEnv(cfg.FrameSize)

	for _, g := range mod.Globals {
		b.env.DefineGlobal(g.Name, g.Value)
	}
	for _, g := range b.env.Globals() {
		fmt.Fprintf(b.out, "data $%s = { w %d }\n", g.Name, g.Value)
	}
	for _, fn := range mod.Funcs {
		b.genFunc(fn)
	}
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	b.env.BeginFunction()
	fmt.Fprintf(b.out, "\nexport function w $%s() {\n", fn.Name)

	for i, block := range fn.Blocks {
		fmt.Fprintf(b.out, "@%s\n", block.Label)
		for _, instr := range block.Instructions {
			b.genInstr(instr)
		}
		if i == len(fn.Blocks)-1 && !block.Terminates() { b.out.WriteString("\tret 0\n") }
	}
	if len(fn.Blocks) == 0 { b.out.WriteString("@start\n\tret 0\n") }

	b.out.WriteString("}\n")
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) {
	switch instr.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpSRem:
		fmt.Fprintf(b.out, "\t%s =w %s %s, %s\n", b.formatTemp(instr.Result.Name), b.formatOp(instr.Op),
			b.formatValue(instr.Args[0]), b.formatValue(instr.Args[1]))
	case ir.OpRet:
		if len(instr.Args) == 1 {
			fmt.Fprintf(b.out, "\tret %s\n", b.formatValue(instr.Args[0]))
		} else {
			b.out.WriteString("\tret 0\n")
		}
	case ir.OpAlloca:
		b.env.Shadow(instr.Result.Name)
		fmt.Fprintf(b.out, "\t%s =w copy 0\n", b.formatTemp(instr.Result.Name))
	case ir.OpLoad:
		fmt.Fprintf(b.out, "\t%s =w copy %s\n", b.formatTemp(instr.Result.Name), b.formatValue(instr.Args[0]))
	case ir.OpStore:
		dst, _ := ir.NameOf(instr.Args[1])
		if b.env.IsGlobal(dst) {
			fmt.Fprintf(b.out, "\tstorew %s, $%s\n", b.formatValue(instr.Args[0]), dst)
			return
		}
		fmt.Fprintf(b.out, "\t%s =w copy %s\n", b.formatTemp(dst), b.formatValue(instr.Args[0]))
	case ir.OpOther:
	}
}

// formatValue renders an operand. An unshadowed global is first loaded
// into a temporary; that load line is written while the caller is still
// building its own instruction, so it lands right before it.
func (b *qbeBackend) formatValue(v ir.Operand) string {
	switch val := v.(type) {
	case *ir.Const:
		return fmt.Sprintf("%d", val.Value)
	case *ir.Var:
		if b.env.IsGlobal(val.Name) {
			tmp := "%.g." + safeName(val.Name)
			fmt.Fprintf(b.out, "\t%s =w loadw $%s\n", tmp, val.Name)
			return tmp
		}
		return b.formatTemp(val.Name)
	}
	return ""
}

func (b *qbeBackend) formatTemp(name string) string { return "%." + safeName(name) }

func safeName(name string) string {
	return strings.NewReplacer("-", "_", "$", "_", " ", "_").Replace(name)
}

func (b *qbeBackend) formatOp(op ir.Op) string {
	switch op {
	case ir.OpAdd: return "add"
	case ir.OpSub: return "sub"
	case ir.OpMul: return "mul"
	case ir.OpSDiv: return "div"
	case ir.OpSRem: return "rem"
	default: return "unknown_op"
	}
}
