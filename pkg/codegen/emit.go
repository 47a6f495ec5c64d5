package codegen

import (
	"fmt"

	"github.com/xplshn/rvbe/pkg/asm"
	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/ir"
	"github.com/xplshn/rvbe/pkg/regalloc"
	"github.com/xplshn/rvbe/pkg/util"
)

// Translator lowers a Module to RV32 assembly. Every block is analyzed,
// allocated and emitted on its own; the Env is the only state shared
// between blocks.
type Translator struct {
	cfg   *config.Config
	env   *Env
	out   *asm.Program
	Diags util.Diagnostics

	fn    *ir.Func
	block *ir.BasicBlock
	table *regalloc.Table
	cross map[string]bool
	pos   int
}

func NewTranslator(cfg *config.Config) *Translator {
	return &Translator{cfg: cfg, env: NewEnv(cfg.FrameSize), out: asm.NewProgram()}
}

// Translate runs a fresh Translator over mod. Warnings are returned even
// when translation succeeds.
func Translate(mod *ir.Module, cfg *config.Config) (*asm.Program, util.Diagnostics, error) {
	t := NewTranslator(cfg)
	if err := t.Module(mod); err != nil { return nil, t.Diags, err }
	return t.out, t.Diags, nil
}

func (t *Translator) Env() *Env { return t.env }

func (t *Translator) Module(mod *ir.Module) error {
	if t.cfg.IsFeatureEnabled(config.FeatValidate) {
		if err := mod.Validate(); err != nil { return fmt.Errorf("invalid module: %w", err) }
	}
	if len(t.cfg.Registers) == 0 { return regalloc.ErrEmptyPool }

	for _, g := range mod.Globals {
		t.env.DefineGlobal(g.Name, g.Value)
	}
	if globals := t.env.Globals(); len(globals) > 0 {
		t.out.Seg("data")
		for _, g := range globals {
			t.out.Label(g.Name)
			t.out.Seg("word", g.Value)
		}
	}
	t.out.Seg("text")
	t.out.Seg("globl", "main")

	for _, fn := range mod.Funcs {
		if err := t.function(fn); err != nil { return fmt.Errorf("function '%s': %w", fn.Name, err) }
	}
	return t.Diags.Err()
}

func (t *Translator) function(fn *ir.Func) error {
	t.fn = fn
	t.env.BeginFunction()
	t.cross = regalloc.CrossBlock(fn)

	sp := t.cfg.StackReg
	t.out.Label(fn.Name)
	t.out.ADDI(sp, sp, -t.cfg.FrameSize)

	for _, b := range fn.Blocks {
		if err := t.basicBlock(b); err != nil { return fmt.Errorf("block '%s': %w", b.Label, err) }
	}

	t.out.ADDI(sp, sp, t.cfg.FrameSize)
	t.out.LI(t.cfg.SyscallReg, t.cfg.ExitSyscall)
	t.out.ECALL()

	if used := t.env.Frame().Used(); used*2 > t.cfg.FrameSize && t.cfg.IsWarningEnabled(config.WarnFrame) {
		t.Diags.Warnf("frame", fn.Name, "function uses %d of %d stack frame bytes", used, t.cfg.FrameSize)
	}
	return nil
}

func (t *Translator) basicBlock(b *ir.BasicBlock) error {
	t.block = b
	t.out.Label(b.Label)

	t.table = regalloc.Analyze(b, t.env.IsGlobal)
	if len(b.Instructions) > 0 && !b.Terminates() { t.table.HoldUntil(t.cross, len(b.Instructions)) }
	if err := regalloc.Allocate(t.table.Intervals(), regalloc.NewPool(t.cfg.Registers)); err != nil {
		return fmt.Errorf("register allocation: %w", err)
	}

	for pos, in := range b.Instructions {
		t.pos = pos
		if err := t.spill(); err != nil { return err }
		t.reload()
		if err := t.selectInstr(in); err != nil { return err }
	}

	if len(b.Instructions) > 0 && !b.Terminates() {
		t.pos = len(b.Instructions)
		return t.writeBack()
	}
	return nil
}

func (t *Translator) where() string {
	return fmt.Sprintf("%s/%s:%d", t.fn.Name, t.block.Label, t.pos)
}

// spill stores every value evicted at the current position into its home
// slot. A value defined at this very position has nothing to save yet.
func (t *Translator) spill() error {
	for _, iv := range t.table.SpillsAt(t.pos) {
		if iv.Start == t.pos { continue }
		off, err := t.env.SlotFor(iv.Name)
		if err != nil { return err }
		t.out.SW(iv.Reg, off, t.cfg.StackReg)
		if t.cfg.IsFeatureEnabled(config.FeatAnnotate) { t.out.Note("spill %s", iv.Name) }
		if t.cfg.IsWarningEnabled(config.WarnSpill) {
			t.Diags.Warnf("spill", t.where(), "'%s' evicted from %s", iv.Name, iv.Reg)
		}
	}
	return nil
}

// reload brings values that arrive from an earlier block into their
// register at the start of their interval.
func (t *Translator) reload() {
	for _, iv := range t.table.Intervals() {
		if !iv.LiveIn || iv.Start != t.pos || !iv.InRegister(t.pos) { continue }
		off, err := t.env.ResolveSlot(iv.Name)
		if err != nil {
			t.unresolved(err)
			continue
		}
		t.out.LW(iv.Reg, off, t.cfg.StackReg)
		if t.cfg.IsFeatureEnabled(config.FeatAnnotate) { t.out.Note("reload %s", iv.Name) }
	}
}

// writeBack saves values still held in registers at the end of a block
// that falls through, for every name another block of the function uses.
func (t *Translator) writeBack() error {
	for _, iv := range t.table.Intervals() {
		if !t.cross[iv.Name] || !iv.InRegister(t.pos) { continue }
		off, err := t.env.SlotFor(iv.Name)
		if err != nil { return err }
		t.out.SW(iv.Reg, off, t.cfg.StackReg)
		if t.cfg.IsFeatureEnabled(config.FeatAnnotate) { t.out.Note("write-back %s", iv.Name) }
	}
	return nil
}

// unresolved reports err as an error in strict mode and as a warning
// otherwise. The caller emits its best-effort default either way.
func (t *Translator) unresolved(err error) {
	if t.cfg.IsFeatureEnabled(config.FeatStrict) {
		t.Diags.Errorf(t.where(), "%v", err)
		return
	}
	if t.cfg.IsWarningEnabled(config.WarnUnresolved) {
		t.Diags.Warnf("unresolved", t.where(), "%v", err)
	}
}
