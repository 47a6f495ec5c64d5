package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/rvbe/pkg/asm"
	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/ir"
	"github.com/xplshn/rvbe/pkg/util"
)

var (
	imm = func(n int32) ir.Operand { return ir.NewConst(n) }
	ref = func(name string) ir.Operand { return ir.NewVar(name) }
)

func mainModule(globals []*ir.Global, blocks ...*ir.BasicBlock) *ir.Module {
	return &ir.Module{Globals: globals, Funcs: []*ir.Func{{Name: "main", Blocks: blocks}}}
}

func block(label string, ins ...*ir.Instruction) *ir.BasicBlock {
	return &ir.BasicBlock{Label: label, Instructions: ins}
}

func translate(t *testing.T, mod *ir.Module, cfg *config.Config) (*asm.Program, util.Diagnostics) {
	t.Helper()
	prog, diags, err := Translate(mod, cfg)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return prog, diags
}

var epilogue = []string{"  addi sp, sp, 1024", "  li a7, 93", "  ecall"}

func TestGlobalLoadAddReturn(t *testing.T) {
	mod := mainModule([]*ir.Global{{Name: "x", Value: 5}}, block("mainEntry",
		ir.Load("0", "x"),
		ir.Binary(ir.OpAdd, "1", ref("0"), imm(3)),
		ir.Ret(ref("1")),
	))
	prog, diags := translate(t, mod, config.NewConfig())

	want := append([]string{
		"  .data", "x:", "  .word 5",
		"  .text", "  .globl main",
		"main:", "  addi sp, sp, -1024",
		"mainEntry:",
		"  la t0, x", "  lw t0, 0(t0)", "  mv t2, t0",
		"  mv t0, t2", "  li t1, 3", "  add t0, t0, t1", "  mv t3, t0",
		"  mv a0, t3",
	}, epilogue...)
	if diff := cmp.Diff(want, prog.Lines()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
}

func TestSpillStoreBeforeTrigger(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.SetRegisters([]string{"s1", "s2"}); err != nil {
		t.Fatal(err)
	}
	mod := mainModule(nil, block("entry",
		ir.Binary(ir.OpAdd, "a", imm(1), imm(2)),
		ir.Binary(ir.OpAdd, "b", imm(3), imm(4)),
		ir.Binary(ir.OpAdd, "c", imm(5), imm(6)), // evicts a
		ir.Binary(ir.OpAdd, "d", ref("a"), ref("b")), // evicts c
		ir.Binary(ir.OpAdd, "e", ref("c"), ref("d")),
		ir.Ret(ref("e")),
	))
	prog, _ := translate(t, mod, cfg)

	want := append([]string{
		"  .text", "  .globl main", "main:", "  addi sp, sp, -1024", "entry:",
		"  li t0, 1", "  li t1, 2", "  add t0, t0, t1", "  mv s1, t0",
		"  li t0, 3", "  li t1, 4", "  add t0, t0, t1", "  mv s2, t0",
		"  sw s1, 1020(sp)",
		"  li t0, 5", "  li t1, 6", "  add t0, t0, t1", "  mv s1, t0",
		"  sw s1, 1016(sp)",
		"  lw t0, 1020(sp)", "  mv t1, s2", "  add t0, t0, t1", "  mv s1, t0",
		"  lw t0, 1016(sp)", "  mv t1, s1", "  add t0, t0, t1", "  mv s2, t0",
		"  mv a0, s2",
	}, epilogue...)
	if diff := cmp.Diff(want, prog.Lines()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestSpillWarningAndAnnotation(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.SetRegisters([]string{"s1"}); err != nil {
		t.Fatal(err)
	}
	cfg.SetWarning(config.WarnSpill, true)
	cfg.SetFeature(config.FeatAnnotate, true)
	mod := mainModule(nil, block("entry",
		ir.Binary(ir.OpAdd, "a", imm(1), imm(2)),
		ir.Binary(ir.OpAdd, "b", ref("a"), imm(1)),
		ir.Ret(ref("a")),
	))
	prog, diags := translate(t, mod, cfg)

	if !strings.Contains(prog.String(), "  sw s1, 1020(sp) # spill a\n") {
		t.Errorf("missing annotated spill store:\n%s", prog)
	}
	if len(diags) != 1 || diags[0].Flag != "spill" || diags[0].Where != "main/entry:1" {
		t.Errorf("diagnostics = %v, want one spill warning at main/entry:1", diags)
	}
}

func TestShadowedStoreIsLocal(t *testing.T) {
	mod := mainModule([]*ir.Global{{Name: "x", Value: 5}}, block("entry",
		ir.Alloca("x"),
		ir.Store(imm(7), "x"),
		ir.Load("r", "x"),
		ir.Ret(ref("r")),
	))
	prog, _ := translate(t, mod, config.NewConfig())
	if n := prog.Count("la"); n != 0 {
		t.Errorf("shadowed global produced %d address computations:\n%s", n, prog)
	}
}

func TestGlobalStore(t *testing.T) {
	mod := mainModule([]*ir.Global{{Name: "x", Value: 5}}, block("entry",
		ir.Store(imm(7), "x"),
		ir.Ret(nil),
	))
	prog, _ := translate(t, mod, config.NewConfig())
	got := prog.Lines()
	want := []string{"  li t0, 7", "  la t1, x", "  sw t0, 0(t1)"}
	if diff := cmp.Diff(want, got[8:11]); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
}

func TestNoPressureNoSpills(t *testing.T) {
	mod := mainModule(nil, block("entry",
		ir.Binary(ir.OpMul, "a", imm(6), imm(7)),
		ir.Binary(ir.OpSDiv, "b", ref("a"), imm(2)),
		ir.Binary(ir.OpSRem, "c", ref("b"), imm(5)),
		ir.Binary(ir.OpSub, "d", ref("c"), ref("a")),
		ir.Ret(ref("d")),
	))
	prog, _ := translate(t, mod, config.NewConfig())
	if prog.Count("sw") != 0 || prog.Count("lw") != 0 {
		t.Errorf("expected no memory traffic:\n%s", prog)
	}
	for _, mn := range []string{"mul", "div", "rem", "sub"} {
		if prog.Count(mn) != 1 {
			t.Errorf("expected exactly one %s", mn)
		}
	}
}

func TestIgnoresOtherOpcodes(t *testing.T) {
	with := mainModule(nil, block("entry",
		&ir.Instruction{Op: ir.OpOther, Result: ir.NewVar("cmp")},
		ir.Ret(imm(0)),
		&ir.Instruction{Op: ir.OpOther},
	))
	prog, diags := translate(t, with, config.NewConfig())
	if prog.Count("mv") != 0 || len(diags) != 0 {
		t.Errorf("other opcodes should produce no code or diagnostics:\n%s%v", prog, diags)
	}
}

func TestCrossBlockReloadAndWriteBack(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.SetFrameSize(4); err != nil {
		t.Fatal(err)
	}
	cfg.SetFeature(config.FeatAnnotate, true)
	mod := mainModule(nil,
		block("entry",
			ir.Binary(ir.OpAdd, "a", imm(1), imm(2)),
			&ir.Instruction{Op: ir.OpOther},
		),
		block("next",
			ir.Binary(ir.OpAdd, "b", ref("a"), imm(3)),
			ir.Ret(ref("b")),
		),
	)
	prog, diags := translate(t, mod, cfg)

	want := []string{
		"  .text", "  .globl main", "main:", "  addi sp, sp, -4",
		"entry:",
		"  li t0, 1", "  li t1, 2", "  add t0, t0, t1", "  mv t2, t0",
		"  sw t2, 0(sp) # write-back a",
		"next:",
		"  lw t3, 0(sp) # reload a",
		"  mv t0, t3", "  li t1, 3", "  add t0, t0, t1", "  mv t2, t0",
		"  mv a0, t2",
		"  addi sp, sp, 4", "  li a7, 93", "  ecall",
	}
	if diff := cmp.Diff(want, prog.Lines()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if len(diags) != 1 || diags[0].Flag != "frame" {
		t.Errorf("diagnostics = %v, want one frame warning", diags)
	}
}

func TestUnresolvedLenientAndStrict(t *testing.T) {
	mod := mainModule(nil, block("entry",
		ir.Binary(ir.OpAdd, "r", ref("ghost"), imm(1)),
		ir.Ret(ref("r")),
	))

	_, diags := translate(t, mod, config.NewConfig())
	if len(diags) != 1 || diags[0].Severity != util.SevWarning || diags[0].Flag != "unresolved" {
		t.Errorf("lenient: diagnostics = %v, want one unresolved warning", diags)
	}

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatStrict, true)
	_, _, err := Translate(mod, cfg)
	var ds util.Diagnostics
	if !errors.As(err, &ds) || !ds.HasErrors() {
		t.Fatalf("strict: got %v, want diagnostics with errors", err)
	}
	if !strings.Contains(err.Error(), "no stack slot for 'ghost'") {
		t.Errorf("strict: error = %q", err)
	}
}

func TestFrameExhausted(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.SetRegisters([]string{"s1"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetFrameSize(4); err != nil {
		t.Fatal(err)
	}
	mod := mainModule(nil, block("entry",
		ir.Binary(ir.OpAdd, "a", imm(1), imm(1)),
		ir.Binary(ir.OpAdd, "b", imm(2), imm(2)),
		ir.Binary(ir.OpAdd, "c", ref("a"), ref("b")),
		ir.Ret(ref("c")),
	))
	_, _, err := Translate(mod, cfg)
	if !errors.Is(err, ErrFrameExhausted) {
		t.Errorf("got %v, want ErrFrameExhausted", err)
	}
}

func TestInvalidModuleRejected(t *testing.T) {
	mod := mainModule(nil, block("entry", &ir.Instruction{Op: ir.OpAdd, Args: []ir.Operand{imm(1)}}))
	if _, _, err := Translate(mod, config.NewConfig()); err == nil {
		t.Error("malformed add should be rejected")
	}
}

func TestTranslateIsIdempotent(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.SetRegisters([]string{"s1", "s2", "s3"}); err != nil {
		t.Fatal(err)
	}
	var ins []*ir.Instruction
	names := []string{"a", "b", "c", "d", "e", "f"}
	for i, n := range names {
		ins = append(ins, ir.Binary(ir.OpAdd, n, imm(int32(i)), imm(1)))
	}
	for i := 1; i < len(names); i++ {
		ins = append(ins, ir.Binary(ir.OpAdd, names[i], ref(names[i-1]), ref(names[i])))
	}
	ins = append(ins, ir.Ret(ref("f")))
	mod := mainModule([]*ir.Global{{Name: "g", Value: 1}}, block("entry", ins...))

	first, _ := translate(t, mod, cfg)
	second, _ := translate(t, mod, cfg)
	if first.Digest() != second.Digest() {
		t.Errorf("outputs differ:\n%s\n---\n%s", first, second)
	}
	if first.Count("sw") == 0 {
		t.Error("expected register pressure to cause spills")
	}
}

func TestSelectBackend(t *testing.T) {
	for _, name := range []string{"", config.BackendRV32, config.BackendQBE} {
		if _, err := Select(name); err != nil {
			t.Errorf("Select(%q): %v", name, err)
		}
	}
	if _, err := Select("x86"); err == nil {
		t.Error("Select(x86) should fail")
	}
}

func TestRV32BackendGenerate(t *testing.T) {
	mod := mainModule(nil, block("entry", ir.Ret(imm(42))))
	buf, err := NewRV32Backend().Generate(mod, config.NewConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "  li a0, 42\n") {
		t.Errorf("missing return value:\n%s", buf)
	}
}

func TestQBEGenerateIR(t *testing.T) {
	mod := mainModule([]*ir.Global{{Name: "x", Value: 5}},
		block("mainEntry",
			ir.Load("0", "x"),
			ir.Binary(ir.OpAdd, "1", ref("0"), imm(3)),
			ir.Alloca("x"),
			ir.Store(ref("1"), "x"),
		),
		block("done", ir.Store(imm(2), "x")),
	)
	got, err := NewQBEBackend().GenerateIR(mod, config.NewConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := "data $x = { w 5 }\n" +
		"\nexport function w $main() {\n" +
		"@mainEntry\n" +
		"\t%.g.x =w loadw $x\n" +
		"\t%.0 =w copy %.g.x\n" +
		"\t%.1 =w add %.0, 3\n" +
		"\t%.x =w copy 0\n" +
		"\t%.x =w copy %.1\n" +
		"@done\n" +
		"\t%.x =w copy 2\n" +
		"\tret 0\n" +
		"}\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("QBE IR mismatch (-want +got):\n%s", diff)
	}
}
