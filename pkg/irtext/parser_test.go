package irtext

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/rvbe/pkg/ir"
	"github.com/xplshn/rvbe/pkg/util"
)

const sample = `; ModuleID = 'sample'
@x = global i32 5, align 4
@neg = dso_local constant i32 -7

declare i32 @puts(ptr)

define i32 @main() {
mainEntry:
  %a = alloca i32, align 4
  store i32 4, i32* %a, align 4
  %0 = load i32, i32* @x
  %1 = add nsw i32 %0, 3
  %2 = sdiv i32 %1, %a
  br label %next
next:
  %c = icmp eq i32 %2, 0
  ret i32 %2
}

define void @empty() {
  ret void
}
`

func TestParseModule(t *testing.T) {
	mod, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}

	want := &ir.Module{
		Globals: []*ir.Global{{Name: "x", Value: 5}, {Name: "neg", Value: -7}},
		Funcs: []*ir.Func{
			{
				Name: "main",
				Blocks: []*ir.BasicBlock{
					{Label: "mainEntry", Instructions: []*ir.Instruction{
						ir.Alloca("a"),
						ir.Store(ir.NewConst(4), "a"),
						ir.Load("0", "x"),
						ir.Binary(ir.OpAdd, "1", ir.NewVar("0"), ir.NewConst(3)),
						ir.Binary(ir.OpSDiv, "2", ir.NewVar("1"), ir.NewVar("a")),
						{Op: ir.OpOther},
					}},
					{Label: "next", Instructions: []*ir.Instruction{
						{Op: ir.OpOther, Result: ir.NewVar("c")},
						ir.Ret(ir.NewVar("2")),
					}},
				},
			},
			{
				Name: "empty",
				Blocks: []*ir.BasicBlock{
					{Label: "emptyEntry", Instructions: []*ir.Instruction{ir.Ret(nil)}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, mod); diff != "" {
		t.Errorf("module mismatch (-want +got):\n%s", diff)
	}
	if err := mod.Validate(); err != nil {
		t.Errorf("parsed module does not validate: %v", err)
	}
}

func TestParseUnsignedWraps(t *testing.T) {
	mod, err := ParseString("@big = global i32 4294967295\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := mod.Globals[0].Value; got != -1 {
		t.Errorf("value = %d, want -1", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing initializer", "@x = global i32\n", "expected an integer initializer"},
		{"too large", "@x = global i32 99999999999\n", "does not fit in 32 bits"},
		{"missing operand", "define i32 @f() {\n  %r = add i32 %a,\n  ret i32 %r\n}\n", "expected an operand"},
		{"store to constant", "define void @f() {\n  store i32 1, i32 2\n  ret void\n}\n", "store destination must be a name"},
		{"ret with result", "define void @f() {\n  %r = ret void\n}\n", "ret cannot produce a result"},
		{"unclosed body", "define void @f() {\n  ret void\n", "expected '}'"},
		{"lexical", "define void @f() {\n  ret void # x\n}\n", "unexpected character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse([]rune("define void @f() {\n  store i32 1, i32 2\n}\n"), 0)
	ds, ok := err.(util.Diagnostics)
	if !ok || len(ds) == 0 {
		t.Fatalf("expected util.Diagnostics, got %T", err)
	}
	if ds[0].Tok.Line != 2 || ds[0].Tok.Column != 3 {
		t.Errorf("error at %d:%d, want 2:3", ds[0].Tok.Line, ds[0].Tok.Column)
	}
}
