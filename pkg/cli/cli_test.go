package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	var (
		out    string
		target string
		dump   bool
		frame  int
		regs   []string
	)
	fs := NewFlagSet("rvbe")
	fs.String(&out, "output", "o", "a.s", "output file", "file")
	fs.String(&target, "target", "t", "rv32", "backend", "backend/target")
	fs.Bool(&dump, "dump-ir", "d", false, "dump")
	fs.Int(&frame, "frame-size", "", 1024, "frame", "bytes")
	fs.List(&regs, "reg", "r", []string{}, "register", "name")

	err := fs.Parse([]string{"-oprog.s", "--target=qbe/rv64", "-d", "--frame-size", "64", "-r", "s1", "--reg=s2", "in.ll", "--", "-not-a-flag"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "prog.s" || target != "qbe/rv64" || !dump || frame != 64 {
		t.Errorf("parsed out=%q target=%q dump=%v frame=%d", out, target, dump, frame)
	}
	if diff := cmp.Diff([]string{"s1", "s2"}, regs); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"in.ll", "-not-a-flag"}, fs.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	var n int
	var s string
	fs := NewFlagSet("x")
	fs.Int(&n, "count", "c", 0, "", "n")
	fs.String(&s, "name", "", "", "", "s")

	for _, args := range [][]string{{"--bogus"}, {"-z"}, {"--count=abc"}, {"--name"}} {
		if err := fs.Parse(args); err == nil {
			t.Errorf("Parse(%v) expected error", args)
		}
	}
}

func TestFlagGroupsAndHelp(t *testing.T) {
	on, off := true, false
	entries := []FlagGroupEntry{{Name: "spill", Prefix: "W", Usage: "Report spills.", Enabled: &on, Disabled: &off}}

	var out string
	fs := NewFlagSet("rvbe")
	fs.String(&out, "output", "o", "a.s", "Place the output into <file>.", "file")
	fs.AddFlagGroup("Warning Flags", "warning flag", entries)

	if err := fs.Parse([]string{"-Wno-spill"}); err != nil {
		t.Fatal(err)
	}
	if !*entries[0].Disabled {
		t.Error("-Wno-spill should set the disabled flag")
	}

	app := &App{Name: "rvbe", Synopsis: "[options] <input.ll>", FlagSet: fs}
	var buf bytes.Buffer
	app.writeHelp(&buf)
	help := buf.String()
	for _, want := range []string{"--output <file>", "|a.s|", "Warning Flags", "-Wno-<name>", "spill"} {
		if !strings.Contains(help, want) {
			t.Errorf("help page missing %q:\n%s", want, help)
		}
	}
	if strings.Contains(help, "--Wspill") {
		t.Error("group flags must not be listed as options")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	if diff := cmp.Diff([]string{"one two", "three", "four"}, got); diff != "" {
		t.Errorf("wrapText mismatch (-want +got):\n%s", diff)
	}
	if wrapText("   ", 10) != nil {
		t.Error("blank text should wrap to nothing")
	}
}
