package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/xplshn/rvbe/pkg/cli"
	"github.com/xplshn/rvbe/pkg/codegen"
	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/ir"
	"github.com/xplshn/rvbe/pkg/irtext"
	"github.com/xplshn/rvbe/pkg/token"
	"github.com/xplshn/rvbe/pkg/util"
)

func main() {
	app := cli.NewApp("rvbe")
	app.Synopsis = "[options] <input.ll> ..."
	app.Description = "A backend that lowers a small LLVM-like IR to RV32 assembly with a block-local linear-scan register allocator."

	var (
		outFile    string
		target     string
		frameSize  int
		registers  []string
		dumpIR     bool
		showConfig bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.s", "Place the output into <file>. Use '-' for stdout.", "file")
	fs.String(&target, "target", "t", "rv32", "Set the backend and target (rv32, qbe or qbe/<target>).", "backend/target")
	fs.Int(&frameSize, "frame-size", "", 1024, "Size in bytes of every function's stack frame.", "bytes")
	fs.List(&registers, "reg", "r", []string{}, "Restrict the allocatable pool to the given registers, in order.", "name")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the intermediate representation and exit.")
	fs.Bool(&showConfig, "print-config", "", false, "Print the feature and warning configuration and exit.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Error(token.Token{}, "%v", err)
		}
		if err := cfg.SetFrameSize(frameSize); err != nil {
			util.Error(token.Token{}, "%v", err)
		}
		if len(registers) > 0 {
			if err := cfg.SetRegisters(registers); err != nil {
				util.Error(token.Token{}, "%v", err)
			}
		}

		if showConfig {
			fmt.Print(cfg.Describe())
			return nil
		}
		if len(inputFiles) == 0 {
			util.Error(token.Token{}, "no input files specified.")
		}

		progress("----------------------")
		progress("Parsing %d IR file(s)...", len(inputFiles))
		mod := readModules(inputFiles)

		if cfg.IsFeatureEnabled(config.FeatValidate) {
			progress("Validating module...")
			if err := mod.Validate(); err != nil {
				util.Error(token.Token{}, "invalid module: %v", err)
			}
		}

		backend, err := codegen.Select(cfg.BackendName)
		if err != nil {
			util.Error(token.Token{}, "%v", err)
		}

		if dumpIR {
			progress("Dumping IR for '%s' backend...", cfg.BackendName)
			if irb, ok := backend.(codegen.IRBackend); ok {
				irText, err := irb.GenerateIR(mod, cfg)
				if err != nil {
					util.Error(token.Token{}, "backend IR generation failed: %v", err)
				}
				fmt.Print(irText)
			} else {
				fmt.Print(dumpModule(mod))
			}
			return nil
		}

		progress("Generating code with '%s' backend...", cfg.BackendName)
		out, err := backend.Generate(mod, cfg)
		if err != nil {
			if ds, ok := err.(util.Diagnostics); ok {
				util.PrintAll(os.Stderr, ds)
				os.Exit(1)
			}
			util.Error(token.Token{}, "backend code generation failed: %v", err)
		}

		if outFile == "-" {
			_, err = os.Stdout.Write(out.Bytes())
		} else {
			progress("Writing '%s'...", outFile)
			err = os.WriteFile(outFile, out.Bytes(), 0o644)
		}
		if err != nil {
			util.Error(token.Token{}, "could not write output: %v", err)
		}

		progress("----------------------")
		progress("Done!")
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// progress writes stage messages to stderr so that '-o -' output stays clean.
func progress(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func readModules(paths []string) *ir.Module {
	var records []util.SourceFileRecord
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "could not read file '%s': %v", path, err)
		}
		records = append(records, util.SourceFileRecord{Name: path, Content: []rune(string(content))})
	}
	util.SetSourceFiles(records)

	mod := &ir.Module{}
	failed := false
	for i, rec := range records {
		m, err := irtext.Parse(rec.Content, i)
		if err != nil {
			if ds, ok := err.(util.Diagnostics); ok {
				util.PrintAll(os.Stderr, ds)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %v\n", rec.Name, err)
			}
			failed = true
			continue
		}
		mod.Globals = append(mod.Globals, m.Globals...)
		mod.Funcs = append(mod.Funcs, m.Funcs...)
	}
	if failed { os.Exit(1) }
	return mod
}

func dumpModule(mod *ir.Module) string {
	var sb strings.Builder
	for _, g := range mod.Globals {
		fmt.Fprintf(&sb, "global %s = %d\n", g.Name, g.Value)
	}
	for _, fn := range mod.Funcs {
		fmt.Fprintf(&sb, "\nfunc %s\n", fn.Name)
		for _, b := range fn.Blocks {
			fmt.Fprintf(&sb, "%s:\n", b.Label)
			for _, in := range b.Instructions {
				fmt.Fprintf(&sb, "\t%s\n", in)
			}
		}
	}
	return sb.String()
}
