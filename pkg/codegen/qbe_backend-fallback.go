//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/ir"
)

func (b *qbeBackend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	fmt.Fprintln(os.Stderr, "Self-contained QBE backend is not supported on Windows. Falling back to the system's 'qbe'.")
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("QBE not found in PATH: %w", err)
	}

	qbeIR, err := b.GenerateIR(mod, cfg)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "rvbe-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	defer inputFile.Close()

	if _, err = inputFile.WriteString(qbeIR); err != nil {
		return nil, err
	}

	outputName := inputFile.Name() + ".s"
	cmd := exec.Command("qbe", "-o", outputName, "-t", cfg.BackendTarget, inputFile.Name())
	if err = cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nError: %w", qbeIR, err)
	}

	outputFile, err := os.Open(outputName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(outputName)
	defer outputFile.Close()

	var asmBuf bytes.Buffer
	if _, err = io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
