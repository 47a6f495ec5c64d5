package codegen

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xplshn/rvbe/pkg/config"
	"github.com/xplshn/rvbe/pkg/ir"
	"github.com/xplshn/rvbe/pkg/util"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an IR module and a configuration, and produces the target
	// assembly as a byte buffer.
	Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error)
}

// IRBackend is implemented by backends that go through a textual
// intermediate language of their own.
type IRBackend interface {
	Backend
	GenerateIR(mod *ir.Module, cfg *config.Config) (string, error)
}

func Select(name string) (Backend, error) {
	switch name {
	case config.BackendRV32, "":
		return NewRV32Backend(), nil
	case config.BackendQBE:
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", name)
}

type rv32Backend struct{}

func NewRV32Backend() Backend { return &rv32Backend{} }

func (b *rv32Backend) Generate(mod *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	prog, diags, err := Translate(mod, cfg)
	if err != nil { return nil, err }
	util.PrintAll(os.Stderr, diags)

	var buf bytes.Buffer
	if _, err := prog.WriteTo(&buf); err != nil { return nil, err }
	return &buf, nil
}
