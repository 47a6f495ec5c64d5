// Package asm accumulates RV32 assembly text one line at a time.
package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const indent = "  "

// Program is an ordered list of assembly lines.
type Program struct {
	lines []string
}

func NewProgram() *Program { return &Program{} }

func (p *Program) emit(format string, args ...any) {
	p.lines = append(p.lines, fmt.Sprintf(format, args...))
}

// Seg writes a directive such as ".text" or ".word 5".
func (p *Program) Seg(name string, params ...any) {
	if len(params) == 0 {
		p.emit("%s.%s", indent, name)
		return
	}
	parts := make([]string, len(params))
	for i, v := range params {
		parts[i] = fmt.Sprint(v)
	}
	p.emit("%s.%s %s", indent, name, strings.Join(parts, ", "))
}

func (p *Program) Label(name string) { p.emit("%s:", name) }

// Instr writes "<mnemonic> <operands>" with the operands comma separated.
func (p *Program) Instr(mnemonic string, operands ...string) {
	if len(operands) == 0 {
		p.emit("%s%s", indent, mnemonic)
		return
	}
	p.emit("%s%s %s", indent, mnemonic, strings.Join(operands, ", "))
}

func (p *Program) LI(rd string, imm int32)         { p.Instr("li", rd, fmt.Sprint(imm)) }
func (p *Program) LA(rd, symbol string)            { p.Instr("la", rd, symbol) }
func (p *Program) MV(rd, rs string)                { p.Instr("mv", rd, rs) }
func (p *Program) LW(rd string, off int, base string) { p.Instr("lw", rd, memOperand(off, base)) }
func (p *Program) SW(rs string, off int, base string) { p.Instr("sw", rs, memOperand(off, base)) }
func (p *Program) ADDI(rd, rs string, imm int)     { p.Instr("addi", rd, rs, fmt.Sprint(imm)) }
func (p *Program) ECALL()                          { p.Instr("ecall") }

// Arith writes a three-register instruction such as "add t0, t0, t1".
func (p *Program) Arith(mnemonic, rd, rs1, rs2 string) { p.Instr(mnemonic, rd, rs1, rs2) }

// Note appends a trailing comment to the last line written.
func (p *Program) Note(format string, args ...any) {
	if len(p.lines) == 0 { return }
	p.lines[len(p.lines)-1] += " # " + fmt.Sprintf(format, args...)
}

func memOperand(off int, base string) string { return fmt.Sprintf("%d(%s)", off, base) }

// Lines returns a copy of the emitted lines.
func (p *Program) Lines() []string {
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

func (p *Program) Len() int { return len(p.lines) }

// Count returns how many instructions use mnemonic.
func (p *Program) Count(mnemonic string) int {
	n := 0
	for _, l := range p.lines {
		if Mnemonic(l) == mnemonic { n++ }
	}
	return n
}

// Mnemonic extracts the instruction or directive name of an emitted line.
// Labels yield "".
func Mnemonic(line string) string {
	if !strings.HasPrefix(line, indent) { return "" }
	f := strings.Fields(line)
	if len(f) == 0 { return "" }
	return f[0]
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, l := range p.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Program) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.String())
	return int64(n), err
}

// Digest is the xxhash64 of the rendered text. Two translations of the same
// module must produce the same digest.
func (p *Program) Digest() uint64 { return xxhash.Sum64String(p.String()) }
