// Package irtext reads the textual form of the IR, a subset of LLVM
// assembly: i32 globals, and functions whose basic blocks hold alloca,
// load, store, add, sub, mul, sdiv, srem and ret instructions. Any other
// instruction is kept as ir.OpOther.
package irtext

import (
	"fmt"
	"strconv"

	"github.com/xplshn/rvbe/pkg/ir"
	"github.com/xplshn/rvbe/pkg/lexer"
	"github.com/xplshn/rvbe/pkg/token"
	"github.com/xplshn/rvbe/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	errs     util.Diagnostics
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, current: tokens[0]}
}

// Parse lexes and parses src. fileIndex refers to the records handed to
// util.SetSourceFiles and is only used for diagnostics.
func Parse(src []rune, fileIndex int) (*ir.Module, error) {
	l := lexer.NewLexer(src, fileIndex)
	toks := l.All()
	if len(l.Errors) > 0 { return nil, l.Errors }
	return NewParser(toks).Parse()
}

func ParseString(src string) (*ir.Module, error) { return Parse([]rune(src), 0) }

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) check(tokType token.Type) bool { return p.current.Type == tokType }

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) { return false }
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) bool {
	if p.match(tokType) { return true }
	p.errorAt(p.current, "%s (found %s)", message, p.current.Type)
	return false
}

func (p *Parser) errorAt(tok token.Token, format string, args ...any) {
	p.errs.Add(util.Diagnostic{Severity: util.SevError, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

// onLine reports whether the current token sits on line and is not EOF.
func (p *Parser) onLine(line int) bool { return !p.check(token.EOF) && p.current.Line == line }

func (p *Parser) skipLine(line int) {
	for p.onLine(line) {
		p.advance()
	}
}

func (p *Parser) Parse() (*ir.Module, error) {
	mod := &ir.Module{}
	for !p.check(token.EOF) {
		switch {
		case p.check(token.GlobalName):
			if g := p.parseGlobal(); g != nil { mod.Globals = append(mod.Globals, g) }
		case p.check(token.Define):
			if fn := p.parseFunc(); fn != nil { mod.Funcs = append(mod.Funcs, fn) }
		default:
			// declare lines, attributes, metadata and target triples carry nothing we lower.
			p.skipLine(p.current.Line)
		}
	}
	if err := p.errs.Err(); err != nil { return nil, err }
	return mod, nil
}

func (p *Parser) parseGlobal() *ir.Global {
	nameTok := p.current
	line := nameTok.Line
	p.advance()
	if !p.expect(token.Eq, "expected '=' after global name") {
		p.skipLine(line)
		return nil
	}

	for p.onLine(line) && !p.check(token.Global) && !p.check(token.Constant) {
		p.advance()
	}
	if !p.match(token.Global) && !p.match(token.Constant) {
		p.errorAt(nameTok, "expected 'global' or 'constant' in definition of '@%s'", nameTok.Value)
		p.skipLine(line)
		return nil
	}
	p.skipTypes()

	g := &ir.Global{Name: nameTok.Value}
	if p.check(token.Number) {
		v, ok := p.parseInt(p.current)
		if !ok {
			p.skipLine(line)
			return nil
		}
		g.Value = v
		p.advance()
	} else if p.check(token.Ident) && p.current.Value == "zeroinitializer" {
		p.advance()
	} else {
		p.errorAt(p.current, "expected an integer initializer for '@%s'", g.Name)
	}
	p.skipLine(line)
	return g
}

func (p *Parser) parseInt(tok token.Token) (int32, bool) {
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil || v < -1<<31 || v > 1<<32-1 {
		p.errorAt(tok, "integer constant '%s' does not fit in 32 bits", tok.Value)
		return 0, false
	}
	return int32(uint32(v)), true
}

func (p *Parser) skipTypes() {
	for p.current.Type.IsType() || p.check(token.Star) {
		p.advance()
	}
}

func (p *Parser) parseFunc() *ir.Func {
	defineTok := p.current
	p.advance()
	for !p.check(token.GlobalName) && !p.check(token.EOF) && p.current.Line == defineTok.Line {
		p.advance()
	}
	if !p.check(token.GlobalName) {
		p.errorAt(defineTok, "expected a function name after 'define'")
		p.skipLine(defineTok.Line)
		return nil
	}
	fn := &ir.Func{Name: p.current.Value}
	p.advance()

	for !p.check(token.LBrace) && !p.check(token.EOF) {
		p.advance()
	}
	if !p.expect(token.LBrace, "expected '{' to open function body") { return nil }

	var block *ir.BasicBlock
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		if label, ok := p.parseLabel(); ok {
			block = &ir.BasicBlock{Label: label}
			fn.Blocks = append(fn.Blocks, block)
			continue
		}
		if block == nil {
			block = &ir.BasicBlock{Label: fn.Name + "Entry"}
			fn.Blocks = append(fn.Blocks, block)
		}
		if in := p.parseInstruction(); in != nil { block.Instructions = append(block.Instructions, in) }
	}
	p.expect(token.RBrace, "expected '}' to close function body")
	return fn
}

func (p *Parser) parseLabel() (string, bool) {
	if !p.check(token.Ident) && !p.check(token.Number) { return "", false }
	next := p.tokens[p.pos+1]
	if next.Type != token.Colon || next.Line != p.current.Line { return "", false }
	label := p.current.Value
	p.advance()
	p.advance()
	return label, true
}

func (p *Parser) parseInstruction() *ir.Instruction {
	start := p.current
	line := start.Line
	defer p.skipLine(line)

	var result *ir.Var
	if p.check(token.LocalName) {
		result = ir.NewVar(p.current.Value)
		p.advance()
		if !p.expect(token.Eq, "expected '=' after result name") { return nil }
	}

	if !p.check(token.Ident) {
		p.errorAt(p.current, "expected an opcode")
		return nil
	}
	opTok := p.current
	op := ir.LookupOp(opTok.Value)
	p.advance()
	in := &ir.Instruction{Op: op, Result: result}

	switch op {
	case ir.OpAlloca:
	case ir.OpRet:
		if !p.match(token.Void) {
			v := p.parseTypedValue(line)
			if v == nil { return nil }
			in.Args = []ir.Operand{v}
		}
	case ir.OpLoad:
		p.skipTypes()
		if !p.expect(token.Comma, "expected ',' after load type") { return nil }
		v := p.parseTypedValue(line)
		if v == nil { return nil }
		in.Args = []ir.Operand{v}
	case ir.OpStore:
		src := p.parseTypedValue(line)
		if src == nil || !p.expect(token.Comma, "expected ',' between store operands") { return nil }
		dst := p.parseTypedValue(line)
		if dst == nil { return nil }
		in.Args = []ir.Operand{src, dst}
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpSRem:
		for p.check(token.Ident) {
			p.advance() // nsw, nuw, exact
		}
		a := p.parseTypedValue(line)
		if a == nil || !p.expect(token.Comma, "expected ',' between operands") { return nil }
		b := p.parseValue(line)
		if b == nil { return nil }
		in.Args = []ir.Operand{a, b}
	case ir.OpOther:
		// Operands of instructions we do not lower are dropped.
		return in
	}

	if err := in.Check(); err != nil {
		p.errorAt(opTok, "%v", err)
		return nil
	}
	return in
}

func (p *Parser) parseTypedValue(line int) ir.Operand {
	p.skipTypes()
	return p.parseValue(line)
}

func (p *Parser) parseValue(line int) ir.Operand {
	if !p.onLine(line) {
		p.errorAt(p.previous, "expected an operand")
		return nil
	}
	tok := p.current
	switch tok.Type {
	case token.Number:
		v, ok := p.parseInt(tok)
		if !ok { return nil }
		p.advance()
		return ir.NewConst(v)
	case token.LocalName, token.GlobalName:
		p.advance()
		return ir.NewVar(tok.Value)
	}
	p.errorAt(tok, "expected an operand (found %s)", tok.Type)
	return nil
}
