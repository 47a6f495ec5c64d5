package lexer

import (
	"fmt"
	"unicode"

	"github.com/xplshn/rvbe/pkg/token"
	"github.com/xplshn/rvbe/pkg/util"
)

// Lexer tokenizes the textual IR. Lexical errors are collected in Errors
// and lexing continues with the next character.
type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	Errors    util.Diagnostics
}

func NewLexer(source []rune, fileIndex int) *Lexer {
	return &Lexer{source: source, fileIndex: fileIndex, line: 1, column: 1}
}

// All returns every token up to and including EOF.
func (l *Lexer) All() []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF { return toks }
	}
}

func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespaceAndComments()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine)
		}

		ch := l.peek()
		if unicode.IsLetter(ch) || ch == '_' {
			return l.identifierOrKeyword(startPos, startCol, startLine)
		}
		if unicode.IsDigit(ch) || (ch == '-' && unicode.IsDigit(l.peekNext())) {
			return l.numberLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '@': return l.name(token.GlobalName, startPos, startCol, startLine)
		case '%': return l.name(token.LocalName, startPos, startCol, startLine)
		case '=': return l.makeToken(token.Eq, "", startPos, startCol, startLine)
		case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine)
		case ':': return l.makeToken(token.Colon, "", startPos, startCol, startLine)
		case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine)
		case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine)
		case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine)
		case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine)
		case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine)
		case '[': return l.makeToken(token.LBracket, "", startPos, startCol, startLine)
		case ']': return l.makeToken(token.RBracket, "", startPos, startCol, startLine)
		}

		l.errorAt(l.makeToken(token.EOF, "", startPos, startCol, startLine), "unexpected character: '%c'", ch)
	}
}

func (l *Lexer) errorAt(tok token.Token, format string, args ...any) {
	l.Errors.Add(util.Diagnostic{Severity: util.SevError, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() { return 0 }
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) { return 0 }
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() { return 0 }
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.isAtEnd() {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		case ';':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$' || r == '-'
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isNameChar(l.peek()) && l.peek() != '-' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, value, startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

// name lexes the part of "@x", "%0" or %"quoted name" after the sigil.
func (l *Lexer) name(tokType token.Type, startPos, startCol, startLine int) token.Token {
	if l.peek() == '"' {
		l.advance()
		begin := l.pos
		for !l.isAtEnd() && l.peek() != '"' && l.peek() != '\n' {
			l.advance()
		}
		value := string(l.source[begin:l.pos])
		if l.peek() != '"' {
			tok := l.makeToken(tokType, value, startPos, startCol, startLine)
			l.errorAt(tok, "unterminated quoted name")
			return tok
		}
		l.advance()
		return l.makeToken(tokType, value, startPos, startCol, startLine)
	}

	begin := l.pos
	for isNameChar(l.peek()) {
		l.advance()
	}
	value := string(l.source[begin:l.pos])
	tok := l.makeToken(tokType, value, startPos, startCol, startLine)
	if value == "" { l.errorAt(tok, "expected a name after sigil") }
	return tok
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	if l.peek() == '-' { l.advance() }
	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.Number, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}
