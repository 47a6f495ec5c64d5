package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/rvbe/pkg/token"
	"golang.org/x/term"
)

type Severity int

const (
	SevError Severity = iota
	SevWarning
	SevInfo
)

func (s Severity) String() string {
	switch s {
	case SevError: return "error"
	case SevWarning: return "warning"
	default: return "info"
	}
}

func (s Severity) color() string {
	switch s {
	case SevError: return "\033[31m"
	case SevWarning: return "\033[33m"
	default: return "\033[36m"
	}
}

// Diagnostic is a single message about the input. Tok locates it in a
// source file; Where locates it in the IR ("func/block:pos").
type Diagnostic struct {
	Severity Severity
	Tok      token.Token
	Where    string
	Flag     string
	Msg      string
}

func (d Diagnostic) location() string {
	if d.Tok.Line > 0 {
		filename, line, col := findFileAndLine(d.Tok)
		return fmt.Sprintf("%s:%d:%d", filename, line, col)
	}
	if d.Where != "" { return d.Where }
	return "rvbe"
}

func (d Diagnostic) Error() string {
	s := fmt.Sprintf("%s: %s: %s", d.location(), d.Severity, d.Msg)
	if d.Flag != "" { s += " [-W" + d.Flag + "]" }
	return s
}

// Diagnostics collects messages in the order they were reported.
type Diagnostics []Diagnostic

func (ds *Diagnostics) Add(d Diagnostic) { *ds = append(*ds, d) }

func (ds *Diagnostics) Errorf(where, format string, args ...any) {
	ds.Add(Diagnostic{Severity: SevError, Where: where, Msg: fmt.Sprintf(format, args...)})
}

func (ds *Diagnostics) Warnf(flag, where, format string, args ...any) {
	ds.Add(Diagnostic{Severity: SevWarning, Where: where, Flag: flag, Msg: fmt.Sprintf(format, args...)})
}

func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SevError { return true }
	}
	return false
}

// Err returns ds as an error if it holds at least one error, else nil.
func (ds Diagnostics) Err() error {
	if ds.HasErrors() { return ds }
	return nil
}

func (ds Diagnostics) Error() string {
	msgs := make([]string, 0, len(ds))
	for _, d := range ds {
		if d.Severity == SevError { msgs = append(msgs, d.Error()) }
	}
	if len(msgs) == 1 { return msgs[0] }
	return fmt.Sprintf("%d errors:\n  %s", len(msgs), strings.Join(msgs, "\n  "))
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source code for all input files for rich error messages.
func SetSourceFiles(files []SourceFileRecord) { sourceFiles = files }

func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

func sourceLine(tok token.Token) (string, bool) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return "", false
	}
	content := sourceFiles[tok.FileIndex].Content
	lineNum, lineStart := tok.Line, 0
	for i, r := range content {
		if lineNum <= 1 { break }
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}
	return string(content[lineStart:lineEnd]), true
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes d to w, followed by the offending source line and a caret
// when the diagnostic carries a source position.
func Print(w io.Writer, d Diagnostic) {
	color, reset, green := "", "", ""
	if useColor(w) { color, reset, green = d.Severity.color(), "\033[0m", "\033[32m" }

	fmt.Fprintf(w, "%s: %s%s:%s %s", d.location(), color, d.Severity, reset, d.Msg)
	if d.Flag != "" { fmt.Fprintf(w, " [-W%s]", d.Flag) }
	fmt.Fprintln(w)

	line, ok := sourceLine(d.Tok)
	if !ok { return }
	fmt.Fprintf(w, "  %s\n", line)
	col := d.Tok.Column
	if col < 1 { col = 1 }
	fmt.Fprintf(w, "  %s%s^", strings.Repeat(" ", col-1), green)
	if d.Tok.Len > 1 { fmt.Fprint(w, strings.Repeat("~", d.Tok.Len-1)) }
	fmt.Fprintln(w, reset)
}

// PrintAll writes every diagnostic in ds to w.
func PrintAll(w io.Writer, ds Diagnostics) {
	for _, d := range ds {
		Print(w, d)
	}
}

// Error prints a formatted error message and exits the program.
func Error(tok token.Token, format string, args ...any) {
	Print(os.Stderr, Diagnostic{Severity: SevError, Tok: tok, Msg: fmt.Sprintf(format, args...)})
	os.Exit(1)
}

// Info prints a progress message on stderr.
func Info(format string, args ...any) {
	Print(os.Stderr, Diagnostic{Severity: SevInfo, Msg: fmt.Sprintf(format, args...)})
}
