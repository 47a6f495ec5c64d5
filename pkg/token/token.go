package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Ident
	GlobalName
	LocalName
	Number
	Define
	Declare
	Global
	Constant
	Label
	Void
	I1
	I32
	Ptr
	Eq
	Comma
	Colon
	Star
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
)

var KeywordMap = map[string]Type{
	"define":   Define,
	"declare":  Declare,
	"global":   Global,
	"constant": Constant,
	"label":    Label,
	"void":     Void,
	"i1":       I1,
	"i32":      I32,
	"ptr":      Ptr,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
}

var punctuation = map[Type]string{
	EOF: "end of file", Ident: "identifier", GlobalName: "global name", LocalName: "local name", Number: "number",
	Eq: "'='", Comma: "','", Colon: "':'", Star: "'*'", LParen: "'('", RParen: "')'",
	LBrace: "'{'", RBrace: "'}'", LBracket: "'['", RBracket: "']'",
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok { return "'" + s + "'" }
	if s, ok := punctuation[t]; ok { return s }
	return fmt.Sprintf("token(%d)", int(t))
}

// IsType reports whether t names an IR value type.
func (t Type) IsType() bool { return t == Void || t == I1 || t == I32 || t == Ptr }

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
