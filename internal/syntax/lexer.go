package syntax

import (
	"fmt"

	"github.com/roach88/desflat/internal/ir"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokDot
	tokComma
	tokSemi
	tokColon
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
)

var tokenNames = map[tokenKind]string{
	tokEOF:    "end of input",
	tokIdent:  "identifier",
	tokDot:    `"."`,
	tokComma:  `","`,
	tokSemi:   `";"`,
	tokColon:  `":"`,
	tokLParen: `"("`,
	tokRParen: `")"`,
	tokLBrace: `"{"`,
	tokRBrace: `"}"`,
}

func (k tokenKind) String() string {
	return tokenNames[k]
}

type token struct {
	kind tokenKind
	text string
	pos  ir.Pos
}

func (t token) describe() string {
	if t.kind == tokIdent {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}

// Reserved words cannot be used as names.
var keywords = map[string]bool{
	"plant": true, "def": true, "automaton": true, "group": true, "end": true,
	"location": true, "initial": true, "marked": true, "edge": true, "goto": true,
	"controllable": true, "uncontrollable": true,
	"requirement": true, "invariant": true, "disables": true,
	"not": true, "and": true, "or": true,
}

// IsReserved reports whether name is a keyword of the text syntax.
func IsReserved(name string) bool {
	return keywords[name]
}

// lex splits src into tokens. The final token is always tokEOF.
func lex(file string, src []byte) ([]token, error) {
	var toks []token
	line, col := 1, 1
	i := 0

	advance := func(n int) {
		for k := 0; k < n; k++ {
			if src[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}
	}

	for i < len(src) {
		c := src[i]
		pos := ir.Pos{File: file, Line: line, Column: col}

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			advance(1)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				advance(1)
			}
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				advance(1)
			}
			toks = append(toks, token{kind: tokIdent, text: string(src[start:i]), pos: pos})
		default:
			kind, ok := punctuation[c]
			if !ok {
				return nil, &SyntaxError{Pos: pos, Message: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{kind: kind, text: string(c), pos: pos})
			advance(1)
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: ir.Pos{File: file, Line: line, Column: col}})
	return toks, nil
}

var punctuation = map[byte]tokenKind{
	'.': tokDot,
	',': tokComma,
	';': tokSemi,
	':': tokColon,
	'(': tokLParen,
	')': tokRParen,
	'{': tokLBrace,
	'}': tokRBrace,
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
