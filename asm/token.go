package asm

import "github.com/netizen-a/stackl/isa"

// tokenKind enumerates the lexical categories produced by the lexer.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokColon
	tokComma
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokIdentifier
	tokInteger
	tokString
	tokMnemonic
	tokDB
	tokDD
)

// token is one lexed unit, carrying enough payload for the parser to
// build an AST node without re-scanning.
type token struct {
	kind   tokenKind
	text   string
	intVal int32
	op     isa.Opcode
	line   int
	col    int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "<eof>"
	case tokNewline:
		return "<newline>"
	default:
		return t.text
	}
}
