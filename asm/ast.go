package asm

import "github.com/netizen-a/stackl/isa"

// Program is the parsed form of an assembly source file: an ordered
// sequence of statements.
type Program struct {
	Stmts []*Stmt
}

// Stmt is one assembly statement: zero or more labels followed by
// exactly one instruction.
type Stmt struct {
	Labels []string
	Inst   Inst
	Line   int
	Col    int
}

// Inst is the sum type of everything a statement can carry: a mnemonic,
// a directive, or a data declaration.
type Inst interface {
	instNode()
}

// operandKind distinguishes an immediate integer operand from a label
// reference resolved later by the symbol table.
type operandKind int

const (
	operandNone operandKind = iota
	operandInt
	operandLabel
)

// Operand is a mnemonic's optional operand: either an immediate integer
// or a forward/backward label reference.
type Operand struct {
	Kind  operandKind
	Int   int32
	Label string
}

// MnemonicInst is a single opcode with its optional operand.
type MnemonicInst struct {
	Op      isa.Opcode
	Operand Operand
}

func (*MnemonicInst) instNode() {}

// HasOperand reports whether this instance carries an operand at all
// (as opposed to whether the opcode's encoding has room for one — see
// isa.HasOperand for that).
func (m *MnemonicInst) HasOperand() bool {
	return m.Operand.Kind != operandNone
}

// DirectiveInst is a bracketed directive: `[name arg, arg, ...]`.
type DirectiveInst struct {
	Name string
	Args []string
}

func (*DirectiveInst) instNode() {}

// atomKind distinguishes the three kinds of atom a data declaration can
// hold.
type atomKind int

const (
	atomInt atomKind = iota
	atomString
	atomLabel
)

// Atom is one element of a DB/DD data declaration.
type Atom struct {
	Kind  atomKind
	Int   int32
	Str   string
	Label string
}

// ByteDataInst is a `DB` declaration: a byte-granular sequence of atoms.
type ByteDataInst struct {
	Atoms []Atom
}

func (*ByteDataInst) instNode() {}

// WordDataInst is a `DD` declaration: a word-granular (4-byte aligned)
// sequence of atoms.
type WordDataInst struct {
	Atoms []Atom
}

func (*WordDataInst) instNode() {}
