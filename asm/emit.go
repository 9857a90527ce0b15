package asm

import (
	"encoding/binary"
	"strings"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/objfmt"
)

// emitter walks the fixed-up, rotated AST a second time and produces the
// text section bytes, accumulating the feature flags and vector offsets
// that go into the object header.
type emitter struct {
	symtab        *SymbolTable
	buf           []byte
	flags         uint32
	intVec        int32
	trapVec       int32
	startIsGlobal bool
	diags         []Diagnostic
}

func emit(prog *Program, symtab *SymbolTable) ([]byte, uint32, []Diagnostic) {
	e := &emitter{symtab: symtab, buf: make([]byte, 8)}

	for _, stmt := range prog.Stmts {
		e.emitStmt(stmt)
	}

	if !e.startIsGlobal {
		e.errorf(0, 0, "_start is not declared global; add [global _start]")
	}

	binary.LittleEndian.PutUint32(e.buf[0:4], uint32(e.intVec))
	binary.LittleEndian.PutUint32(e.buf[4:8], uint32(e.trapVec))

	return e.buf, e.flags, e.diags
}

func (e *emitter) errorf(line, col int, format string, args ...interface{}) {
	e.diags = append(e.diags, newDiag(line, col, format, args...))
}

func (e *emitter) appendWord(v int32) {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], uint32(v))
	e.buf = append(e.buf, word[:]...)
}

func (e *emitter) emitStmt(stmt *Stmt) {
	switch v := stmt.Inst.(type) {
	case nil:
		// Bare label-only statement; nothing to emit (its label was
		// already folded forward by fixupLabels, so this case should
		// not normally occur post-fixup, but is harmless if it does).
	case *MnemonicInst:
		e.emitMnemonic(stmt, v)
	case *DirectiveInst:
		e.emitDirective(stmt, v)
	case *ByteDataInst:
		e.emitByteData(stmt, v)
	case *WordDataInst:
		e.emitWordData(stmt, v)
	}
}

func (e *emitter) emitMnemonic(stmt *Stmt, m *MnemonicInst) {
	e.appendWord(int32(m.Op))

	if !isa.HasOperand(m.Op) {
		return
	}

	val, ok := e.resolveOperand(stmt, m.Operand)
	if !ok {
		val = 0
	}
	e.appendWord(val)
}

func (e *emitter) resolveOperand(stmt *Stmt, op Operand) (int32, bool) {
	switch op.Kind {
	case operandInt:
		return op.Int, true
	case operandLabel:
		off, ok := e.symtab.Lookup(op.Label)
		if !ok {
			e.errorf(stmt.Line, stmt.Col, "undefined label %q", op.Label)
			return 0, false
		}
		return off, true
	default:
		e.errorf(stmt.Line, stmt.Col, "opcode requires an operand")
		return 0, false
	}
}

func (e *emitter) emitByteData(stmt *Stmt, d *ByteDataInst) {
	for _, a := range d.Atoms {
		switch a.Kind {
		case atomInt:
			e.buf = append(e.buf, byte(a.Int))
		case atomString:
			e.buf = append(e.buf, []byte(a.Str)...)
		case atomLabel:
			e.errorf(stmt.Line, stmt.Col, "label references are not permitted in byte (DB) data")
		}
	}
}

func (e *emitter) emitWordData(stmt *Stmt, d *WordDataInst) {
	for _, a := range d.Atoms {
		switch a.Kind {
		case atomInt:
			e.appendWord(a.Int)
		case atomString:
			bytes := []byte(a.Str)
			padded := ((len(bytes) + 3) / 4) * 4
			word := make([]byte, padded)
			copy(word, bytes)
			e.buf = append(e.buf, word...)
		case atomLabel:
			off, ok := e.symtab.Lookup(a.Label)
			if !ok {
				e.errorf(stmt.Line, stmt.Col, "undefined label %q", a.Label)
				off = 0
			}
			e.appendWord(off)
		}
	}
}

func (e *emitter) emitDirective(stmt *Stmt, d *DirectiveInst) {
	switch {
	case directiveNameIs(d, "segment"):
		if pad := len(e.buf) % 4; pad != 0 {
			e.buf = append(e.buf, make([]byte, 4-pad)...)
		}

	case directiveNameIs(d, "extern"):
		e.errorf(stmt.Line, stmt.Col, "binary object format does not support [extern]")

	case directiveNameIs(d, "global"):
		for _, arg := range d.Args {
			if arg == "_start" {
				e.startIsGlobal = true
			}
		}

	case directiveNameIs(d, "interrupt"):
		e.intVec = e.resolveSingleDirectiveLabel(stmt, d, "interrupt")

	case directiveNameIs(d, "systrap"):
		e.trapVec = e.resolveSingleDirectiveLabel(stmt, d, "systrap")

	case directiveNameIs(d, "feature"):
		e.emitFeatures(stmt, d)

	default:
		e.errorf(stmt.Line, stmt.Col, "unrecognized directive %q", d.Name)
	}
}

func (e *emitter) resolveSingleDirectiveLabel(stmt *Stmt, d *DirectiveInst, name string) int32 {
	if len(d.Args) != 1 {
		e.errorf(stmt.Line, stmt.Col, "[%s] requires exactly one symbol argument", name)
		return 0
	}
	off, ok := e.symtab.Lookup(d.Args[0])
	if !ok {
		e.errorf(stmt.Line, stmt.Col, "undefined label %q in [%s]", d.Args[0], name)
		return 0
	}
	return off
}

// featureBits maps the lowercased [feature ...] argument names to their
// object-header flag bit.
var featureBits = map[string]uint32{
	"pio_term": objfmt.FeaturePioTerm,
	"dma_term": objfmt.FeatureDMATerm,
	"disk":     objfmt.FeatureDisk,
	"inp":      objfmt.FeatureINP,
	"gen_io":   objfmt.FeatureGenIO,
}

func (e *emitter) emitFeatures(stmt *Stmt, d *DirectiveInst) {
	for _, arg := range d.Args {
		bit, ok := featureBits[strings.ToLower(arg)]
		if !ok {
			e.errorf(stmt.Line, stmt.Col, "unrecognized feature %q", arg)
			continue
		}
		e.flags |= bit
	}
}
