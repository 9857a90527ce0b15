// Package asm implements the Stackl assembler: lexer, recursive-descent
// parser, label fixup, _start rotation, symbol table construction, and
// code emission into the objfmt binary container.
package asm

import "github.com/netizen-a/stackl/objfmt"

// Result is the successful output of Assemble.
type Result struct {
	Image *objfmt.Image
}

// Assemble runs the full pipeline — lex, parse, label fixup, start
// rotation, symbol table construction, code emission — over src and
// returns the assembled image plus every diagnostic collected along the
// way. A nil Result means assembly failed; Diagnostics explains why.
func Assemble(src string) (*Result, []Diagnostic) {
	var diags []Diagnostic

	toks, lexDiags := lex(src)
	diags = append(diags, lexDiags...)

	prog, parseDiags := parse(toks)
	diags = append(diags, parseDiags...)

	if len(diags) > 0 {
		return nil, diags
	}

	fixupLabels(prog)

	if !fixupStart(prog) {
		diags = append(diags, newDiag(0, 0, "no statement is labeled _start"))
		return nil, diags
	}

	symtab, duplicates, missing := buildSymtab(prog)
	for _, dup := range duplicates {
		diags = append(diags, newDiag(0, 0, "duplicate label %q", dup))
	}
	for _, ref := range missing {
		diags = append(diags, newDiag(0, 0, "undefined label %q", ref))
	}
	if len(duplicates) > 0 || len(missing) > 0 {
		return nil, diags
	}

	text, flags, emitDiags := emit(prog, symtab)
	diags = append(diags, emitDiags...)
	if len(emitDiags) > 0 {
		return nil, diags
	}

	img := &objfmt.Image{
		Version:   objfmt.Version{Major: 1, Minor: 1, Patch: 0, Build: 0},
		Flags:     flags,
		StackSize: objfmt.DefaultStackSize,
		Text:      text,
	}
	return &Result{Image: img}, diags
}

// HasErrors reports whether diags contains at least one diagnostic (the
// assembler does not currently distinguish warnings from errors; every
// collected diagnostic is fatal to emission).
func HasErrors(diags []Diagnostic) bool {
	return len(diags) > 0
}
