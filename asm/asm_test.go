package asm

import (
	"testing"

	"github.com/netizen-a/stackl/objfmt"
)

const helloSource = `
[global _start]
[feature gen_io]

_start:
	PUSH msg
	OUTS
	HALT

msg: DB "hi", 0
`

func TestAssembleHelloProducesNoDiagnostics(t *testing.T) {
	res, diags := Assemble(helloSource)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Image.Flags&objfmt.FeatureGenIO == 0 {
		t.Errorf("expected FeatureGenIO set in flags %#x", res.Image.Flags)
	}
}

func TestAssembleRoundTripsThroughObjfmt(t *testing.T) {
	res, diags := Assemble(helloSource)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	encoded := objfmt.Encode(res.Image)
	decoded, err := objfmt.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Flags != res.Image.Flags {
		t.Errorf("Flags = %#x, want %#x", decoded.Flags, res.Image.Flags)
	}
}

func TestMissingStartFails(t *testing.T) {
	src := `
[global foo]
foo:
	HALT
`
	res, diags := Assemble(src)
	if res != nil {
		t.Fatalf("expected nil result")
	}
	if !HasErrors(diags) {
		t.Fatalf("expected diagnostics")
	}
	found := false
	for _, d := range diags {
		if containsSubstr(d.Message, "_start") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a diagnostic mentioning _start, got %v", diags)
	}
}

func TestDuplicateLabelFails(t *testing.T) {
	src := `
[global _start]
_start:
	HALT
foo:
	HALT
foo:
	HALT
`
	res, diags := Assemble(src)
	if res != nil {
		t.Fatalf("expected nil result")
	}
	found := false
	for _, d := range diags {
		if containsSubstr(d.Message, "foo") && containsSubstr(d.Message, "duplicate") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a diagnostic listing foo as duplicate, got %v", diags)
	}
}

func TestStartNotGlobalFails(t *testing.T) {
	src := `
_start:
	HALT
`
	res, diags := Assemble(src)
	if res != nil {
		t.Fatalf("expected nil result")
	}
	if !HasErrors(diags) {
		t.Fatalf("expected diagnostics")
	}
}

func TestExternDirectiveFails(t *testing.T) {
	src := `
[global _start]
[extern foo]
_start:
	HALT
`
	_, diags := Assemble(src)
	if !HasErrors(diags) {
		t.Fatalf("expected [extern] to fail emission")
	}
}

func TestByteDataLabelReferenceForbidden(t *testing.T) {
	src := `
[global _start]
_start:
	HALT
data: DB foo
`
	_, diags := Assemble(src)
	if !HasErrors(diags) {
		t.Fatalf("expected DB label reference to be rejected")
	}
}

func TestUndefinedLabelFails(t *testing.T) {
	src := `
[global _start]
_start:
	PUSH nowhere
	HALT
`
	_, diags := Assemble(src)
	if !HasErrors(diags) {
		t.Fatalf("expected undefined label diagnostic")
	}
}

func TestInterruptAndSystrapVectors(t *testing.T) {
	src := `
[global _start]
[interrupt handler]
[systrap trap_handler]

_start:
	HALT

handler:
	RTI

trap_handler:
	RTI
`
	res, diags := Assemble(src)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	intVec := int32(res.Image.Text[0]) | int32(res.Image.Text[1])<<8 | int32(res.Image.Text[2])<<16 | int32(res.Image.Text[3])<<24
	trapVec := int32(res.Image.Text[4]) | int32(res.Image.Text[5])<<8 | int32(res.Image.Text[6])<<16 | int32(res.Image.Text[7])<<24
	if intVec == 0 {
		t.Errorf("expected nonzero interrupt vector, got %d", intVec)
	}
	if trapVec == 0 || trapVec == intVec {
		t.Errorf("expected distinct nonzero systrap vector, got %d", trapVec)
	}
}

func TestSegmentDirectivePadsAlignment(t *testing.T) {
	src := `
[global _start]
_start:
	HALT
odd: DB 1
[segment]
aligned: HALT
`
	res, diags := Assemble(src)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	// header 8 + HALT 4 + DB 1 = 13 bytes, padded to 16 by [segment].
	off, ok := findSymbol(t, src, "aligned")
	if !ok {
		t.Fatal("expected label aligned to be defined")
	}
	if off != 16 {
		t.Errorf("aligned = %d, want 16", off)
	}
	if len(res.Image.Text) != 20 {
		t.Errorf("text length = %d, want 20 (padding plus trailing HALT)", len(res.Image.Text))
	}
}

// findSymbol re-assembles src just far enough to inspect the symbol
// table; TestSegmentDirectivePadsAlignment uses it to check a padded
// label offset.
func findSymbol(t *testing.T, src, name string) (int32, bool) {
	t.Helper()
	toks, _ := lex(src)
	prog, _ := parse(toks)
	fixupLabels(prog)
	fixupStart(prog)
	symtab, _, _ := buildSymtab(prog)
	return symtab.Lookup(name)
}

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
