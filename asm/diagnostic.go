package asm

import "fmt"

// Diagnostic is one lexical, syntactic, symbol-resolution, or emission
// problem discovered while assembling a source file. Diagnostics are
// collected rather than aborting at the first failure, so a single run
// can report every offending label or token in one pass.
type Diagnostic struct {
	Line    int
	Col     int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Col, d.Message)
}

func newDiag(line, col int, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Line: line, Col: col, Message: fmt.Sprintf(format, args...)}
}
