package asm

// fixupLabels walks the AST once, carrying labels stranded on a
// directive (or on a line with no instruction at all) forward onto the
// next statement that actually emits something. This must run before
// fixupStart, or a label attached only to a directive line would be
// lost before the _start rotation ever sees it.
func fixupLabels(prog *Program) {
	var pending []string
	var kept []*Stmt

	for _, stmt := range prog.Stmts {
		labels := append(pending, stmt.Labels...)
		pending = nil

		switch stmt.Inst.(type) {
		case nil:
			// A bare label-only line carries no instruction of its own;
			// drop it and forward its labels.
			pending = labels
			continue

		case *DirectiveInst:
			// The directive itself still has to be emitted (for its
			// side effects: feature flags, vectors, segment padding),
			// but any label written on its line resolves to the byte
			// offset of whatever follows it, not the directive's own
			// (zero-width) position.
			stmt.Labels = nil
			kept = append(kept, stmt)
			pending = labels
			continue

		default:
			stmt.Labels = labels
			kept = append(kept, stmt)
		}
	}

	// Any labels trailing the last statement (e.g. a file ending in a
	// directive) attach to nothing; drop them rather than synthesizing
	// a statement, matching the "every label must define something
	// reachable" intent implicitly enforced by symbol table construction.
	prog.Stmts = kept
}

// fixupStart rotates prog so the statement labeled `_start` becomes the
// first statement. It reports an error if no statement carries that
// label; the caller is responsible for separately verifying `_start`
// was declared global via `[global _start]`.
func fixupStart(prog *Program) bool {
	for i, stmt := range prog.Stmts {
		for _, lbl := range stmt.Labels {
			if lbl == "_start" {
				rotateLeft(prog.Stmts, i)
				return true
			}
		}
	}
	return false
}

func rotateLeft(stmts []*Stmt, mid int) {
	rotated := make([]*Stmt, 0, len(stmts))
	rotated = append(rotated, stmts[mid:]...)
	rotated = append(rotated, stmts[:mid]...)
	copy(stmts, rotated)
}
