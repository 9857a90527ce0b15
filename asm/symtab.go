package asm

import "github.com/netizen-a/stackl/isa"

// SymbolTable maps label names to their resolved byte offset within the
// emitted image.
type SymbolTable struct {
	offsets map[string]int32
}

// Lookup returns the offset of label, if defined.
func (s *SymbolTable) Lookup(label string) (int32, bool) {
	off, ok := s.offsets[label]
	return off, ok
}

// buildSymtab performs the single pre-pass over prog required by the
// emitter: it assigns each label the byte offset of the statement it
// labels, starting at 8 to reserve the two header vector words, and
// collects every duplicate definition and every operand reference to an
// undefined label.
func buildSymtab(prog *Program) (*SymbolTable, []string, []string) {
	symtab := &SymbolTable{offsets: make(map[string]int32)}
	defined := make(map[string]bool)
	var duplicates []string
	missing := make(map[string]bool)

	pos := int32(8)
	for _, stmt := range prog.Stmts {
		for _, lbl := range stmt.Labels {
			if defined[lbl] {
				duplicates = append(duplicates, lbl)
				continue
			}
			defined[lbl] = true
			symtab.offsets[lbl] = pos
		}

		for _, ref := range operandLabels(stmt.Inst) {
			if !defined[ref] {
				missing[ref] = true
			}
		}

		if dir, ok := stmt.Inst.(*DirectiveInst); ok && isSegmentDirective(dir) {
			if pad := pos % 4; pad != 0 {
				pos += 4 - pad
			}
			continue
		}

		pos += int32(instructionSize(stmt.Inst))
	}

	for ref := range missing {
		if defined[ref] {
			delete(missing, ref)
		}
	}

	var missingList []string
	for ref := range missing {
		if !defined[ref] {
			missingList = append(missingList, ref)
		}
	}

	return symtab, duplicates, missingList
}

// operandLabels returns every label name referenced by inst's operand(s).
func operandLabels(inst Inst) []string {
	switch v := inst.(type) {
	case *MnemonicInst:
		if v.Operand.Kind == operandLabel {
			return []string{v.Operand.Label}
		}
	case *WordDataInst:
		var labels []string
		for _, a := range v.Atoms {
			if a.Kind == atomLabel {
				labels = append(labels, a.Label)
			}
		}
		return labels
	}
	return nil
}

// instructionSize computes the number of bytes inst occupies in the
// emitted image: zero for directives and label-only lines, a fixed
// per-opcode size for mnemonics, and the sum of atom widths for DB/DD
// data statements.
func instructionSize(inst Inst) int {
	switch v := inst.(type) {
	case nil:
		return 0
	case *DirectiveInst:
		return 0
	case *MnemonicInst:
		return isa.Size(v.Op)
	case *ByteDataInst:
		size := 0
		for _, a := range v.Atoms {
			switch a.Kind {
			case atomInt:
				size++
			case atomString:
				size += len(a.Str)
			case atomLabel:
				// Forbidden; emit.go reports this as an error. Treat
				// as zero-width here so the offset pass still
				// terminates.
			}
		}
		return size
	case *WordDataInst:
		size := 0
		for _, a := range v.Atoms {
			switch a.Kind {
			case atomInt:
				size += 4
			case atomString:
				size += ((len(a.Str) + 3) / 4) * 4
			case atomLabel:
				size += 4
			}
		}
		return size
	default:
		return 0
	}
}
