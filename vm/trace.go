package vm

import (
	"fmt"
	"strings"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/util/hex"
)

const traceHeaderPeriod = 30

// setTrace is the handler for SET_TRACE/CLR_TRACE: it toggles tracing
// and, on enabling, writes a fresh column header immediately.
func (m *Machine) setTrace(on bool) {
	m.Trace = on
	if on && m.TraceOut != nil {
		m.writeTraceHeader()
		m.traceRows = 0
	}
}

func (m *Machine) writeTraceHeader() {
	fmt.Fprintf(m.TraceOut, "\n%8s %6s %6s %6s %6s %6s\n", "Flag", "BP", "LP", "IP", "SP", "FP")
}

// writeTrace writes one trace line for the instruction about to
// execute. It never returns an error: a disassembly failure degrades to
// printing "(undecodable)" rather than aborting the run.
func (m *Machine) writeTrace() {
	if m.traceRows > traceHeaderPeriod-1 {
		m.writeTraceHeader()
		m.traceRows = 1 // the line written below is the first under it
	} else {
		m.traceRows++
	}

	var flagHex strings.Builder
	hex.FormatWord(&flagHex, []uint32{m.Flag.Pack()})

	inst, err := m.disassemble(m.Ip)
	if err != nil {
		inst = "(undecodable)"
	}

	fmt.Fprintf(m.TraceOut, "%s %6d %6d %6d %6d %6d %s\n",
		strings.TrimSpace(flagHex.String()), m.Bp, m.Lp, m.Ip, m.Sp, m.Fp, inst)
}

// disassemble renders the instruction at offset as a single line: its
// mnemonic plus whatever operand or peeked stack values print_trace
// shows for that opcode in the original VM.
func (m *Machine) disassemble(offset int32) (string, error) {
	opWord, err := m.LoadWord(offset)
	if err != nil {
		return "", err
	}
	op := isa.Opcode(opWord)
	if !isa.Valid(op) {
		return fmt.Sprintf("ILLEGAL(%d)", opWord), nil
	}

	var b strings.Builder
	b.WriteString(op.String())

	switch op {
	case isa.POPARGS, isa.PUSH, isa.JMP, isa.JMPUSER, isa.ADJSP, isa.CALL:
		operand, err := m.LoadWord(offset + 4)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %d", operand)

	case isa.JZ:
		cond, err := m.LoadWord(m.Sp - 4)
		if err != nil {
			return "", err
		}
		operand, err := m.LoadWord(offset + 4)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %d %d", cond, operand)

	case isa.PUSHREG, isa.POPREG:
		operand, err := m.LoadWord(offset + 4)
		if err != nil {
			return "", err
		}
		if isa.ValidRegister(isa.Register(operand)) {
			fmt.Fprintf(&b, " %s", isa.Register(operand))
		} else {
			fmt.Fprintf(&b, " %d", operand)
		}

	case isa.PUSHVAR, isa.POPVAR:
		operand, err := m.LoadWord(offset + 4)
		if err != nil {
			return "", err
		}
		value, err := m.LoadWord(m.Fp + operand)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %d %d", operand, value)

	case isa.PUSHVARIND:
		a, err := m.LoadWord(m.Sp - 4)
		if err != nil {
			return "", err
		}
		v, err := m.LoadWord(a)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %d %d", a, v)

	case isa.POPVARIND:
		a, err := m.LoadWord(m.Sp - 8)
		if err != nil {
			return "", err
		}
		v, err := m.LoadWord(m.Sp - 4)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %d %d", a, v)
	}

	return b.String(), nil
}
