package vm

import (
	"math/bits"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/objfmt"
)

// Step executes exactly one machine cycle: a pending-interrupt check,
// optional trace, then one opcode's fetch and dispatch. A returned
// *FatalError means no handler was installed for a machine check or
// trap that had to be taken; the caller should stop running the
// machine. Any other non-nil error is unexpected and also fatal to the
// run loop.
func (m *Machine) Step() error {
	if m.Flag.PendingInterrupt() && !m.Flag.IntMode() && !m.Flag.IntDisabled() {
		return m.Interrupt(false)
	}

	if m.Trace && m.TraceOut != nil {
		m.writeTrace()
	}

	err := m.execute()
	if err == nil {
		m.instCount++
		return nil
	}

	mcErr, ok := err.(*MachineCheckError)
	if !ok {
		return err
	}

	if m.Ivec == 0 {
		if sentinel, serr := m.loadAbsWord(0); serr == nil && sentinel == -1 {
			return &FatalError{Cause: checkName(mcErr.Cause)}
		}
	}
	return m.escalate(mcErr.Cause)
}

// execute fetches the opcode at IP and dispatches it. It returns a
// *MachineCheckError for any fault an opcode handler detects; errors
// from memory accesses are already shaped as *MachineCheckError too.
// TRAP is the exception: it can also return the *FatalError that
// Interrupt reports when no trap handler is installed.
func (m *Machine) execute() error {
	opWord, err := m.LoadWord(m.Ip)
	if err != nil {
		return err
	}

	op := isa.Opcode(opWord)
	if !isa.Valid(op) {
		return &MachineCheckError{Cause: CheckIllegalInst}
	}

	if isa.Privileged(op) && m.Flag.UserMode() {
		switch op {
		case isa.INP:
			// INP checks its feature flag before mode, below.
		default:
			return &MachineCheckError{Cause: CheckProtInst}
		}
	}

	switch op {
	case isa.NOP:

	case isa.ADD:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if err := m.Push(lhs + rhs); err != nil {
			return err
		}

	case isa.SUB:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if err := m.Push(lhs - rhs); err != nil {
			return err
		}

	case isa.MUL:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if err := m.Push(lhs * rhs); err != nil {
			return err
		}

	case isa.DIV:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if rhs == 0 {
			m.latchCheck(CheckDivideZero)
		} else if err := m.Push(lhs / rhs); err != nil {
			return err
		}

	case isa.MOD:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if rhs == 0 {
			m.latchCheck(CheckDivideZero)
		} else if err := m.Push(euclidMod(lhs, rhs)); err != nil {
			return err
		}

	case isa.EQ:
		if err := m.pushCompare(func(l, r int32) bool { return l == r }); err != nil {
			return err
		}
	case isa.NE:
		if err := m.pushCompare(func(l, r int32) bool { return l != r }); err != nil {
			return err
		}
	case isa.GT:
		if err := m.pushCompare(func(l, r int32) bool { return l > r }); err != nil {
			return err
		}
	case isa.LT:
		if err := m.pushCompare(func(l, r int32) bool { return l < r }); err != nil {
			return err
		}
	case isa.GE:
		if err := m.pushCompare(func(l, r int32) bool { return l >= r }); err != nil {
			return err
		}
	case isa.LE:
		if err := m.pushCompare(func(l, r int32) bool { return l <= r }); err != nil {
			return err
		}
	case isa.AND:
		if err := m.pushCompare(func(l, r int32) bool { return l != 0 && r != 0 }); err != nil {
			return err
		}
	case isa.OR:
		if err := m.pushCompare(func(l, r int32) bool { return l != 0 || r != 0 }); err != nil {
			return err
		}

	case isa.NOT:
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.Push(boolWord(v == 0)); err != nil {
			return err
		}

	case isa.SWAP:
		a, err := m.Pop()
		if err != nil {
			return err
		}
		b, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.Push(a); err != nil {
			return err
		}
		if err := m.Push(b); err != nil {
			return err
		}

	case isa.DUP:
		v, err := m.LoadWord(m.Sp - 4)
		if err != nil {
			return err
		}
		if err := m.StoreWord(m.Sp, v); err != nil {
			return err
		}
		m.Sp += 4

	case isa.HALT:
		m.Flag.setStatus(StatusHalted)
		return nil

	case isa.POP:
		m.Sp -= 4

	case isa.RET:
		fpMinus8, err := m.LoadWord(m.Fp - 8)
		if err != nil {
			return err
		}
		fpMinus4, err := m.LoadWord(m.Fp - 4)
		if err != nil {
			return err
		}
		m.Sp = m.Fp - 8
		m.Ip = fpMinus8
		m.Fp = fpMinus4
		return nil

	case isa.RETV:
		result, err := m.LoadWord(m.Sp - 4)
		if err != nil {
			return err
		}
		fpMinus8, err := m.LoadWord(m.Fp - 8)
		if err != nil {
			return err
		}
		fpMinus4, err := m.LoadWord(m.Fp - 4)
		if err != nil {
			return err
		}
		m.Sp = m.Fp - 4
		m.Ip = fpMinus8
		m.Fp = fpMinus4
		if err := m.StoreWord(m.Sp-4, result); err != nil {
			return err
		}
		return nil

	case isa.NEG:
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.Push(-v); err != nil {
			return err
		}

	case isa.PUSHCVARIND:
		offset, err := m.Pop()
		if err != nil {
			return err
		}
		v, err := m.LoadByte(offset)
		if err != nil {
			return err
		}
		if err := m.Push(int32(v)); err != nil {
			return err
		}

	case isa.OUTS:
		offset, err := m.Pop()
		if err != nil {
			return err
		}
		s, err := m.readCString(offset)
		if err != nil {
			return err
		}
		m.print(s)

	case isa.INP:
		if m.Features&objfmt.FeatureINP == 0 {
			return &MachineCheckError{Cause: CheckIllegalInst}
		}
		if m.Flag.UserMode() {
			return &MachineCheckError{Cause: CheckProtInst}
		}
		offset, err := m.Pop()
		if err != nil {
			return err
		}
		reqOp, err := m.LoadWord(offset)
		if err != nil {
			return err
		}
		p1, err := m.LoadWord(offset + 4)
		if err != nil {
			return err
		}
		p2, err := m.LoadWord(offset + 8)
		if err != nil {
			return err
		}
		if m.InpChan != nil {
			m.InpChan <- InpRequest{Offset: offset, Op: reqOp, Param1: p1, Param2: p2, BP: m.Bp}
		}

	case isa.PUSHFP:
		if err := m.Push(m.Fp); err != nil {
			return err
		}

	case isa.JMPUSER:
		target, err := m.LoadWord(m.Ip + 4)
		if err != nil {
			return err
		}
		m.Ip = target
		m.Flag.setStatus(StatusUserMode)
		return nil

	case isa.TRAP:
		m.Ip += 4
		return m.Interrupt(true)

	case isa.RTI:
		return m.Rti()

	case isa.CALLI:
		target, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.Push(m.Ip + 4); err != nil {
			return err
		}
		if err := m.Push(m.Fp); err != nil {
			return err
		}
		m.Fp = m.Sp
		m.Ip = target
		return nil

	case isa.PUSHREG:
		m.Ip += 4
		regNum, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		v, err := m.GetRegister(isa.Register(regNum))
		if err != nil {
			return &MachineCheckError{Cause: CheckIllegalInst}
		}
		if err := m.Push(v); err != nil {
			return err
		}

	case isa.POPREG:
		m.Ip += 4
		regNum, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		if isa.Register(regNum) == isa.IP {
			v, err := m.Pop()
			if err != nil {
				return err
			}
			m.Ip = v
			return nil
		}
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.SetRegister(isa.Register(regNum), v); err != nil {
			return &MachineCheckError{Cause: CheckIllegalInst}
		}

	case isa.BAND:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if err := m.Push(lhs & rhs); err != nil {
			return err
		}
	case isa.BOR:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if err := m.Push(lhs | rhs); err != nil {
			return err
		}
	case isa.BXOR:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		if err := m.Push(lhs ^ rhs); err != nil {
			return err
		}

	case isa.SHL:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		shift := uint32(rhs) & 31
		if err := m.Push(lhs << shift); err != nil {
			return err
		}
	case isa.SHR:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		shift := uint32(rhs) & 31
		if err := m.Push(int32(uint32(lhs) >> shift)); err != nil {
			return err
		}

	case isa.PUSHVARIND:
		offset, err := m.Pop()
		if err != nil {
			return err
		}
		v, err := m.LoadWord(offset)
		if err != nil {
			return err
		}
		if err := m.Push(v); err != nil {
			return err
		}

	case isa.POPCVARIND:
		offset, err := m.Pop()
		if err != nil {
			return err
		}
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.StoreByte(offset, byte(v)); err != nil {
			return err
		}

	case isa.POPVARIND:
		offset, err := m.Pop()
		if err != nil {
			return err
		}
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.StoreWord(offset, v); err != nil {
			return err
		}

	case isa.COMP:
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.Push(^v); err != nil {
			return err
		}

	case isa.PUSH:
		m.Ip += 4
		v, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		if err := m.Push(v); err != nil {
			return err
		}

	case isa.JMP:
		m.Ip += 4
		target, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		m.Ip = target
		return nil

	case isa.JZ:
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if v == 0 {
			m.Ip += 4
			target, err := m.LoadWord(m.Ip)
			if err != nil {
				return err
			}
			m.Ip = target
		} else {
			m.Ip += 8
		}
		return nil

	case isa.PUSHVAR:
		m.Ip += 4
		offset, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		v, err := m.LoadWord(m.Fp + offset)
		if err != nil {
			return err
		}
		if err := m.Push(v); err != nil {
			return err
		}

	case isa.POPVAR:
		m.Ip += 4
		offset, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.StoreWord(m.Fp+offset, v); err != nil {
			return err
		}

	case isa.ADJSP:
		m.Ip += 4
		delta, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		m.Sp += delta

	case isa.POPARGS:
		top, err := m.Pop()
		if err != nil {
			return err
		}
		m.Ip += 4
		delta, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		m.Sp -= delta
		if err := m.Push(top); err != nil {
			return err
		}

	case isa.CALL:
		target, err := m.LoadWord(m.Ip + 4)
		if err != nil {
			return err
		}
		if err := m.Push(m.Ip + 8); err != nil {
			return err
		}
		if err := m.Push(m.Fp); err != nil {
			return err
		}
		m.Fp = m.Sp
		m.Ip = target
		return nil

	case isa.PUSHCVAR:
		m.Ip += 4
		offset, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		v, err := m.LoadByte(m.Fp + offset)
		if err != nil {
			return err
		}
		if err := m.Push(int32(v)); err != nil {
			return err
		}

	case isa.POPCVAR:
		m.Ip += 4
		offset, err := m.LoadWord(m.Ip)
		if err != nil {
			return err
		}
		v, err := m.Pop()
		if err != nil {
			return err
		}
		if err := m.StoreByte(m.Fp+offset, byte(v)); err != nil {
			return err
		}

	case isa.SETTRACE:
		m.setTrace(true)
	case isa.CLRTRACE:
		m.setTrace(false)

	case isa.CLRINTDIS:
		if err := m.Push(boolWord(m.Flag.IntDisabled())); err != nil {
			return err
		}
		m.Flag.clearStatus(StatusIntDis)

	case isa.SETINTDIS:
		if err := m.Push(boolWord(m.Flag.IntDisabled())); err != nil {
			return err
		}
		m.Flag.setStatus(StatusIntDis)

	case isa.ROL:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		shift := int(uint32(rhs) & 31)
		if err := m.Push(int32(bits.RotateLeft32(uint32(lhs), shift))); err != nil {
			return err
		}

	case isa.ROR:
		rhs, lhs, err := m.popPair()
		if err != nil {
			return err
		}
		shift := int(uint32(rhs) & 31)
		if err := m.Push(int32(bits.RotateLeft32(uint32(lhs), -shift))); err != nil {
			return err
		}

	default:
		return &MachineCheckError{Cause: CheckIllegalInst}
	}

	m.Ip += 4
	return nil
}

// popPair pops the two operands of a binary opcode, returning them as
// (rhs, lhs) to match the stack order every binary opcode handler
// expects: rhs was pushed last and is popped first.
func (m *Machine) popPair() (rhs, lhs int32, err error) {
	rhs, err = m.Pop()
	if err != nil {
		return 0, 0, err
	}
	lhs, err = m.Pop()
	if err != nil {
		return 0, 0, err
	}
	return rhs, lhs, nil
}

func (m *Machine) pushCompare(cmp func(lhs, rhs int32) bool) error {
	rhs, lhs, err := m.popPair()
	if err != nil {
		return err
	}
	return m.Push(boolWord(cmp(lhs, rhs)))
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// euclidMod returns the Euclidean remainder of lhs/rhs: always in
// [0, |rhs|). Callers must check rhs != 0 first.
func euclidMod(lhs, rhs int32) int32 {
	r := lhs % rhs
	if r < 0 {
		if rhs < 0 {
			r -= rhs
		} else {
			r += rhs
		}
	}
	return r
}
