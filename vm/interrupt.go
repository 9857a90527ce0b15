package vm

import "fmt"

// MachineCheckError is returned by an opcode handler when execution
// cannot continue normally: an illegal opcode, a misaligned or
// out-of-range memory reference, or a privileged instruction attempted
// in user mode. (DIV and MOD by zero do not return it; they latch the
// check with latchCheck instead.) Step turns this into an actual machine check — latching
// Cause into FLAG and taking the hardware interrupt — rather than
// letting it escape as a Go error.
type MachineCheckError struct {
	Cause uint8
}

func (e *MachineCheckError) Error() string {
	return fmt.Sprintf("machine check: %s", checkName(e.Cause))
}

// FatalError means a machine check (or trap) was raised with no handler
// installed: the vector table slot read back the boot sentinel -1. The
// Rust original treats this as unrecoverable and exits; Step returns it
// unwrapped so the caller (the supervisor's run loop) can stop cleanly.
type FatalError struct {
	Cause string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("vm: fatal %s with no handler installed", e.Cause)
}

// lowestPendingBit returns the lowest-numbered set bit of v (the
// highest-priority pending interrupt, by declaration order), or 0 if v
// is empty.
func lowestPendingBit(v uint16) uint16 {
	if v == 0 {
		return 0
	}
	return v & (^v + 1)
}

// Interrupt transfers control to the installed handler for a hardware
// interrupt (isTrap == false) or for TRAP (isTrap == true).
//
// It pushes SP, FLAG, BP, LP, IP and FP, in that order, using whatever
// addressing mode (user or system) was in effect when Interrupt was
// called. It then clears the highest-priority pending IntVec bit (for a
// hardware interrupt only — TRAP carries no IntVec bit of its own),
// enters system mode and interrupt mode, and — if the interrupted code
// was running in user mode — corrects FP and SP from BP-relative to
// absolute, since addressing is no longer BP-relocated once inside the
// handler. IP is finally set to the handler address read from the
// vector table at IVEC (vector slot 0 for a hardware interrupt, slot 1,
// TrapVector, for TRAP).
//
// A hardware interrupt call with nothing pending is a no-op, matching
// the top-of-step pending check that is the only caller of this path.
func (m *Machine) Interrupt(isTrap bool) error {
	wasUser := m.Flag.UserMode()
	cause := "interrupt"
	vecIdx := int32(0)

	if isTrap {
		vecIdx = TrapVector
		cause = "trap"
	} else {
		if m.Flag.IntVec == 0 {
			return nil
		}
		bit := lowestPendingBit(m.Flag.IntVec)
		m.Flag.IntVec &^= bit
		if bit == IntVecMachineCheck {
			if name := m.Flag.primaryCheckName(); name != "" {
				cause = name
			}
		}
	}

	if err := m.Push(m.Sp); err != nil {
		return err
	}
	if err := m.Push(int32(m.Flag.Pack())); err != nil {
		return err
	}
	if err := m.Push(m.Bp); err != nil {
		return err
	}
	if err := m.Push(m.Lp); err != nil {
		return err
	}
	if err := m.Push(m.Ip); err != nil {
		return err
	}
	if err := m.Push(m.Fp); err != nil {
		return err
	}

	if !isTrap {
		m.Fp = m.Sp
	}

	m.Flag.clearStatus(StatusUserMode)
	m.Flag.setStatus(StatusIntMode)

	if wasUser {
		m.Fp += m.Bp
		m.Sp += m.Bp
	}

	handler, err := m.loadAbsWord(m.Ivec + vecIdx*4)
	if err != nil {
		return err
	}
	if handler == -1 {
		return &FatalError{Cause: cause}
	}
	m.Ip = handler
	return nil
}

// Rti returns from an interrupt or trap handler, restoring FP, IP, LP,
// BP, FLAG and SP from the stack in the reverse order Interrupt pushed
// them. The pending IntVec bits accumulated since Interrupt was entered
// are preserved across the restore rather than reverted to whatever was
// pending at entry, so a second interrupt that arrived during the
// handler is not silently dropped.
func (m *Machine) Rti() error {
	if m.Flag.UserMode() {
		return &MachineCheckError{Cause: CheckProtInst}
	}
	pendingIntVec := m.Flag.IntVec

	fp, err := m.Pop()
	if err != nil {
		return err
	}
	ip, err := m.Pop()
	if err != nil {
		return err
	}
	lp, err := m.Pop()
	if err != nil {
		return err
	}
	bp, err := m.Pop()
	if err != nil {
		return err
	}
	flagWord, err := m.Pop()
	if err != nil {
		return err
	}
	sp, err := m.Pop()
	if err != nil {
		return err
	}

	m.Fp = fp
	m.Ip = ip
	m.Lp = lp
	m.Bp = bp
	m.Flag = Unpack(uint32(flagWord))
	m.Flag.IntVec = pendingIntVec
	m.Sp = sp
	return nil
}

// latchCheck marks cause as the latest machine check cause and the
// machine-check interrupt as pending, without taking the interrupt.
// Used for faults an opcode can detect and recover from in place (DIV
// and MOD by zero): execution continues to the next instruction, and
// the interrupt is taken at the start of the step after, the same way
// any other hardware interrupt would be.
func (m *Machine) latchCheck(cause uint8) {
	m.Flag.Check |= cause
	m.Flag.IntVec |= IntVecMachineCheck
}

// escalate latches cause and takes the machine-check interrupt
// immediately, without waiting for the next step. Step calls this when
// an opcode handler reports a MachineCheckError — an illegal opcode, a
// bad address, or a privileged instruction in user mode — none of which
// can be meaningfully continued past.
func (m *Machine) escalate(cause uint8) error {
	m.Flag.Check |= cause
	m.Flag.IntVec |= IntVecMachineCheck
	return m.Interrupt(false)
}
