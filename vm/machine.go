package vm

import (
	"fmt"
	"io"

	"github.com/netizen-a/stackl/isa"
)

// InpRequest is the work item the INP opcode hands off to the INP
// device goroutine. It is defined here, not in the device package,
// because the CPU (this package) is the producer; device consumes it
// without this package needing to import device in return.
type InpRequest struct {
	Offset int32
	Op     int32
	Param1 int32
	Param2 int32
	BP     int32
}

// Machine is one Stackl CPU: its register file, FLAG word, and the
// memory it executes against. A Machine is not safe for concurrent use;
// callers that share a Machine across goroutines (the supervisor package
// does, between the stepping loop and device goroutines) must guard it
// with their own lock.
type Machine struct {
	Bp, Lp, Ip, Sp, Fp, Ivec int32
	Flag                     Flag

	Mem *Memory

	// Trace, when true, makes Step write a disassembled line for every
	// instruction executed to TraceOut.
	Trace    bool
	TraceOut io.Writer

	// Stdout receives the text OUTS writes. Defaults to io.Discard's
	// behavior if left nil (OUTS becomes a no-op), so tests that don't
	// care about console output don't need to wire one up.
	Stdout io.Writer

	// InpChan receives InpRequest values produced by the INP opcode.
	// Nil means no INP device is attached; the opcode then still reads
	// the request block but submits nothing and raises no fault.
	InpChan chan<- InpRequest

	// Features mirrors the object header's feature flags (objfmt.Feature*)
	// as loaded by LoadProgram; stackl-vm also sets FeatureINP when the
	// INP device is force-enabled. INP checks FeatureINP here before it
	// will submit a request.
	Features uint32

	instCount int64
	traceRows int
}

// NewMachine allocates a Machine with memSize bytes of RAM. LP defaults
// to memSize (the limit pointer starts at the top of RAM); the caller
// must still load a program (LoadProgram) before Step can run.
func NewMachine(memSize int) *Machine {
	return &Machine{Mem: NewMemory(memSize), Lp: int32(memSize), Ip: headerWords}
}

// GetRegister reads one of the seven architectural registers by index.
func (m *Machine) GetRegister(r isa.Register) (int32, error) {
	switch r {
	case isa.BP:
		return m.Bp, nil
	case isa.LP:
		return m.Lp, nil
	case isa.IP:
		return m.Ip, nil
	case isa.SP:
		return m.Sp, nil
	case isa.FP:
		return m.Fp, nil
	case isa.FLAG:
		return int32(m.Flag.Pack()), nil
	case isa.IVEC:
		return m.Ivec, nil
	default:
		return 0, fmt.Errorf("vm: invalid register %d", r)
	}
}

// SetRegister writes one of the seven architectural registers by index.
func (m *Machine) SetRegister(r isa.Register, v int32) error {
	switch r {
	case isa.BP:
		m.Bp = v
	case isa.LP:
		m.Lp = v
	case isa.IP:
		m.Ip = v
	case isa.SP:
		m.Sp = v
	case isa.FP:
		m.Fp = v
	case isa.FLAG:
		m.Flag = Unpack(uint32(v))
	case isa.IVEC:
		m.Ivec = v
	default:
		return fmt.Errorf("vm: invalid register %d", r)
	}
	return nil
}

// relocate translates a user-space offset into the address it actually
// refers to. In system mode offsets are already absolute; in user mode
// every address a program computes — including SP, FP-relative locals,
// and pointer values it pushes for the IND opcodes — is implicitly
// relative to BP. Relocation only adds BP: the result is not checked
// against LP, so a negative or large offset still reaches memory
// outside [BP, BP+LP).
func (m *Machine) relocate(offset int32) int32 {
	if m.Flag.UserMode() {
		return offset + m.Bp
	}
	return offset
}

func addrIndex(addr int32) (uint32, error) {
	if addr < 0 {
		return 0, &MachineCheckError{Cause: CheckIllegalAddr}
	}
	return uint32(addr), nil
}

// loadAbsWord reads a word at an already-absolute, 4-byte-aligned
// address, as used for opcode/operand fetch and vector table lookups.
func (m *Machine) loadAbsWord(addr int32) (int32, error) {
	if addr%4 != 0 {
		return 0, &MachineCheckError{Cause: CheckIllegalAddr}
	}
	idx, err := addrIndex(addr)
	if err != nil {
		return 0, err
	}
	v, err := m.Mem.ReadWord(idx)
	if err != nil {
		return 0, &MachineCheckError{Cause: CheckIllegalAddr}
	}
	return v, nil
}

// storeAbsWord writes a word at an already-absolute, 4-byte-aligned
// address.
func (m *Machine) storeAbsWord(addr int32, v int32) error {
	if addr%4 != 0 {
		return &MachineCheckError{Cause: CheckIllegalAddr}
	}
	idx, err := addrIndex(addr)
	if err != nil {
		return err
	}
	if err := m.Mem.WriteWord(idx, v); err != nil {
		return &MachineCheckError{Cause: CheckIllegalAddr}
	}
	return nil
}

// LoadWord reads a word at offset, applying user-mode BP relocation.
// This is the path every PUSHVAR/POPVAR/PUSHVARIND/POPVARIND/CALL/RET
// style access and every stack push/pop goes through.
func (m *Machine) LoadWord(offset int32) (int32, error) {
	return m.loadAbsWord(m.relocate(offset))
}

// StoreWord writes a word at offset, applying user-mode BP relocation.
func (m *Machine) StoreWord(offset int32, v int32) error {
	return m.storeAbsWord(m.relocate(offset), v)
}

// LoadByte reads a single byte at offset, applying user-mode BP
// relocation. Byte accesses are not alignment-checked.
func (m *Machine) LoadByte(offset int32) (byte, error) {
	idx, err := addrIndex(m.relocate(offset))
	if err != nil {
		return 0, err
	}
	b, err := m.Mem.ReadByte(idx)
	if err != nil {
		return 0, &MachineCheckError{Cause: CheckIllegalAddr}
	}
	return b, nil
}

// StoreByte writes a single byte at offset, applying user-mode BP
// relocation.
func (m *Machine) StoreByte(offset int32, v byte) error {
	idx, err := addrIndex(m.relocate(offset))
	if err != nil {
		return err
	}
	if err := m.Mem.WriteByte(idx, v); err != nil {
		return &MachineCheckError{Cause: CheckIllegalAddr}
	}
	return nil
}

// Push pushes a word onto the stack at SP and advances SP by 4.
func (m *Machine) Push(v int32) error {
	if err := m.StoreWord(m.Sp, v); err != nil {
		return err
	}
	m.Sp += 4
	return nil
}

// Pop pops a word from the stack, retreating SP by 4.
func (m *Machine) Pop() (int32, error) {
	m.Sp -= 4
	return m.LoadWord(m.Sp)
}

// InstCount reports the number of instructions Step has executed so far.
func (m *Machine) InstCount() int64 { return m.instCount }
