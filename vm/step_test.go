package vm_test

import (
	"testing"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/vm"
)

func TestPrivilegedOpcodeInUserModeFaultsBeforeSideEffect(t *testing.T) {
	m := vm.NewMachine(4096)
	m.Mem.WriteWord(0, -1) // no installed hardware-interrupt handler: fatal
	m.Mem.WriteWord(8, int32(isa.HALT))
	m.Ip = 8
	m.Flag.Status |= vm.StatusUserMode

	err := m.Step()
	if _, ok := err.(*vm.FatalError); !ok {
		t.Fatalf("err = %T (%v), want *vm.FatalError", err, err)
	}
	if m.Flag.Status&vm.StatusHalted != 0 {
		t.Fatal("HALT must not take effect before the PROT_INST fault is raised")
	}
}

func TestDivideByZeroWithoutHandlerIsFatal(t *testing.T) {
	m := vm.NewMachine(4096)
	m.Mem.WriteWord(0, -1) // sentinel: no hardware-interrupt handler installed
	m.Mem.WriteWord(4, -1)
	program := []int32{-1, -1, int32(isa.PUSH), 10, int32(isa.PUSH), 0, int32(isa.DIV), int32(isa.HALT)}
	for i, w := range program {
		m.Mem.WriteWord(uint32(i*4), w)
	}
	m.Ip = 8
	m.Sp, m.Fp = 1000, 1000

	// PUSH 10
	if err := m.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	// PUSH 0
	if err := m.Step(); err != nil {
		t.Fatalf("step 2: %v", err)
	}
	// DIV: latches DIVIDE_ZERO and leaves it pending rather than faulting
	// immediately.
	if err := m.Step(); err != nil {
		t.Fatalf("step 3 (DIV): %v", err)
	}
	if m.Flag.Check&vm.CheckDivideZero == 0 {
		t.Fatal("expected DIVIDE_ZERO to be latched after DIV by zero")
	}
	if !m.Flag.PendingInterrupt() {
		t.Fatal("expected the machine-check interrupt to be pending after DIV by zero")
	}

	// The interrupt is taken at the start of the next step; with IVEC == 0
	// and vector[0] == -1, it is fatal.
	err := m.Step()
	if _, ok := err.(*vm.FatalError); !ok {
		t.Fatalf("err = %T (%v), want *vm.FatalError", err, err)
	}
	if m.Ivec != 0 {
		t.Fatalf("IVEC = %d, want 0", m.Ivec)
	}
}

// TestTrapRoundTripIncrementsCounter drives five TRAP/handler/RTI cycles
// through Step and checks the handler's side effect landed each time.
func TestTrapRoundTripIncrementsCounter(t *testing.T) {
	const counterAddr = 100
	const handlerBase = 200

	m := vm.NewMachine(4096)
	m.Mem.WriteWord(0, -1)                      // hardware vector, unused here
	m.Mem.WriteWord(uint32(vm.TrapVector*4), handlerBase)
	m.Mem.WriteWord(counterAddr, 0)

	handler := []int32{
		int32(isa.PUSH), counterAddr,
		int32(isa.PUSHVARIND),
		int32(isa.PUSH), 1,
		int32(isa.ADD),
		int32(isa.PUSH), counterAddr,
		int32(isa.POPVARIND),
		int32(isa.RTI),
	}
	for i, w := range handler {
		m.Mem.WriteWord(uint32(handlerBase+i*4), w)
	}

	mainProgram := []int32{
		int32(isa.TRAP),
		int32(isa.TRAP),
		int32(isa.TRAP),
		int32(isa.TRAP),
		int32(isa.TRAP),
		int32(isa.HALT),
	}
	for i, w := range mainProgram {
		m.Mem.WriteWord(uint32(8+i*4), w)
	}
	m.Ip = 8
	m.Sp, m.Fp = 2000, 2000

	for i := 0; i < 200 && !m.Flag.Halted(); i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !m.Flag.Halted() {
		t.Fatal("machine never halted")
	}

	counter, err := m.Mem.ReadWord(counterAddr)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if counter != 5 {
		t.Fatalf("counter = %d, want 5", counter)
	}
	if m.Sp != 2000 || m.Fp != 2000 {
		t.Fatalf("SP/FP = %d/%d, want 2000/2000 (every TRAP/RTI pair should leave them unchanged)", m.Sp, m.Fp)
	}
}
