package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/objfmt"
	"github.com/netizen-a/stackl/vm"
)

// TestHelloTenTimes builds a tiny program directly out of opcode words
// (no assembler involved) that loops ten times, printing a line and
// incrementing a counter each pass, then halts once the counter reaches
// ten. It exercises OUTS, the comparison/branch opcodes, and PUSHVARIND/
// POPVARIND-based memory access end to end.
func TestHelloTenTimes(t *testing.T) {
	const counterAddr = 3000
	const strAddr = 3100

	program := []int32{
		-1, -1, // header: hw vector, trap vector (unused)
		// loop (IP == 8):
		int32(isa.PUSH), counterAddr, // 8, 12
		int32(isa.PUSHVARIND),        // 16
		int32(isa.PUSH), 10,          // 20, 24
		int32(isa.EQ),                // 28
		int32(isa.JZ), 44,            // 32, 36 -> continue at 44
		int32(isa.HALT),              // 40
		// continue (IP == 44):
		int32(isa.PUSH), strAddr, // 44, 48
		int32(isa.OUTS),          // 52
		int32(isa.PUSH), counterAddr, // 56, 60
		int32(isa.PUSHVARIND),        // 64
		int32(isa.PUSH), 1,           // 68, 72
		int32(isa.ADD),               // 76
		int32(isa.PUSH), counterAddr, // 80, 84
		int32(isa.POPVARIND),         // 88
		int32(isa.JMP), 8,            // 92, 96 -> back to loop
	}

	img := &objfmt.Image{Text: wordsToBytes(program), StackSize: 1000}

	m := vm.NewMachine(8192)
	if err := m.LoadProgram(img); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := m.Mem.WriteBytes(strAddr, []byte("hi\n\x00")); err != nil {
		t.Fatalf("writing message: %v", err)
	}
	if err := m.Mem.WriteWord(counterAddr, 0); err != nil {
		t.Fatalf("writing counter: %v", err)
	}

	var out bytes.Buffer
	m.Stdout = &out

	for i := 0; i < 10000 && !m.Flag.Halted(); i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !m.Flag.Halted() {
		t.Fatal("machine never halted")
	}

	if got := strings.Count(out.String(), "hi\n"); got != 10 {
		t.Fatalf("printed %q %d times, want 10", "hi\n", got)
	}

	counter, err := m.Mem.ReadWord(counterAddr)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if counter != 10 {
		t.Fatalf("counter = %d, want 10", counter)
	}
}
