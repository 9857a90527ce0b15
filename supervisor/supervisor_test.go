package supervisor_test

import (
	"encoding/binary"
	"testing"

	"github.com/netizen-a/stackl/isa"
	"github.com/netizen-a/stackl/objfmt"
	"github.com/netizen-a/stackl/supervisor"
	"github.com/netizen-a/stackl/vm"
)

func word(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func haltProgram() *objfmt.Image {
	var text []byte
	text = append(text, word(-1)...) // no interrupt handler installed
	text = append(text, word(-1)...) // no trap handler installed
	text = append(text, word(int32(isa.HALT))...)
	text = append(text, word(0)...) // pad to an 8-byte instruction slot
	return &objfmt.Image{StackSize: 64, Text: text}
}

func TestSupervisorRunHaltsWithNoDevices(t *testing.T) {
	m := vm.NewMachine(4096)
	if err := m.LoadProgram(haltProgram()); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}

	sup := supervisor.New(m, nil)
	if err := sup.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !m.Flag.Halted() {
		t.Fatal("expected machine to be halted after Run returns")
	}
}

func TestSupervisorStopWithoutStartIsNoop(t *testing.T) {
	m := vm.NewMachine(4096)
	sup := supervisor.New(m, nil)
	sup.Stop() // must not panic or block when Start was never called
}
