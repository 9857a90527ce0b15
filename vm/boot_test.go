package vm_test

import (
	"testing"

	"github.com/netizen-a/stackl/vm"
)

func TestLoadProgramBootInvariants(t *testing.T) {
	m := vm.NewMachine(4096)
	img := haltImage()
	if err := m.LoadProgram(img); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}

	if m.Sp != m.Fp {
		t.Fatalf("SP (%d) != FP (%d) at boot", m.Sp, m.Fp)
	}
	if m.Sp%4 != 0 {
		t.Fatalf("SP %d is not a multiple of 4", m.Sp)
	}
	textLen := int32(len(img.Text))
	if m.Sp <= textLen {
		t.Fatalf("SP %d does not lie past the end of the text segment (%d)", m.Sp, textLen)
	}
	if m.Flag.UserMode() {
		t.Fatal("machine should boot in system mode")
	}
	if m.Bp != 0 || m.Ivec != 0 {
		t.Fatalf("expected BP and IVEC both zero at boot, got BP=%d IVEC=%d", m.Bp, m.Ivec)
	}
	if m.Ip != 8 {
		t.Fatalf("IP = %d, want 8 (past the two header words)", m.Ip)
	}
}

func TestLoadProgramRejectsOversizedStack(t *testing.T) {
	m := vm.NewMachine(32)
	img := haltImage()
	img.StackSize = 1 << 20
	if err := m.LoadProgram(img); err == nil {
		t.Fatal("expected an error when the declared stack does not fit in RAM")
	}
}

func TestLoadNestedPreservesRunningState(t *testing.T) {
	m := vm.NewMachine(4096)
	if err := m.LoadProgram(haltImage()); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	m.Sp = 500
	m.Fp = 500
	m.Ivec = 123
	m.Flag.Status |= vm.StatusIntDis

	if err := m.LoadNested(haltImage(), 0); err != nil {
		t.Fatalf("LoadNested: %v", err)
	}
	if m.Sp != 500 || m.Fp != 500 || m.Ivec != 123 {
		t.Fatalf("LoadNested must not reset SP/FP/IVEC, got SP=%d FP=%d IVEC=%d", m.Sp, m.Fp, m.Ivec)
	}
	if !m.Flag.IntDisabled() {
		t.Fatal("LoadNested must not reset FLAG")
	}
}
