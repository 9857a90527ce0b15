package debugger

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
	text = append(text, word(-1)...)
	text = append(text, word(-1)...)
	text = append(text, word(int32(isa.HALT))...)
	text = append(text, word(0)...)
	return &objfmt.Image{StackSize: 64, Text: text}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	m := vm.NewMachine(4096)
	if err := m.LoadProgram(haltProgram()); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	sup := supervisor.New(m, nil)
	return NewSession(sup)
}

func TestMatchCommandPrefix(t *testing.T) {
	if matchCommand("c") == nil || matchCommand("c").name != "continue" {
		t.Fatal("expected \"c\" to match continue")
	}
	if matchCommand("q").name != "quit" {
		t.Fatal("expected \"q\" to match quit")
	}
	if matchCommand("bogus") != nil {
		t.Fatal("expected no match for unknown command")
	}
}

func TestCmdStepExecutesHaltWithoutAdvancingIP(t *testing.T) {
	s := newTestSession(t)
	startIP := s.Sup.M.Ip
	if err := s.cmdStep(nil); err != nil {
		t.Fatalf("cmdStep: %v", err)
	}
	if !s.Sup.M.Flag.Halted() {
		t.Fatal("expected HALT to set the halted status bit")
	}
	if s.Sup.M.Ip != startIP {
		t.Fatalf("HALT should not advance IP, got %d want %d", s.Sup.M.Ip, startIP)
	}
}

func TestCmdBreakToggles(t *testing.T) {
	s := newTestSession(t)
	if err := s.cmdBreak([]string{"8"}); err != nil {
		t.Fatalf("cmdBreak set: %v", err)
	}
	if !s.breakpoints[8] {
		t.Fatal("expected breakpoint set at 8")
	}
	if err := s.cmdBreak([]string{"8"}); err != nil {
		t.Fatalf("cmdBreak clear: %v", err)
	}
	if s.breakpoints[8] {
		t.Fatal("expected breakpoint cleared at 8")
	}
}

func TestCmdTraceRequiresOnOrOff(t *testing.T) {
	s := newTestSession(t)
	if err := s.cmdTrace([]string{"maybe"}); err == nil {
		t.Fatal("expected an error for an invalid trace argument")
	}
	if err := s.cmdTrace([]string{"on"}); err != nil {
		t.Fatalf("cmdTrace on: %v", err)
	}
	if !s.Sup.M.Trace {
		t.Fatal("expected trace to be enabled")
	}
}

func TestCmdQuitStopsTheLoop(t *testing.T) {
	s := newTestSession(t)
	if s.quit {
		t.Fatal("session should not start quit")
	}
	if err := s.cmdQuit(nil); err != nil {
		t.Fatalf("cmdQuit: %v", err)
	}
	if !s.quit {
		t.Fatal("expected cmdQuit to set quit")
	}
}
