package device

import (
	"bufio"
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/netizen-a/stackl/vm"
)

func newGenIOForTest(in string) (*GenIO, *bytes.Buffer) {
	m := vm.NewMachine(4096)
	var out bytes.Buffer
	g := &GenIO{
		Mu:  &sync.RWMutex{},
		M:   m,
		In:  bufio.NewReader(strings.NewReader(in)),
		Out: &out,
	}
	return g, &out
}

func TestGenIOPrints(t *testing.T) {
	g, out := newGenIOForTest("")
	msg := "hi\x00"
	const bufAddr = 64
	if err := g.M.Mem.WriteBytes(bufAddr, []byte(msg)); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	g.M.Mem.WriteWord(genIOBuff, bufAddr)
	g.M.Mem.WriteWord(genIOSize, int32(len(msg)))
	g.M.Mem.WriteWord(genIOCSR, genIOOpPrints)

	g.tick()

	if out.String() != "hi" {
		t.Fatalf("PRINTS wrote %q, want %q", out.String(), "hi")
	}
	csr, _ := g.M.Mem.ReadWord(genIOCSR)
	if csr&csrDoneBit == 0 {
		t.Fatal("expected DONE bit set after PRINTS")
	}
}

func TestGenIOUnrecognizedOpSetsErr(t *testing.T) {
	g, _ := newGenIOForTest("")
	g.M.Mem.WriteWord(genIOCSR, 0x7F)

	g.tick()

	csr, _ := g.M.Mem.ReadWord(genIOCSR)
	if csr&csrErrBit == 0 {
		t.Fatal("expected ERR bit set for an unrecognized operation")
	}
}

func TestGenIOSkipsAlreadyDoneOperation(t *testing.T) {
	g, out := newGenIOForTest("")
	g.M.Mem.WriteWord(genIOCSR, genIOOpPrints|csrDoneBit)

	g.tick()

	if out.Len() != 0 {
		t.Fatal("expected tick to skip an operation already marked DONE")
	}
}

func TestGenIOGetiParsesInteger(t *testing.T) {
	g, _ := newGenIOForTest("42\n")
	const dest = 128
	g.M.Mem.WriteWord(genIOBuff, dest)
	g.M.Mem.WriteWord(genIOCSR, genIOOpGeti)

	g.tick()

	v, err := g.M.Mem.ReadWord(dest)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if v != 42 {
		t.Fatalf("GETI wrote %d, want 42", v)
	}
}
