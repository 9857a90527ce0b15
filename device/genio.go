package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netizen-a/stackl/objfmt"
	"github.com/netizen-a/stackl/vm"
)

// GEN_IO's four registers, laid out the same way across its 16-byte
// window: control/status, buffer address, buffer size, result count.
const (
	genIOCSR   = vm.GenIOBase + 0x00
	genIOBuff  = vm.GenIOBase + 0x04
	genIOSize  = vm.GenIOBase + 0x08
	genIOCount = vm.GenIOBase + 0x0C
)

const (
	csrIE  = int32(0x00010000) // interrupt enable
	csrInt = int32(0x00020000) // interrupt occurred
)

// csrDoneBit and csrErrBit hold the top two status bits. DONE is
// written as its two's-complement value because 0x80000000 does not
// fit in a signed 32-bit constant.
var (
	csrDoneBit = int32(-0x80000000)
	csrErrBit  = int32(uint32(0x40000000))
)

const (
	genIOOpPrints = int32(1)
	genIOOpPrintc = int32(2)
	genIOOpGetl   = int32(3)
	genIOOpGeti   = int32(4)
	genIOOpExec   = int32(5)
)

// GenIO implements the GEN_IO device: a single in-flight operation at a
// time, polled rather than interrupt-driven unless the running program
// sets the interrupt-enable bit itself.
type GenIO struct {
	Mu   *sync.RWMutex
	M    *vm.Machine
	In   *bufio.Reader
	Out  io.Writer
	Poll time.Duration
}

// NewGenIO builds a GEN_IO device reading from stdin and writing to
// stdout, polling at the given interval — 100 microseconds matches the
// cadence the original implementation sleeps between poll iterations,
// but a configured interval always overrides it.
func NewGenIO(mu *sync.RWMutex, m *vm.Machine, poll time.Duration) *GenIO {
	if poll <= 0 {
		poll = 100 * time.Microsecond
	}
	return &GenIO{
		Mu:   mu,
		M:    m,
		In:   bufio.NewReader(os.Stdin),
		Out:  os.Stdout,
		Poll: poll,
	}
}

func (g *GenIO) Name() string { return "gen_io" }

func (g *GenIO) Run(ctx context.Context) {
	ticker := time.NewTicker(g.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *GenIO) tick() {
	g.Mu.RLock()
	csr, err := g.M.Mem.ReadWord(genIOCSR)
	if err != nil {
		g.Mu.RUnlock()
		return
	}
	if csr&csrDoneBit != 0 {
		g.Mu.RUnlock()
		return
	}
	addr, _ := g.M.Mem.ReadWord(genIOBuff)
	size, _ := g.M.Mem.ReadWord(genIOSize)
	g.Mu.RUnlock()

	var opErr error
	switch csr & 0xFF {
	case genIOOpPrints:
		opErr = g.doPrints(addr, size)
	case genIOOpPrintc:
		opErr = g.doPrintc(addr)
	case genIOOpGetl:
		opErr = g.doGetl(addr)
	case genIOOpGeti:
		opErr = g.doGeti(addr)
	case genIOOpExec:
		opErr = g.doExec(addr)
	default:
		opErr = fmt.Errorf("gen_io: unrecognized operation %d", csr&0xFF)
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()
	csr, _ = g.M.Mem.ReadWord(genIOCSR)
	if opErr != nil {
		csr |= csrErrBit
	} else {
		csr |= csrDoneBit
	}
	g.M.Mem.WriteWord(genIOCSR, csr)

	if csr&(csrIE|csrDoneBit) == (csrIE | csrDoneBit) {
		csr |= csrInt
		g.M.Mem.WriteWord(genIOCSR, csr)
		g.M.Flag.IntVec |= vm.IntVecGenIO
	}
}

func (g *GenIO) doPrints(addr, size int32) error {
	g.Mu.RLock()
	buf, err := g.M.Mem.ReadBytes(uint32(addr), uint32(size))
	g.Mu.RUnlock()
	if err != nil {
		return err
	}
	count := 0
	for _, b := range buf {
		if b == 0 {
			break
		}
		count++
	}
	_, err = g.Out.Write(buf[:count])
	if err != nil {
		return err
	}
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.M.Mem.WriteWord(genIOCount, int32(count))
}

func (g *GenIO) doPrintc(addr int32) error {
	g.Mu.RLock()
	b, err := g.M.Mem.ReadByte(uint32(addr))
	g.Mu.RUnlock()
	if err != nil {
		return err
	}
	_, err = g.Out.Write([]byte{b})
	return err
}

func (g *GenIO) doGetl(addr int32) error {
	line, err := g.In.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) > 255 {
		line = line[:255]
	}
	buf := append([]byte(line), 0)

	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.M.Mem.WriteBytes(uint32(addr), buf)
}

func (g *GenIO) doGeti(addr int32) error {
	line, err := g.In.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("gen_io: GETI expected an integer: %w", err)
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.M.Mem.WriteWord(uint32(addr), int32(n))
}

func (g *GenIO) doExec(addr int32) error {
	g.Mu.RLock()
	path, err := g.M.ReadCStringAbs(addr)
	g.Mu.RUnlock()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := objfmt.Decode(content)
	if err != nil {
		return err
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()
	if err := g.M.LoadNested(img, g.M.Bp); err != nil {
		return err
	}
	return g.M.Mem.WriteWord(genIOCount, int32(len(img.Text)))
}
