package device

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/netizen-a/stackl/objfmt"
	"github.com/netizen-a/stackl/vm"
)

// INP operation codes, matching the ones the INP opcode places in a
// request's Op field.
const (
	inpPrints = int32(3)
	inpGets   = int32(5)
	inpGetl   = int32(6)
	inpGeti   = int32(7)
	inpExec   = int32(8)
)

var (
	inpStatusOK   = int32(-0x80000000) // bit 31; 0x80000000 overflows int32
	inpStatusFail = inpStatusOK | int32(0x40000000)
)

// Inp implements the INP device: unlike GEN_IO it is not polled, it
// blocks on a channel of requests the INP opcode submits directly.
// Every request's addresses are already absolute by the time they reach
// here — the opcode resolves them against the CPU's current mode before
// handing the request off, so the device never needs to BP-relocate.
type Inp struct {
	Mu  *sync.RWMutex
	M   *vm.Machine
	In  *bufio.Reader
	Out *os.File

	Requests <-chan vm.InpRequest
}

// NewInp builds an INP device reading from stdin and writing to stdout.
func NewInp(mu *sync.RWMutex, m *vm.Machine, requests <-chan vm.InpRequest) *Inp {
	return &Inp{
		Mu:       mu,
		M:        m,
		In:       bufio.NewReader(os.Stdin),
		Out:      os.Stdout,
		Requests: requests,
	}
}

func (d *Inp) Name() string { return "inp" }

func (d *Inp) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-d.Requests:
			if !ok {
				return
			}
			d.handle(req)
		}
	}
}

func (d *Inp) handle(req vm.InpRequest) {
	err := d.process(req)

	d.Mu.Lock()
	defer d.Mu.Unlock()
	status := inpStatusOK
	if err != nil {
		status = inpStatusFail
	}
	d.M.Mem.WriteWord(uint32(req.Offset), status)
}

func (d *Inp) process(req vm.InpRequest) error {
	switch req.Op {
	case inpPrints:
		d.Mu.RLock()
		s, err := d.M.ReadCStringAbs(req.Param1)
		d.Mu.RUnlock()
		if err != nil {
			return err
		}
		_, err = d.Out.WriteString(s)
		return err

	case inpGets:
		line, err := d.In.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		d.Mu.Lock()
		defer d.Mu.Unlock()
		return d.M.Mem.WriteBytes(uint32(req.Param1), []byte(line))

	case inpGetl:
		line, err := d.In.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) > 255 {
			line = line[:255]
		}
		buf := append([]byte(line), 0)
		d.Mu.Lock()
		defer d.Mu.Unlock()
		return d.M.Mem.WriteBytes(uint32(req.Param1), buf)

	case inpGeti:
		line, err := d.In.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return fmt.Errorf("inp: GETI expected an integer: %w", err)
		}
		d.Mu.Lock()
		defer d.Mu.Unlock()
		return d.M.Mem.WriteWord(uint32(req.Param1), int32(n))

	case inpExec:
		return d.doExec(req)

	default:
		return fmt.Errorf("inp: unrecognized operation %d", req.Op)
	}
}

// doExec loads a new program over the running one at the same base the
// caller is already using, without resetting the stack or frame
// pointers, and reports where the new program's free memory begins.
func (d *Inp) doExec(req vm.InpRequest) error {
	d.Mu.RLock()
	path, err := d.M.ReadCStringAbs(req.Param1)
	d.Mu.RUnlock()
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

	d.Mu.Lock()
	defer d.Mu.Unlock()
	highMem := int32(len(img.Text)) + req.BP
	if err := d.M.Mem.WriteWord(uint32(req.Offset+8), highMem); err != nil {
		return err
	}
	return d.M.LoadNested(img, req.BP)
}
