package device

import (
	"context"
	"sync"
	"time"

	"github.com/netizen-a/stackl/vm"
)

// Stub implements PIO_TERM, DMA_TERM and DISK, none of which the
// original VM ever finished: its own run_device for PIO_TERM is a bare
// todo!(). Rather than leave the feature bit silently unhandled, Stub
// polls its CSR exactly like GenIO does and immediately fails whatever
// operation it finds requested, so a program probing for the device
// gets a defined ERR response instead of hanging forever.
type Stub struct {
	Mu   *sync.RWMutex
	M    *vm.Machine
	base uint32
	name string
	Poll time.Duration
}

// NewStub builds a stub device for the 16-byte CSR window at base,
// polling at the given interval (100 microseconds if poll is zero).
func NewStub(mu *sync.RWMutex, m *vm.Machine, name string, base uint32, poll time.Duration) *Stub {
	if poll <= 0 {
		poll = 100 * time.Microsecond
	}
	return &Stub{
		Mu:   mu,
		M:    m,
		base: base,
		name: name,
		Poll: poll,
	}
}

func (s *Stub) Name() string { return s.name }

func (s *Stub) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Stub) tick() {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	csr, err := s.M.Mem.ReadWord(s.base)
	if err != nil {
		return
	}
	if csr&csrDoneBit != 0 || csr&0xFF == 0 {
		return
	}
	csr |= csrDoneBit | csrErrBit
	s.M.Mem.WriteWord(s.base, csr)
}
