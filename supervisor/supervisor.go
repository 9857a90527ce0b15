// Package supervisor owns a running Machine and the device goroutines
// that execute concurrently with it: a shared lock guarding the machine,
// a context canceled to signal every device goroutine at once, and a
// bounded-wait Stop so a wedged device can never hang the process on
// shutdown.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netizen-a/stackl/device"
	"github.com/netizen-a/stackl/vm"
)

// Supervisor runs one Machine's fetch/execute loop and the device
// goroutines attached to it. Mu guards every access to M from either
// side; the stepping loop and the device goroutines are the only two
// classes of caller that touch M concurrently.
type Supervisor struct {
	Mu *sync.RWMutex
	M  *vm.Machine

	devices []device.Device
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Supervisor over m with the given attached devices. An
// empty devices slice is valid — a program that declares no feature
// flags runs with no device goroutines at all.
func New(m *vm.Machine, devices []device.Device) *Supervisor {
	return &Supervisor{
		Mu:      &sync.RWMutex{},
		M:       m,
		devices: devices,
	}
}

// Attach adds devices to the set Start will launch a goroutine for.
// Call it before Start; attaching after Start has no effect on the
// already-running set.
func (s *Supervisor) Attach(devices ...device.Device) {
	s.devices = append(s.devices, devices...)
}

// Start launches one goroutine per attached device, each running until
// ctx is canceled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, d := range s.devices {
		d := d
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			d.Run(ctx)
		}()
	}
}

// Stop signals every device goroutine to exit and waits up to one
// second for them to do so, logging and returning rather than blocking
// forever if a device goroutine is wedged.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for devices to shut down")
	}
}

// Run steps the CPU until it halts or a fatal error occurs. It holds Mu
// only for the duration of a single Step call, so device goroutines get
// a fair chance to observe and mutate machine state between steps.
func (s *Supervisor) Run() error {
	for {
		s.Mu.Lock()
		halted := s.M.Flag.Halted()
		var err error
		if !halted {
			err = s.M.Step()
		}
		s.Mu.Unlock()

		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}
