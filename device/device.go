// Package device implements the VM's memory-mapped and message-passing
// peripherals: GEN_IO and INP (fully implemented), and stub PIO_TERM,
// DMA_TERM and DISK devices that report failure for any operation
// requested of them.
package device

import "context"

// Device is one peripheral's goroutine body. Run blocks until ctx is
// canceled; the supervisor starts one goroutine per enabled feature
// flag and cancels ctx to shut them all down together.
type Device interface {
	Name() string
	Run(ctx context.Context)
}
