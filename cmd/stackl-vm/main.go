// Command stackl-vm loads an assembled Stackl image and runs it,
// optionally attaching memory-mapped devices and dropping into an
// interactive debugger instead of free-running.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/netizen-a/stackl/config"
	"github.com/netizen-a/stackl/debugger"
	"github.com/netizen-a/stackl/device"
	"github.com/netizen-a/stackl/objfmt"
	"github.com/netizen-a/stackl/supervisor"
	"github.com/netizen-a/stackl/util/logger"
	"github.com/netizen-a/stackl/vm"
)

func main() {
	optTrace := getopt.BoolLong("trace", 't', "Enable instruction tracing")
	optMemory := getopt.IntLong("memory", 'm', 500000, "Memory size in bytes")
	optInp := getopt.BoolLong("inp", 'i', "Force-enable the INP device")
	optGenIO := getopt.BoolLong("gen-io", 'G', "Force-enable the GEN_IO device")
	_ = getopt.Float64Long("mhz", 'z', 0, "CPU clock rate (accepted for interface parity; unused)")
	optDebug := getopt.BoolLong("debug", 'g', "Drop into the interactive debugger")
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLog := getopt.StringLong("log", 'l', "", "Log file (default stderr)")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	logOut := os.Stderr
	if *optLog != "" {
		f, err := os.Create(*optLog)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stackl-vm: "+err.Error())
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	debug := *optDebug
	slog.SetDefault(slog.New(logger.NewHandler(logOut, nil, &debug)))

	args := getopt.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: stackl-vm [flags] <image.stackl>")
		os.Exit(1)
	}
	imagePath := args[0]

	cfg, err := config.Load(*optConfig)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	content, err := os.ReadFile(imagePath)
	if err != nil {
		slog.Error("reading image", "path", imagePath, "error", err)
		os.Exit(1)
	}
	img, err := objfmt.Decode(content)
	if err != nil {
		slog.Error("decoding image", "path", imagePath, "error", err)
		os.Exit(1)
	}

	memSize := cfg.Memory.Size
	if *optMemory != 500000 {
		memSize = *optMemory
	}
	m := vm.NewMachine(memSize)
	if err := m.LoadProgram(img); err != nil {
		slog.Error("loading program", "error", err)
		os.Exit(1)
	}
	m.Trace = *optTrace || cfg.Trace.Enabled
	m.TraceOut = os.Stdout
	m.Stdout = os.Stdout

	inpEnabled := *optInp || cfg.Features.Inp || objfmt.HasFeature(img.Flags, objfmt.FeatureINP)
	if inpEnabled {
		m.Features |= objfmt.FeatureINP
	}
	genIOEnabled := *optGenIO || cfg.Features.GenIO || objfmt.HasFeature(img.Flags, objfmt.FeatureGenIO)
	diskEnabled := cfg.Features.Disk || objfmt.HasFeature(img.Flags, objfmt.FeatureDisk)
	if diskEnabled && cfg.Disk.Image != "" {
		if _, err := os.Stat(cfg.Disk.Image); err != nil {
			slog.Error("disk image", "path", cfg.Disk.Image, "error", err)
			os.Exit(1)
		}
	}

	sup := supervisor.New(m, nil)
	devices, requests := buildDevices(sup.Mu, m, img, cfg, inpEnabled, genIOEnabled)
	sup.Attach(devices...)
	if requests != nil {
		m.InpChan = requests
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	sup.Start(ctx)
	defer sup.Stop()

	if *optDebug {
		session := debugger.NewSession(sup)
		if err := session.Run(); err != nil {
			slog.Error("debugger session", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := sup.Run(); err != nil {
		slog.Error("machine check", "error", err, "ip", m.Ip)
		if fatal, ok := err.(*vm.FatalError); ok {
			fmt.Fprintf(os.Stderr, "%s at %d\n", fatal.Cause, m.Ip)
		} else {
			fmt.Fprintf(os.Stderr, "%s at %d\n", err, m.Ip)
		}
		os.Exit(1)
	}
}

// buildDevices attaches one goroutine per enabled feature: GEN_IO and
// INP are fully implemented; PIO_TERM, DMA_TERM and DISK are attached
// as stubs that fail any operation requested of them, since the VM
// they were distilled from never finished them either. Every device's
// poll cadence comes from cfg.Devices.PollInterval.
func buildDevices(mu *sync.RWMutex, m *vm.Machine, img *objfmt.Image, cfg *config.Config, inpEnabled, genIOEnabled bool) ([]device.Device, chan vm.InpRequest) {
	var devices []device.Device
	var requests chan vm.InpRequest
	poll := cfg.Devices.PollInterval

	if genIOEnabled {
		devices = append(devices, device.NewGenIO(mu, m, poll))
	}
	if inpEnabled {
		requests = make(chan vm.InpRequest)
		devices = append(devices, device.NewInp(mu, m, requests))
	}
	if cfg.Features.PioTerm || objfmt.HasFeature(img.Flags, objfmt.FeaturePioTerm) {
		devices = append(devices, device.NewStub(mu, m, "pio_term", vm.PioTermBase, poll))
	}
	if cfg.Features.DmaTerm || objfmt.HasFeature(img.Flags, objfmt.FeatureDMATerm) {
		devices = append(devices, device.NewStub(mu, m, "dma_term", vm.TimerBase, poll))
	}
	if cfg.Features.Disk || objfmt.HasFeature(img.Flags, objfmt.FeatureDisk) {
		devices = append(devices, device.NewStub(mu, m, "disk", vm.DiskBase, poll))
	}

	return devices, requests
}
