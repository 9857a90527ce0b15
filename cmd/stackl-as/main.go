// Command stackl-as assembles Stackl source into the object format the
// VM loads.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	getopt "github.com/pborman/getopt/v2"

	"github.com/netizen-a/stackl/asm"
	"github.com/netizen-a/stackl/objfmt"
	"github.com/netizen-a/stackl/util/logger"
)

func main() {
	optOutput := getopt.StringLong("output", 'o', "", "Output file (defaults to <input>.stackl)")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	debug := false
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, nil, &debug)))

	args := getopt.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: stackl-as [-o output] <input.asm>")
		os.Exit(1)
	}
	inputPath := args[0]

	src, err := os.ReadFile(inputPath)
	if err != nil {
		slog.Error("reading input", "path", inputPath, "error", err)
		os.Exit(1)
	}

	result, diags := asm.Assemble(string(src))
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s:%s\n", inputPath, d.String())
	}
	if asm.HasErrors(diags) {
		os.Exit(1)
	}

	outputPath := *optOutput
	if outputPath == "" {
		ext := filepath.Ext(inputPath)
		outputPath = strings.TrimSuffix(inputPath, ext) + ".stackl"
	}

	if err := os.WriteFile(outputPath, objfmt.Encode(result.Image), 0o644); err != nil {
		slog.Error("writing output", "path", outputPath, "error", err)
		os.Exit(1)
	}
}
