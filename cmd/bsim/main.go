// Command bsim runs a binary instruction descriptor to completion: it
// builds the Chip -> Core -> PhaseGroup tree with simulator.Build, executes
// it, and exits non-zero on a descriptor parse failure or an unrecoverable
// run-time error.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/bsim/config"
	"github.com/sarchlab/bsim/errs"
	"github.com/sarchlab/bsim/simulator"
)

func main() {
	device := flag.String("d", "cpu", "device hint (advisory)")
	descriptorPath := flag.String("i", "", "path to the binary instruction descriptor (required)")
	caseName := flag.String("c", "", "case name, stemmed from -i's basename if empty")
	outputDir := flag.String("o", ".", "output root directory")
	readable := flag.String("r", "true", "readable output toggle (true|false)")
	flag.Parse()

	if *descriptorPath == "" {
		fmt.Fprintln(os.Stderr, "bsim: -i <descriptor> is required")
		os.Exit(1)
	}

	name := *caseName
	if name == "" {
		base := filepath.Base(*descriptorPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	outputReadable, err := strconv.ParseBool(*readable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bsim: -r must be true or false: %v\n", err)
		os.Exit(1)
	}

	cfg := config.New(config.CompareMode, *outputDir, slog.LevelInfo)
	cfg.OutputReadable = outputReadable
	_ = device

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		cfg.Console.Error("could not create output directory", "dir", *outputDir, "err", err)
		os.Exit(1)
	}

	descriptor, err := os.ReadFile(*descriptorPath)
	if err != nil {
		cfg.Console.Error("could not read descriptor", "path", *descriptorPath, "err", err)
		os.Exit(1)
	}

	start := time.Now()
	code := run(descriptor, name, cfg)
	if code == 0 {
		cfg.Console.Info("run complete", "case", name, "elapsed", time.Since(start))
	}
	atexit.Exit(code)
}

// run builds and executes the descriptor, returning the process exit code.
// It never calls os.Exit itself, so atexit's registered cleanup (closing
// every core's IO client socket) always runs once the build has succeeded.
func run(descriptor []byte, caseName string, cfg config.Config) int {
	result, err := simulator.Build(descriptor, "ChipArray1", caseName, "", cfg)
	if err != nil {
		cfg.Console.Error("descriptor build failed", "case", caseName, "err", err)
		if errors.Is(err, errs.ErrParse) {
			return 2
		}
		return 1
	}

	atexit.Register(func() {
		for _, c := range result.ChipArray.Chips {
			for _, co := range c.Cores {
				if co.IOClient != nil {
					_ = co.IOClient.Close()
				}
			}
		}
	})

	if err := result.ChipArray.Execute(result.Context); err != nil {
		cfg.Console.Error("run failed", "case", caseName, "err", err)
		if errors.Is(err, errs.ErrIoUnavailable) {
			return 3
		}
		return 1
	}
	printRunSummary(result)
	return 0
}

// printRunSummary renders one row per core - chip, core, phase-group count,
// and final status - to stdout, a post-run complement to the per-core
// memory-visitor dumps.
func printRunSummary(result *simulator.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Chip", "Core", "Phases", "Status"})
	for _, c := range result.ChipArray.Chips {
		for _, co := range c.Cores {
			status := "ok"
			if err := co.Err(); err != nil {
				status = err.Error()
			}
			tw.AppendRow(table.Row{c.ID.String(), co.ID.String(), len(co.Groups), status})
		}
	}
	tw.Render()
}
