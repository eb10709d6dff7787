package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/stealthrocket/tracepp/internal/human"
	"github.com/stealthrocket/tracepp/internal/trace"
	"github.com/stealthrocket/tracepp/internal/tracepp"
)

const preprocessUsage = `
Usage:	tracepp preprocess [options] <testcase-trace> ...

Runs the prefix pass once against <trace-dir>/scripts.txt and
<trace-dir>/prefix.trace, then preprocesses each testcase trace listed on
the command line concurrently, writing binary traces and per-image map
files.

Options:
   -c, --config path          Path to the tracepp configuration file
       --trace-dir path       Directory containing scripts.txt and prefix.trace (required)
       --map-directory path   Target directory for .map files (overrides config)
       --output-directory path Target directory for preprocessed traces (overrides config)
       --store-traces         Persist preprocessed traces to --output-directory
       --columns-bits n       Column bit-width in the 32-bit source-position address
   -h, --help                 Show usage information
`

func preprocess(ctx context.Context, args []string) error {
	var (
		traceDir        human.Path
		mapDirectory    human.Path
		outputDirectory human.Path
		storeTraces     bool
		columnsBits     = -1
	)

	flagSet := newFlagSet("tracepp preprocess", preprocessUsage)
	customVar(flagSet, &traceDir, "trace-dir")
	customVar(flagSet, &mapDirectory, "map-directory")
	customVar(flagSet, &outputDirectory, "output-directory")
	boolVar(flagSet, &storeTraces, "store-traces")
	intVar(flagSet, &columnsBits, "columns-bits")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if traceDir == "" {
		return usageError("tracepp preprocess: --trace-dir is required")
	}

	conf, err := tracepp.LoadConfig()
	if err != nil {
		return err
	}
	if mapDirectory != "" {
		conf.MapDirectory = mapDirectory
	}
	if outputDirectory != "" {
		conf.OutputDirectory = tracepp.NullableValue(outputDirectory)
	}
	if storeTraces {
		conf.StoreTraces = true
	}
	if columnsBits >= 0 {
		conf.ColumnsBits = columnsBits
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	runID := uuid.New()
	fmt.Printf("tracepp preprocess %s: starting run\n", runID)

	dir, err := traceDir.Resolve()
	if err != nil {
		return err
	}
	mapDir, err := conf.MapDirectory.Resolve()
	if err != nil {
		return err
	}
	var outDir string
	if conf.StoreTraces {
		outLoc, _ := conf.OutputDirectory.Value()
		outDir, err = outLoc.Resolve()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	coordinator := trace.NewCoordinator(uint(conf.ColumnsBits))

	scripts, err := os.Open(filepath.Join(dir, "scripts.txt"))
	if err != nil {
		return err
	}
	defer scripts.Close()

	prefixTrace, err := os.Open(filepath.Join(dir, "prefix.trace"))
	if err != nil {
		return err
	}
	defer prefixTrace.Close()

	prefixOut, prefixCloser, err := openPreprocessedOutput(outDir, "prefix.trace", conf.StoreTraces, fileSize(prefixTrace))
	if err != nil {
		return err
	}
	defer prefixCloser()

	if err := coordinator.RunPrefix(scripts, prefixTrace, prefixOut); err != nil {
		return fmt.Errorf("tracepp preprocess %s: prefix pass failed: %w", runID, err)
	}
	if err := prefixOut.Flush(); err != nil {
		return err
	}

	var testcases []trace.Testcase
	var closers []func() error
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		closers = append(closers, f.Close)

		out, closer, err := openPreprocessedOutput(outDir, filepath.Base(path), conf.StoreTraces, fileSize(f))
		if err != nil {
			return err
		}
		closers = append(closers, closer)

		testcases = append(testcases, trace.Testcase{Path: path, Trace: f, Output: out})
	}
	defer func() {
		for _, close := range closers {
			_ = close()
		}
	}()

	if err := coordinator.RunTestcases(ctx, testcases); err != nil {
		return fmt.Errorf("tracepp preprocess %s: %w", runID, err)
	}
	for _, tc := range testcases {
		if err := tc.Output.Flush(); err != nil {
			return err
		}
	}

	if err := trace.WriteMapFiles(mapDir, coordinator.Images(), coordinator.Requested(), coordinator.ColumnsBits()); err != nil {
		return err
	}

	fmt.Printf("tracepp preprocess %s: processed %d testcase(s)\n", runID, len(testcases))
	return nil
}

// openPreprocessedOutput returns a ByteWriter for one trace's output. When
// store is false the trace is written to a discarded in-memory buffer (the
// coordinator still needs somewhere to write), sized to estimatedSize bytes
// up front so the common case of a binary trace roughly the size of its
// textual input needs no further growth; when true it is written to
// "<outDir>/<name>.preprocessed".
func openPreprocessedOutput(outDir, name string, store bool, estimatedSize int) (*trace.ByteWriter, func() error, error) {
	if !store {
		w, _ := trace.NewMemoryByteWriter(estimatedSize)
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(filepath.Join(outDir, name+".preprocessed"))
	if err != nil {
		return nil, nil, err
	}
	return trace.NewFileByteWriter(f), f.Close, nil
}

// fileSize returns f's current size, or 0 if it can't be determined (the
// memory buffer just starts empty and grows as needed in that case).
func fileSize(f *os.File) int {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return int(info.Size())
}
