package trace

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Coordinator owns the state shared across one preprocessing run: exactly
// one caller executes the prefix pass under the gate in RunPrefix, after
// which any number of testcases may run through RunTestcase concurrently.
//
// Every shared table here (images, externs, requested, lines) lives in
// one mutex-guarded container used in both phases, rather than splitting
// a plain-map prefix path from a concurrent-map testcase path; this
// avoids carrying two code paths through the event parser.
type Coordinator struct {
	mu         sync.Mutex
	prefixDone bool
	prefixErr  error

	columnsBits uint

	images    *Images
	externs   externTable
	requested *requestedSet
	lines     *lineTable

	heapSeed      map[int32]*heapObjectState
	nextHeapAlloc uint64
}

// NewCoordinator constructs a Coordinator. columnsBits is the configured
// column bit-width, already validated to be <= 30.
func NewCoordinator(columnsBits uint) *Coordinator {
	c := &Coordinator{
		columnsBits: columnsBits,
		requested:   newRequestedSet(),
		lines:       newLineTable(),
	}
	c.externs.init()
	return c
}

// RunPrefix performs the single-threaded prefix pass: loading scripts.txt,
// writing the image table, and parsing prefix.trace in prefix mode. If
// called more than once (concurrently or sequentially), only the first
// caller actually runs the pass; every caller, including the first,
// receives the same result — the "prefix done" flag is set unconditionally,
// even on failure, so waiting workers never retry a failed prefix.
func (c *Coordinator) RunPrefix(scripts, prefixTrace io.Reader, out *ByteWriter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prefixDone {
		return c.prefixErr
	}
	c.prefixErr = c.runPrefixLocked(scripts, prefixTrace, out)
	c.prefixDone = true
	return c.prefixErr
}

func (c *Coordinator) runPrefixLocked(scripts, prefixTrace io.Reader, out *ByteWriter) error {
	images, err := LoadScripts(scripts)
	if err != nil {
		return err
	}
	c.images = images

	// The catch-all external-function entry is always requested, even if
	// no event ever resolves through it, so [extern].map always exists.
	c.requested.add(images.Extern().ID, catchAllAddr)

	if err := out.WriteImageTable(images.All()); err != nil {
		return err
	}

	sink := writerSink{w: out}
	parser := NewParser(c.images, &c.externs, c.requested, c.columnsBits, true, sink, c.lines, nil, 0)
	if err := processTrace(prefixTrace, "prefix.trace", parser); err != nil {
		return err
	}

	c.heapSeed = parser.HeapObjects()
	c.nextHeapAlloc = parser.NextHeapAlloc()
	return nil
}

// RunTestcase processes one testcase's raw trace in full parallel mode,
// writing its decoded records to out. It must only be called after
// RunPrefix has completed successfully.
func (c *Coordinator) RunTestcase(trace io.Reader, path string, out *ByteWriter) error {
	c.mu.Lock()
	if !c.prefixDone {
		c.mu.Unlock()
		return fmt.Errorf("testcase %s: prefix pass has not run", path)
	}
	if c.prefixErr != nil {
		c.mu.Unlock()
		return fmt.Errorf("testcase %s: prefix pass failed: %w", path, c.prefixErr)
	}
	images, externs, requested, lines := c.images, &c.externs, c.requested, c.lines
	heapSeed, nextHeapAlloc := c.heapSeed, c.nextHeapAlloc
	c.mu.Unlock()

	overlay := newLineOverlay(lines)
	sink := writerSink{w: out}
	parser := NewParser(images, externs, requested, c.columnsBits, false, sink, overlay, heapSeed, nextHeapAlloc)
	return processTrace(trace, path, parser)
}

// Testcase bundles one testcase's input and output for RunTestcases.
type Testcase struct {
	Path   string
	Trace  io.Reader
	Output *ByteWriter
}

// RunTestcases fans testcases out across an errgroup-managed worker pool.
// It returns the first error encountered; other in-flight testcases are
// allowed to run to completion (errgroup.WithContext cancels ctx, but the
// event parser has no suspension points within a testcase to poll it).
func (c *Coordinator) RunTestcases(ctx context.Context, testcases []Testcase) error {
	g, _ := errgroup.WithContext(ctx)
	for _, tc := range testcases {
		tc := tc
		g.Go(func() error {
			return c.RunTestcase(tc.Trace, tc.Path, tc.Output)
		})
	}
	return g.Wait()
}

// Images returns the frozen image table built by the prefix pass. It must
// only be called after RunPrefix has completed successfully; used by the
// map-file emitter.
func (c *Coordinator) Images() *Images { return c.images }

// Requested returns the shared requested-entries set. It must only be
// called after RunPrefix has completed successfully; used by the map-file
// emitter.
func (c *Coordinator) Requested() *requestedSet { return c.requested }

// ColumnsBits returns the configured column bit-width.
func (c *Coordinator) ColumnsBits() uint { return c.columnsBits }

// processTrace drives a LineReader + Parser pair over one trace file,
// wrapping any error with the path and a 1-based line number. The number
// counts non-empty lines only (the LineReader skips empty ones); a parse
// error carries the number of the line that failed, a read error the
// number of the last line read before it.
func processTrace(r io.Reader, path string, parser *Parser) error {
	lr := NewLineReader(r)
	var lineNo int64
	for {
		line, err := lr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return inputError(path, lineNo, err)
		}
		lineNo++
		if err := parser.ProcessLine(line); err != nil {
			return inputError(path, lineNo, err)
		}
	}
}
