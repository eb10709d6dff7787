package trace

import (
	"sync"

	"golang.org/x/exp/slices"
)

// addrPair is a (start, end) relative-address pair. For source positions,
// start and end encode two distinct (line, column) pairs; for external
// functions and heap-property-backed "addresses" start always equals end.
type addrPair struct {
	start, end uint32
}

// encodeSourceAddr packs a (line, column) source position into a 32-bit
// relative address. Overflow of either field beyond the configured column
// bit width is not an error: it silently truncates via shift/OR, per the
// documented column-bit-overflow behavior of the original instrumentation
// format.
func encodeSourceAddr(line, column uint32, columnsBits uint) uint32 {
	return (line << columnsBits) | (column & ((1 << columnsBits) - 1))
}

// decodeSourceAddr is the inverse of encodeSourceAddr, used by the map-file
// emitter to recover (line, column) from a relative address.
func decodeSourceAddr(addr uint32, columnsBits uint) (line, column uint32) {
	return addr >> columnsBits, addr & ((1 << columnsBits) - 1)
}

// posTable maps the textual key "startLine:startCol:endLine:endCol" to a
// stable (start, end) address pair, for one image.
//
// The table is used both during the single-threaded prefix pass and during
// concurrent testcase processing; rather than keep two container types (a
// plain map during the prefix, a concurrent map afterwards, as the
// instrumentation agent's own preprocessor does purely to avoid allocation)
// this uses one mutex-guarded map throughout, following the
// double-checked-lookup idiom used for every other interning table in this
// package.
type posTable struct {
	mu      sync.RWMutex
	entries map[string]addrPair
}

func (t *posTable) init() {
	t.entries = make(map[string]addrPair)
}

// getOrInsert returns the stable address pair for key, computing it from
// (startLine, startCol, endLine, endCol) on first observation.
func (t *posTable) getOrInsert(key string, startLine, startCol, endLine, endCol uint32, columnsBits uint) addrPair {
	t.mu.RLock()
	if pair, ok := t.entries[key]; ok {
		t.mu.RUnlock()
		return pair
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if pair, ok := t.entries[key]; ok {
		return pair
	}
	pair := addrPair{
		start: encodeSourceAddr(startLine, startCol, columnsBits),
		end:   encodeSourceAddr(endLine, endCol, columnsBits),
	}
	t.entries[key] = pair
	return pair
}

// functionTable maps (start, end) address pairs to the function name
// observed at that range, for one image. Inserts are idempotent: a second
// observation of the same range with a different name is silently ignored,
// per the "duplicate function-name observations are tolerated" rule.
type functionTable struct {
	mu      sync.RWMutex
	entries map[addrPair]string
	ranges  []addrPair // kept sorted by start, lazily rebuilt for lookups
	dirty   bool
}

func (t *functionTable) init() {
	t.entries = make(map[addrPair]string)
}

func (t *functionTable) set(pair addrPair, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[pair]; ok {
		return
	}
	t.entries[pair] = name
	t.dirty = true
}

// lookup returns the name of the last (highest-start) range containing
// addr, or "?" if none matches.
func (t *functionTable) lookup(addr uint32) string {
	t.mu.Lock()
	if t.dirty || t.ranges == nil {
		t.rebuild()
	}
	ranges := t.ranges
	entries := t.entries
	t.mu.Unlock()

	lo, hi := 0, len(ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if ranges[mid].start <= addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	for i := lo - 1; i >= 0; i-- {
		if ranges[i].end >= addr {
			return entries[ranges[i]]
		}
	}
	return "?"
}

func (t *functionTable) rebuild() {
	t.ranges = t.ranges[:0]
	for pair := range t.entries {
		t.ranges = append(t.ranges, pair)
	}
	slices.SortFunc(t.ranges, func(a, b addrPair) bool { return a.start < b.start })
	t.dirty = false
}

// externTable assigns process-wide, monotonically increasing addresses to
// external-function names ("functionName:constructor" with no script id).
// Address 1 is reserved for the "[unknown]" catch-all; real assignments
// start at 2.
type externTable struct {
	mu      sync.RWMutex
	entries map[string]uint32
	counter uint32 // next address to hand out; protected by mu
}

func (t *externTable) init() {
	t.entries = make(map[string]uint32)
	t.counter = 2
}

func (t *externTable) getOrInsert(name string) uint32 {
	t.mu.RLock()
	if addr, ok := t.entries[name]; ok {
		t.mu.RUnlock()
		return addr
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if addr, ok := t.entries[name]; ok {
		return addr
	}
	addr := t.counter
	t.counter++
	t.entries[name] = addr
	return addr
}

// heapObjectState is the per-heap-object allocator state: the offset of the
// next as-yet-unassigned non-numeric property, and the name-to-offset map
// for properties already assigned one.
type heapObjectState struct {
	mu       sync.Mutex
	nextProp uint32
	props    map[string]uint32
}

// initialHeapPropertyOffset is the first non-numeric property offset
// assigned within a heap object's 2*heapAllocationUnit address window.
const initialHeapPropertyOffset = 0x100000

// heapAllocationUnit is the size, in bytes, of each of the two chunks a
// heap object occupies in the synthetic heap address space.
const heapAllocationUnit = 0x100000

func newHeapObjectState() *heapObjectState {
	return &heapObjectState{
		nextProp: initialHeapPropertyOffset,
		props:    make(map[string]uint32),
	}
}

// clone returns a deep copy of h, used to seed a testcase worker's overlay
// from the frozen prefix state without letting the worker's own property
// observations leak back into the shared seed.
func (h *heapObjectState) clone() *heapObjectState {
	h.mu.Lock()
	defer h.mu.Unlock()
	props := make(map[string]uint32, len(h.props))
	for k, v := range h.props {
		props[k] = v
	}
	return &heapObjectState{nextProp: h.nextProp, props: props}
}

// offsetFor resolves a property reference to its offset within the
// object's address window: numeric names decode as their integer value and
// consume no counter; non-numeric names consume the next available offset,
// assigned once and reused thereafter.
func (h *heapObjectState) offsetFor(name string, numeric bool, numericValue uint32) uint32 {
	if numeric {
		return numericValue
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if off, ok := h.props[name]; ok {
		return off
	}
	off := h.nextProp
	h.nextProp++
	h.props[name] = off
	return off
}
