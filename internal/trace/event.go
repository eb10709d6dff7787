package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// recordSink receives the records an event produces. The event parser
// calls Branch and HeapMemoryAccess only outside the prefix pass;
// HeapAllocation is called in both modes.
type recordSink interface {
	Branch(Branch) error
	HeapAllocation(HeapAllocation) error
	HeapMemoryAccess(HeapMemoryAccess) error
}

// writerSink adapts a *ByteWriter to recordSink.
type writerSink struct{ w *ByteWriter }

func (s writerSink) Branch(b Branch) error                     { return s.w.WriteBranch(b) }
func (s writerSink) HeapAllocation(h HeapAllocation) error      { return s.w.WriteHeapAllocation(h) }
func (s writerSink) HeapMemoryAccess(m HeapMemoryAccess) error { return s.w.WriteHeapMemoryAccess(m) }

// resolvedLoc is a resolved (image, address) pair, used to remember a
// pending call-return source between an 'r' event and its matching 'R'.
type resolvedLoc struct {
	image *Image
	addr  uint32
}

// Parser is the event state machine that turns one line of a trace into
// a call/return/jump/memory-access record. One Parser processes either
// the single-threaded prefix pass or one testcase; it is a tight,
// straight-line loop and is not safe for concurrent use by multiple
// goroutines.
type Parser struct {
	images      *Images
	externs     *externTable
	requested   *requestedSet
	columnsBits uint
	prefix      bool
	sink        recordSink

	lines lineSink

	heapSeed      map[int32]*heapObjectState
	heapOverlay   map[int32]*heapObjectState
	nextHeapAlloc uint64

	lastLineID int32
	lastRet1   *resolvedLoc
}

// NewParser constructs a Parser. heapSeed and nextHeapAlloc are the frozen
// prefix state (nil/0 when building the Parser that runs the prefix pass
// itself); lines is either the shared prefix lineTable (prefix mode) or a
// lineOverlay wrapping it (testcase mode).
func NewParser(images *Images, externs *externTable, requested *requestedSet, columnsBits uint, prefix bool, sink recordSink, lines lineSink, heapSeed map[int32]*heapObjectState, nextHeapAlloc uint64) *Parser {
	return &Parser{
		images:        images,
		externs:       externs,
		requested:     requested,
		columnsBits:   columnsBits,
		prefix:        prefix,
		sink:          sink,
		lines:         lines,
		heapSeed:      heapSeed,
		heapOverlay:   make(map[int32]*heapObjectState),
		nextHeapAlloc: nextHeapAlloc,
	}
}

// NextHeapAlloc returns the parser's current heap-allocation cursor, used
// by the coordinator to seed subsequent workers once the prefix pass
// completes.
func (p *Parser) NextHeapAlloc() uint64 { return p.nextHeapAlloc }

// HeapObjects returns the parser's heap-object overlay, used by the
// coordinator to seed the frozen prefix state once the prefix pass
// completes.
func (p *Parser) HeapObjects() map[int32]*heapObjectState { return p.heapOverlay }

// ProcessLine decodes and handles one raw input line (trailing newline
// already stripped). Empty lines must be filtered out by the caller.
func (p *Parser) ProcessLine(raw []byte) error {
	event, decl, err := decodeLine(raw, p.lines, &p.lastLineID)
	if err != nil {
		return err
	}
	if decl {
		return nil
	}
	return p.handleEvent(event)
}

func (p *Parser) handleEvent(line string) error {
	fields := strings.Split(line, ";")
	if len(fields) == 0 || len(fields[0]) != 1 {
		return fmt.Errorf("%w: empty decompressed event", ErrMalformedEvent)
	}
	switch fields[0][0] {
	case 'c':
		return p.handleCall(fields)
	case 'r':
		return p.handleReturnSource(fields)
	case 'R':
		return p.handleReturnDest(fields)
	case 'j':
		return p.handleJump(fields)
	case 'm':
		return p.handleMemoryAccess(fields)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, fields[0])
	}
}

func (p *Parser) handleCall(fields []string) error {
	if len(fields) != 6 {
		return fmt.Errorf("%w: call event expects 6 fields, got %d", ErrMalformedEvent, len(fields))
	}
	srcImg, srcAddr, err := p.resolveStart(fields[1], fields[2])
	if err != nil {
		return err
	}

	var dstImg *Image
	var dstStart, dstEnd uint32
	if fields[3] == "E" {
		dstImg = p.images.Extern()
		addr := p.externs.getOrInsert(fields[4])
		dstStart, dstEnd = addr, addr
	} else {
		var err error
		dstImg, dstStart, dstEnd, err = p.resolvePair(fields[3], fields[4])
		if err != nil {
			return err
		}
	}
	name := fields[5]
	dstImg.functions.set(addrPair{start: dstStart, end: dstEnd}, name)

	p.requested.add(srcImg.ID, srcAddr)
	p.requested.add(dstImg.ID, dstStart)
	p.requested.add(dstImg.ID, dstEnd)

	if !p.prefix {
		return p.sink.Branch(Branch{
			SrcImage: srcImg.ID, SrcAddr: srcAddr,
			DstImage: dstImg.ID, DstAddr: dstStart,
			Taken: true, Type: BranchCall,
		})
	}
	return nil
}

func (p *Parser) handleReturnSource(fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("%w: return event expects 3 fields, got %d", ErrMalformedEvent, len(fields))
	}
	img, addr, err := p.resolveStart(fields[1], fields[2])
	if err != nil {
		return err
	}
	p.requested.add(img.ID, addr)
	if !p.prefix {
		p.lastRet1 = &resolvedLoc{image: img, addr: addr}
	}
	return nil
}

func (p *Parser) handleReturnDest(fields []string) error {
	if len(fields) != 3 {
		return fmt.Errorf("%w: return event expects 3 fields, got %d", ErrMalformedEvent, len(fields))
	}
	img, addr, err := p.resolveStart(fields[1], fields[2])
	if err != nil {
		return err
	}
	p.requested.add(img.ID, addr)
	if p.prefix {
		return nil
	}

	src := p.lastRet1
	p.lastRet1 = nil
	var srcImg *Image
	var srcAddr uint32
	if src != nil {
		srcImg, srcAddr = src.image, src.addr
	} else {
		srcImg, srcAddr = p.images.Extern(), catchAllAddr
	}
	return p.sink.Branch(Branch{
		SrcImage: srcImg.ID, SrcAddr: srcAddr,
		DstImage: img.ID, DstAddr: addr,
		Taken: true, Type: BranchReturn,
	})
}

func (p *Parser) handleJump(fields []string) error {
	if len(fields) != 4 {
		return fmt.Errorf("%w: jump event expects 4 fields, got %d", ErrMalformedEvent, len(fields))
	}
	srcImg, srcAddr, err := p.resolveStart(fields[1], fields[2])
	if err != nil {
		return err
	}
	dstImg, dstAddr, err := p.resolveStart(fields[1], fields[3])
	if err != nil {
		return err
	}
	p.requested.add(srcImg.ID, srcAddr)
	p.requested.add(dstImg.ID, dstAddr)
	if !p.prefix {
		return p.sink.Branch(Branch{
			SrcImage: srcImg.ID, SrcAddr: srcAddr,
			DstImage: dstImg.ID, DstAddr: dstAddr,
			Taken: true, Type: BranchJump,
		})
	}
	return nil
}

func (p *Parser) handleMemoryAccess(fields []string) error {
	if len(fields) != 6 {
		return fmt.Errorf("%w: memory access event expects 6 fields, got %d", ErrMalformedEvent, len(fields))
	}
	isWrite, err := parseAccessType(fields[1])
	if err != nil {
		return err
	}
	instrImg, instrAddr, err := p.resolveStart(fields[2], fields[3])
	if err != nil {
		return err
	}
	p.requested.add(instrImg.ID, instrAddr)

	objID, err := strconv.ParseInt(fields[4], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedObjectID, err)
	}

	obj, isNew, allocAddr := p.heapObject(int32(objID))
	if isNew {
		if err := p.sink.HeapAllocation(HeapAllocation{
			ID:      int32(objID),
			Address: allocAddr,
			Size:    2 * heapAllocationUnit,
		}); err != nil {
			return err
		}
	}

	memAddr := p.resolveOffset(obj, fields[5])

	if !p.prefix {
		return p.sink.HeapMemoryAccess(HeapMemoryAccess{
			InstrImage: instrImg.ID, InstrAddr: instrAddr,
			AllocID: int32(objID), MemAddr: memAddr,
			Size: 1, IsWrite: isWrite,
		})
	}
	return nil
}

func parseAccessType(s string) (isWrite bool, err error) {
	switch s {
	case "r":
		return false, nil
	case "w":
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown memory access type %q", ErrMalformedEvent, s)
	}
}

// heapObject returns the heap-object state for id. An object found in the
// frozen prefix seed is cloned into this parser's overlay on first use; an
// object seen neither here nor in the seed is created and the
// heap-allocation cursor advanced. isNew reports whether a HeapAllocation
// record must be emitted (only for a created object); allocAddr is only
// meaningful when isNew is true.
func (p *Parser) heapObject(id int32) (obj *heapObjectState, isNew bool, allocAddr uint64) {
	if obj, ok := p.heapOverlay[id]; ok {
		return obj, false, 0
	}
	if seed, ok := p.heapSeed[id]; ok {
		obj := seed.clone()
		p.heapOverlay[id] = obj
		return obj, false, 0
	}
	addr := p.nextHeapAlloc
	p.nextHeapAlloc += 2 * heapAllocationUnit
	obj = newHeapObjectState()
	p.heapOverlay[id] = obj
	return obj, true, addr
}

func (p *Parser) resolveOffset(obj *heapObjectState, raw string) uint32 {
	if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
		return uint32(v)
	}
	return obj.offsetFor(raw, false, 0)
}

// resolveStart resolves a (scriptID, position) pair down to its image and
// start address, inserting a new entry in the image's position table if
// this is the first observation of that position.
func (p *Parser) resolveStart(scriptField, posField string) (*Image, uint32, error) {
	img, pair, err := p.resolveImagePos(scriptField, posField)
	if err != nil {
		return nil, 0, err
	}
	return img, pair.start, nil
}

// resolvePair is like resolveStart but also returns the end address,
// needed by call-target resolution.
func (p *Parser) resolvePair(scriptField, posField string) (*Image, uint32, uint32, error) {
	img, pair, err := p.resolveImagePos(scriptField, posField)
	if err != nil {
		return nil, 0, 0, err
	}
	return img, pair.start, pair.end, nil
}

func (p *Parser) resolveImagePos(scriptField, posField string) (*Image, addrPair, error) {
	scriptID, err := strconv.ParseInt(scriptField, 10, 32)
	if err != nil {
		return nil, addrPair{}, fmt.Errorf("%w: invalid script id %q", ErrMalformedEvent, scriptField)
	}
	if scriptID < 0 || int(scriptID) >= p.images.Len() {
		return nil, addrPair{}, fmt.Errorf("%w: script id %d out of range", ErrMalformedEvent, scriptID)
	}
	img := p.images.At(int32(scriptID))

	sL, sC, eL, eC, err := parsePosKey(posField)
	if err != nil {
		return nil, addrPair{}, err
	}
	pair := img.positions.getOrInsert(posField, sL, sC, eL, eC, p.columnsBits)
	return img, pair, nil
}

// parsePosKey splits a "startLine:startCol:endLine:endCol" textual
// position key into its four components.
func parsePosKey(key string) (sL, sC, eL, eC uint32, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: malformed position %q", ErrMalformedEvent, key)
	}
	values := make([]uint32, 4)
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("%w: malformed position %q", ErrMalformedEvent, key)
		}
		values[i] = uint32(v)
	}
	return values[0], values[1], values[2], values[3], nil
}
