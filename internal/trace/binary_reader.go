package trace

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ByteReader is the mirror image of ByteWriter: it decodes the exact wire
// format ByteWriter produces. It exists primarily so tests can exercise
// the round-trip property required by spec: reading a binary trace and
// re-serializing it must yield byte-identical output.
type ByteReader struct {
	r       io.Reader
	scratch [8]byte
}

func NewByteReader(r io.Reader) *ByteReader {
	return &ByteReader{r: r}
}

func (r *ByteReader) read(n int) ([]byte, error) {
	b := r.scratch[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *ByteReader) ReadU8() (uint8, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *ByteReader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

func (r *ByteReader) ReadI32() (int32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *ByteReader) ReadU32() (uint32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *ByteReader) ReadU64() (uint64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *ByteReader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// ImageTableEntry is one decoded record from a prefix file's image table.
type ImageTableEntry struct {
	ID          int32
	Interesting bool
	Start, End  uint64
	Name        string
}

// ReadImageTable decodes the image-table header written by
// ByteWriter.WriteImageTable.
func (r *ByteReader) ReadImageTable() ([]ImageTableEntry, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	entries := make([]ImageTableEntry, count)
	for i := range entries {
		id, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		interesting, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		start, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		end, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		entries[i] = ImageTableEntry{ID: id, Interesting: interesting, Start: start, End: end, Name: name}
	}
	return entries, nil
}

// AnyRecord is the decoded union of the three record kinds, tagged by
// Type.
type AnyRecord struct {
	Type             uint8
	Branch           Branch
	HeapAllocation   HeapAllocation
	HeapMemoryAccess HeapMemoryAccess
}

// ReadRecord decodes the next record, dispatching on its type byte.
func (r *ByteReader) ReadRecord() (AnyRecord, error) {
	typ, err := r.ReadU8()
	if err != nil {
		return AnyRecord{}, err
	}
	switch typ {
	case recordTypeBranch:
		b, err := r.readBranchBody()
		return AnyRecord{Type: typ, Branch: b}, err
	case recordTypeHeapAllocation:
		h, err := r.readHeapAllocationBody()
		return AnyRecord{Type: typ, HeapAllocation: h}, err
	case recordTypeHeapMemoryAccess:
		m, err := r.readHeapMemoryAccessBody()
		return AnyRecord{Type: typ, HeapMemoryAccess: m}, err
	default:
		return AnyRecord{}, fmt.Errorf("unknown record type byte %d", typ)
	}
}

func (r *ByteReader) readBranchBody() (Branch, error) {
	var b Branch
	var err error
	if b.SrcImage, err = r.ReadI32(); err != nil {
		return b, err
	}
	if b.SrcAddr, err = r.ReadU32(); err != nil {
		return b, err
	}
	if b.DstImage, err = r.ReadI32(); err != nil {
		return b, err
	}
	if b.DstAddr, err = r.ReadU32(); err != nil {
		return b, err
	}
	if b.Taken, err = r.ReadBool(); err != nil {
		return b, err
	}
	typ, err := r.ReadU8()
	b.Type = BranchType(typ)
	return b, err
}

func (r *ByteReader) readHeapAllocationBody() (HeapAllocation, error) {
	var h HeapAllocation
	var err error
	if h.ID, err = r.ReadI32(); err != nil {
		return h, err
	}
	if h.Address, err = r.ReadU64(); err != nil {
		return h, err
	}
	h.Size, err = r.ReadU32()
	return h, err
}

func (r *ByteReader) readHeapMemoryAccessBody() (HeapMemoryAccess, error) {
	var m HeapMemoryAccess
	var err error
	if m.InstrImage, err = r.ReadI32(); err != nil {
		return m, err
	}
	if m.InstrAddr, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.AllocID, err = r.ReadI32(); err != nil {
		return m, err
	}
	if m.MemAddr, err = r.ReadU32(); err != nil {
		return m, err
	}
	if m.Size, err = r.ReadU32(); err != nil {
		return m, err
	}
	m.IsWrite, err = r.ReadBool()
	return m, err
}
