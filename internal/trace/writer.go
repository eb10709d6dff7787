package trace

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// ByteWriter is a length-prefixed little-endian binary writer, backed by
// either a growable in-memory buffer or a buffered file sink. It is the
// lowest-level primitive the rest of the package builds on: the image
// table header and every trace record are encoded directly through it.
//
// Once a write to the underlying io.Writer fails, the ByteWriter is
// considered broken: it keeps returning that error on every subsequent
// call instead of retrying.
type ByteWriter struct {
	w         io.Writer
	stickyErr error
	scratch   [8]byte
}

// NewByteWriter wraps an arbitrary io.Writer.
func NewByteWriter(w io.Writer) *ByteWriter {
	return &ByteWriter{w: w}
}

// NewMemoryByteWriter constructs a ByteWriter backed by a growable
// in-memory buffer, sized to estimatedSize bytes as an initial estimate
// (the convention used when a testcase's output is kept in memory: size
// the buffer to the input trace file's byte length).
func NewMemoryByteWriter(estimatedSize int) (*ByteWriter, *bytes.Buffer) {
	if estimatedSize < 0 {
		estimatedSize = 0
	}
	buf := bytes.NewBuffer(make([]byte, 0, estimatedSize))
	return NewByteWriter(buf), buf
}

// NewFileByteWriter wraps a buffered writer around a file-backed sink.
func NewFileByteWriter(f io.Writer) *ByteWriter {
	return NewByteWriter(bufio.NewWriterSize(f, 64*1024))
}

// Flush flushes any buffering interposed by NewFileByteWriter. It is a
// no-op for writers that don't buffer.
func (w *ByteWriter) Flush() error {
	if w.stickyErr != nil {
		return w.stickyErr
	}
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (w *ByteWriter) writeAll(b []byte) error {
	if w.stickyErr != nil {
		return w.stickyErr
	}
	if _, err := w.w.Write(b); err != nil {
		w.stickyErr = err
		return err
	}
	return nil
}

func (w *ByteWriter) WriteU8(v uint8) error {
	w.scratch[0] = v
	return w.writeAll(w.scratch[:1])
}

func (w *ByteWriter) WriteBool(v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

func (w *ByteWriter) WriteI32(v int32) error {
	binary.LittleEndian.PutUint32(w.scratch[:4], uint32(v))
	return w.writeAll(w.scratch[:4])
}

func (w *ByteWriter) WriteU32(v uint32) error {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	return w.writeAll(w.scratch[:4])
}

func (w *ByteWriter) WriteU64(v uint64) error {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	return w.writeAll(w.scratch[:8])
}

// WriteString writes a u32 length prefix followed by the UTF-8 bytes of s.
func (w *ByteWriter) WriteString(s string) error {
	if err := w.WriteU32(uint32(len(s))); err != nil {
		return err
	}
	return w.writeAll([]byte(s))
}

// WriteImageTable writes the prefix file's image-table header: a u32
// count followed by one record per image of {i32 id, u8 interesting, u64
// start, u64 end, length-prefixed utf8 name}. start/end are each image's
// virtual address window, id<<32 and id<<32|0xFFFFFFFF.
func (w *ByteWriter) WriteImageTable(images []*Image) error {
	if err := w.WriteU32(uint32(len(images))); err != nil {
		return err
	}
	for _, img := range images {
		if err := w.WriteI32(img.ID); err != nil {
			return err
		}
		if err := w.WriteU8(boolToU8(img.Interesting)); err != nil {
			return err
		}
		window := uint64(uint32(img.ID)) << 32
		if err := w.WriteU64(window); err != nil {
			return err
		}
		if err := w.WriteU64(window | 0xFFFFFFFF); err != nil {
			return err
		}
		if err := w.WriteString(img.Name); err != nil {
			return err
		}
	}
	return nil
}

func boolToU8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// WriteBranch encodes b as its type byte followed by the fixed fields
// enumerated for Branch records.
func (w *ByteWriter) WriteBranch(b Branch) error {
	if err := w.WriteU8(recordTypeBranch); err != nil {
		return err
	}
	if err := w.WriteI32(b.SrcImage); err != nil {
		return err
	}
	if err := w.WriteU32(b.SrcAddr); err != nil {
		return err
	}
	if err := w.WriteI32(b.DstImage); err != nil {
		return err
	}
	if err := w.WriteU32(b.DstAddr); err != nil {
		return err
	}
	if err := w.WriteBool(b.Taken); err != nil {
		return err
	}
	return w.WriteU8(uint8(b.Type))
}

// WriteHeapAllocation encodes h as its type byte followed by the fixed
// fields enumerated for HeapAllocation records.
func (w *ByteWriter) WriteHeapAllocation(h HeapAllocation) error {
	if err := w.WriteU8(recordTypeHeapAllocation); err != nil {
		return err
	}
	if err := w.WriteI32(h.ID); err != nil {
		return err
	}
	if err := w.WriteU64(h.Address); err != nil {
		return err
	}
	return w.WriteU32(h.Size)
}

// WriteHeapMemoryAccess encodes m as its type byte followed by the fixed
// fields enumerated for HeapMemoryAccess records.
func (w *ByteWriter) WriteHeapMemoryAccess(m HeapMemoryAccess) error {
	if err := w.WriteU8(recordTypeHeapMemoryAccess); err != nil {
		return err
	}
	if err := w.WriteI32(m.InstrImage); err != nil {
		return err
	}
	if err := w.WriteU32(m.InstrAddr); err != nil {
		return err
	}
	if err := w.WriteI32(m.AllocID); err != nil {
		return err
	}
	if err := w.WriteU32(m.MemAddr); err != nil {
		return err
	}
	if err := w.WriteU32(m.Size); err != nil {
		return err
	}
	return w.WriteU8(boolToU8(m.IsWrite))
}
