package trace

import "testing"

func TestEncodeDecodeSourceAddrRoundTrip(t *testing.T) {
	const columnsBits = 13
	addr := encodeSourceAddr(10, 4, columnsBits)
	line, column := decodeSourceAddr(addr, columnsBits)
	if line != 10 || column != 4 {
		t.Fatalf("got (%d, %d), want (10, 4)", line, column)
	}
}

func TestEncodeSourceAddrColumnOverflowTruncates(t *testing.T) {
	const columnsBits = 4 // columns fit in 4 bits: 0-15
	addr := encodeSourceAddr(1, 31, columnsBits) // 31 overflows 4 bits
	_, column := decodeSourceAddr(addr, columnsBits)
	if column != 31&0xF {
		t.Fatalf("got column %d, want %d", column, 31&0xF)
	}
}

func TestPosTableGetOrInsertIsIdempotent(t *testing.T) {
	var t1 posTable
	t1.init()
	a := t1.getOrInsert("1:2:3:4", 1, 2, 3, 4, 13)
	b := t1.getOrInsert("1:2:3:4", 99, 99, 99, 99, 13)
	if a != b {
		t.Fatalf("second getOrInsert with the same key returned a different pair: %v != %v", a, b)
	}
}

func TestFunctionTableLookupFindsContainingRange(t *testing.T) {
	var ft functionTable
	ft.init()
	ft.set(addrPair{start: 10, end: 20}, "fn")

	if got := ft.lookup(15); got != "fn" {
		t.Fatalf("lookup(15) = %q, want %q", got, "fn")
	}
	if got := ft.lookup(10); got != "fn" {
		t.Fatalf("lookup(10) = %q, want %q", got, "fn")
	}
	if got := ft.lookup(20); got != "fn" {
		t.Fatalf("lookup(20) = %q, want %q", got, "fn")
	}
	if got := ft.lookup(21); got != "?" {
		t.Fatalf("lookup(21) = %q, want %q", got, "?")
	}
	if got := ft.lookup(9); got != "?" {
		t.Fatalf("lookup(9) = %q, want %q", got, "?")
	}
}

func TestFunctionTableSetIsIdempotent(t *testing.T) {
	var ft functionTable
	ft.init()
	ft.set(addrPair{start: 10, end: 20}, "first")
	ft.set(addrPair{start: 10, end: 20}, "second")
	if got := ft.lookup(10); got != "first" {
		t.Fatalf("lookup(10) = %q, want %q (second observation must be ignored)", got, "first")
	}
}

func TestExternTableAssignsStableMonotonicAddresses(t *testing.T) {
	var et externTable
	et.init()

	a1 := et.getOrInsert("foo")
	b1 := et.getOrInsert("bar")
	a2 := et.getOrInsert("foo")

	if a1 != a2 {
		t.Fatalf("second getOrInsert(foo) = %d, want %d", a2, a1)
	}
	if a1 == b1 {
		t.Fatalf("distinct names got the same address: %d", a1)
	}
	if a1 < 2 || b1 < 2 {
		t.Fatalf("external addresses must start at 2, got %d and %d", a1, b1)
	}
}

func TestHeapObjectStateOffsetForNumericDoesNotConsumeCounter(t *testing.T) {
	h := newHeapObjectState()
	before := h.nextProp
	off := h.offsetFor("5", true, 5)
	if off != 5 {
		t.Fatalf("offsetFor numeric = %d, want 5", off)
	}
	if h.nextProp != before {
		t.Fatalf("numeric property access must not consume the counter")
	}
}

func TestHeapObjectStateOffsetForNamedIsStable(t *testing.T) {
	h := newHeapObjectState()
	a := h.offsetFor("x", false, 0)
	b := h.offsetFor("x", false, 0)
	c := h.offsetFor("y", false, 0)
	if a != b {
		t.Fatalf("repeated offsetFor(x) returned different offsets: %d != %d", a, b)
	}
	if a == c {
		t.Fatalf("distinct property names got the same offset: %d", a)
	}
	if a != initialHeapPropertyOffset {
		t.Fatalf("first named property offset = %#x, want %#x", a, initialHeapPropertyOffset)
	}
}

func TestHeapObjectStateCloneIsIndependent(t *testing.T) {
	h := newHeapObjectState()
	h.offsetFor("x", false, 0)

	clone := h.clone()
	clone.offsetFor("y", false, 0)

	if _, ok := h.props["y"]; ok {
		t.Fatal("mutating the clone leaked back into the original")
	}
	if _, ok := clone.props["x"]; !ok {
		t.Fatal("clone is missing a property observed before cloning")
	}
}
