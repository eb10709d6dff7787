package trace

import "testing"

func TestRequestedSetAddrsForImageFiltersByImage(t *testing.T) {
	s := newRequestedSet()
	s.add(0, 10)
	s.add(0, 20)
	s.add(1, 30)

	got := s.addrsForImage(0)
	if len(got) != 2 {
		t.Fatalf("got %d addrs, want 2: %v", len(got), got)
	}
	seen := map[uint32]bool{}
	for _, a := range got {
		seen[a] = true
	}
	if !seen[10] || !seen[20] {
		t.Fatalf("missing expected addresses in %v", got)
	}

	other := s.addrsForImage(1)
	if len(other) != 1 || other[0] != 30 {
		t.Fatalf("addrsForImage(1) = %v, want [30]", other)
	}
}

func TestRequestedSetAddIsIdempotent(t *testing.T) {
	s := newRequestedSet()
	s.add(0, 10)
	s.add(0, 10)
	got := s.addrsForImage(0)
	if len(got) != 1 {
		t.Fatalf("got %d addrs after duplicate adds, want 1", len(got))
	}
}
