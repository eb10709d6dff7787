package human_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stealthrocket/tracepp/internal/human"
)

func TestPathSetExpandsHomeDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var p human.Path
	if err := p.Set("~/config.yaml"); err != nil {
		t.Fatal(err)
	}
	want := human.Path(filepath.Join(home, "config.yaml"))
	if p != want {
		t.Fatalf("p = %q, want %q", p, want)
	}
}

func TestPathSetLeavesPlainPathsUntouched(t *testing.T) {
	var p human.Path
	if err := p.Set("/tmp/config.yaml"); err != nil {
		t.Fatal(err)
	}
	if p != "/tmp/config.yaml" {
		t.Fatalf("p = %q, want %q", p, "/tmp/config.yaml")
	}
}

func TestPathResolveEmptyIsEmpty(t *testing.T) {
	var p human.Path
	got, err := p.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("Resolve() = %q, want empty string", got)
	}
}

func TestPathResolveMakesPathAbsolute(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	p := human.Path("relative.yaml")
	got, err := p.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "relative.yaml")
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestPathUnmarshalText(t *testing.T) {
	var p human.Path
	if err := p.UnmarshalText([]byte("/tmp/x")); err != nil {
		t.Fatal(err)
	}
	if p != "/tmp/x" {
		t.Fatalf("p = %q, want %q", p, "/tmp/x")
	}
}
