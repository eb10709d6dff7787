package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"
)

// sanitizeImageName replaces platform-invalid filename characters, '/',
// '\', and '.' with '_'.
func sanitizeImageName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if isPathInvalidRune(r) {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}

func isPathInvalidRune(r rune) bool {
	switch r {
	case '/', '\\', '.', ':', '*', '?', '"', '<', '>', '|', 0:
		return true
	}
	return r < 0x20
}

// WriteMapFiles emits one ".map" text file per image into dir, creating
// dir if it does not already exist. Called once at shutdown, after every
// testcase has finished contributing to requested.
func WriteMapFiles(dir string, images *Images, requested *requestedSet, columnsBits uint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, img := range images.All() {
		if err := writeMapFile(dir, img, requested, columnsBits); err != nil {
			return err
		}
	}
	return nil
}

func writeMapFile(dir string, img *Image, requested *requestedSet, columnsBits uint) error {
	path := filepath.Join(dir, sanitizeImageName(img.Name)+".map")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeMapFileTo(f, img, requested, columnsBits)
}

// writeMapFileTo writes the image name as the first line, then one
// "%08x\t..." line per requested address, sorted ascending, resolved
// against the image's function-name ranges.
func writeMapFileTo(w io.Writer, img *Image, requested *requestedSet, columnsBits uint) error {
	if _, err := fmt.Fprintln(w, img.Name); err != nil {
		return err
	}

	addrs := requested.addrsForImage(img.ID)
	slices.Sort(addrs)

	for _, addr := range addrs {
		name := img.functions.lookup(addr)
		if img.IsExtern() {
			if _, err := fmt.Fprintf(w, "%08x\t%s\n", addr, name); err != nil {
				return err
			}
			continue
		}
		line, column := decodeSourceAddr(addr, columnsBits)
		if _, err := fmt.Fprintf(w, "%08x\t%s:%d:%d\n", addr, name, line, column); err != nil {
			return err
		}
	}
	return nil
}
