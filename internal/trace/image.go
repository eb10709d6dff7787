package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// externImageName is the name of the synthetic image that stands in for
// every external (non-JavaScript) callable observed in a trace.
const externImageName = "[extern]"

// unknownFunctionName anchors stray returns (see catchAllAddr) under a
// single well-known symbol in map files rather than dropping them.
const unknownFunctionName = "[unknown]"

// catchAllAddr is the address reserved for the "[unknown]" external
// function; external-function addresses proper start at 2.
const catchAllAddr = 1

// Image is an immutable descriptor for a loaded script, or for the single
// synthetic "[extern]" image that stands in for non-JS callables.
type Image struct {
	ID          int32
	Name        string
	Interesting bool

	positions posTable
	functions functionTable
}

func newImage(id int32, name string, interesting bool) *Image {
	img := &Image{ID: id, Name: name, Interesting: interesting}
	img.functions.init()
	img.positions.init()
	return img
}

// IsExtern reports whether img is the synthetic "[extern]" image.
func (img *Image) IsExtern() bool {
	return img.Name == externImageName
}

// Images is the immutable table of images for one preprocessing run: every
// script listed in scripts.txt, in id order, followed by the synthetic
// "[extern]" image.
type Images struct {
	list   []*Image
	extern *Image
}

// LoadScripts reads scripts.txt (tab-separated "<id>\t<name>" records,
// ids zero-based and contiguous) and builds the image table, appending the
// synthetic "[extern]" image with the next id after all real scripts.
func LoadScripts(r io.Reader) (*Images, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var list []*Image
	lineNo := int64(0)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		idField, name, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, inputError("scripts.txt", lineNo, fmt.Errorf("%w: missing tab separator", ErrMalformedEvent))
		}
		id, err := strconv.ParseInt(idField, 10, 32)
		if err != nil {
			return nil, inputError("scripts.txt", lineNo, fmt.Errorf("%w: invalid script id %q", ErrMalformedEvent, idField))
		}
		if int(id) != len(list) {
			return nil, inputError("scripts.txt", lineNo, ErrNonContiguousID)
		}
		list = append(list, newImage(int32(id), name, true))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	extern := newImage(int32(len(list)), externImageName, true)
	// Seed the catch-all label used for stray returns; address 1 is
	// reserved for it and requested unconditionally.
	extern.functions.set(addrPair{start: catchAllAddr, end: catchAllAddr}, unknownFunctionName)

	return &Images{list: list, extern: extern}, nil
}

// Len returns the number of real script images (excluding "[extern]").
func (im *Images) Len() int { return len(im.list) }

// At returns the script image with the given id, which must be in
// [0, Len()).
func (im *Images) At(id int32) *Image { return im.list[id] }

// Extern returns the synthetic "[extern]" image.
func (im *Images) Extern() *Image { return im.extern }

// All returns every image, real scripts followed by "[extern]".
func (im *Images) All() []*Image {
	all := make([]*Image, 0, len(im.list)+1)
	all = append(all, im.list...)
	all = append(all, im.extern)
	return all
}
