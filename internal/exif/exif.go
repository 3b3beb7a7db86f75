// Package exif extracts the little EXIF metadata the server cares about:
// pixel dimensions and orientation. Parsing is best effort; any failure yields
// the defaults instead of an error.
package exif

import (
	"io"
	"strconv"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// Unknown is reported for a dimension that could not be read.
const Unknown = "Unknown"

// DefaultOrientation is the EXIF value for "no rotation needed".
const DefaultOrientation = 1

// Status tags a Result as parsed or not.
type Status int

const (
	Unparsable Status = iota
	Parsed
)

func (s Status) String() string {
	if s == Parsed {
		return "parsed"
	}
	return "unparsable"
}

// Metadata holds the extracted values. Width and Height are decimal strings
// or Unknown.
type Metadata struct {
	Width       string `json:"width"`
	Height      string `json:"height"`
	Orientation int    `json:"orientation"`
}

// Result is what Read returns. Metadata is always usable.
type Result struct {
	Status Status
	Metadata
}

// Defaults returns the metadata used when nothing could be parsed.
func Defaults() Metadata {
	return Metadata{
		Width:       Unknown,
		Height:      Unknown,
		Orientation: DefaultOrientation,
	}
}

// Read parses EXIF data from r. Images without EXIF, or with corrupt EXIF,
// produce an Unparsable result carrying Defaults.
func Read(r io.Reader) (res Result) {
	defer func() {
		// goexif can panic on some truncated inputs.
		if recover() != nil {
			res = Result{Status: Unparsable, Metadata: Defaults()}
		}
	}()

	x, err := goexif.Decode(r)
	if x == nil || (err != nil && goexif.IsCriticalError(err)) {
		return Result{Status: Unparsable, Metadata: Defaults()}
	}

	md := Defaults()
	md.Orientation = orientation(x)
	if w, ok := intTag(x, goexif.PixelXDimension, goexif.ImageWidth); ok {
		md.Width = strconv.Itoa(w)
	}
	if h, ok := intTag(x, goexif.PixelYDimension, goexif.ImageLength); ok {
		md.Height = strconv.Itoa(h)
	}
	return Result{Status: Parsed, Metadata: md}
}

// orientation returns the Orientation tag when it holds one of the eight
// defined values.
func orientation(x *goexif.Exif) int {
	v, ok := intTag(x, goexif.Orientation)
	if !ok || v < 1 || v > 8 {
		return DefaultOrientation
	}
	return v
}

// intTag returns the first of names that is present and integer valued.
func intTag(x *goexif.Exif, names ...goexif.FieldName) (int, bool) {
	for _, name := range names {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		v, err := tag.Int(0)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}
