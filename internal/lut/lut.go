// Package lut owns the catalog of color-mapping tables used to render
// thermal frames: built-in colormap ids understood by the processing
// primitive, synthesized channel gradients, and external .lut files.
//
// Every custom table in the catalog is normalized to exactly 256 BGR
// entries before it is accepted. Validation happens at load time, never
// at render time.
package lut

import (
	"errors"
	"fmt"
)

// EntryCount is the canonical number of entries in a lookup table.
const EntryCount = 256

// ChannelCount is the number of color components per entry (BGR).
const ChannelCount = 3

// TableBytes is the byte length of a normalized custom table.
const TableBytes = EntryCount * ChannelCount

var (
	// ErrInvalidStep reports a gradient step outside [1,255].
	ErrInvalidStep = errors.New("gradient step must be between 1 and 255")

	// ErrMalformedTable reports external table data that is not a list of
	// 3-integer tuples with components in [0,255].
	ErrMalformedTable = errors.New("malformed lookup table")

	// ErrEmptyTable reports an external table that parsed to zero entries.
	ErrEmptyTable = errors.New("empty lookup table")
)

// Kind discriminates the two table variants.
type Kind int

const (
	// KindBuiltin identifies a colormap by the integer id the external
	// color-mapping primitive understands.
	KindBuiltin Kind = iota

	// KindCustom is an explicit 256-entry BGR byte table owned by the catalog.
	KindCustom
)

// Table is a named color-mapping table.
//
// Builtin tables carry only ID. Custom tables carry Data: exactly
// EntryCount*ChannelCount contiguous bytes, BGR per entry, immutable once
// the table has entered the catalog.
type Table struct {
	Name string
	Kind Kind
	ID   int
	Data []byte
}

// Validate checks the shape invariant of a custom table. Builtin tables
// always validate (correctness is delegated to the mapping primitive).
func (t Table) Validate() error {
	if t.Kind == KindBuiltin {
		return nil
	}
	if len(t.Data) != TableBytes {
		return fmt.Errorf("%w: table %q has %d bytes, want %d",
			ErrMalformedTable, t.Name, len(t.Data), TableBytes)
	}
	return nil
}

// Channel selects the color component a synthesized gradient ramps in.
type Channel int

const (
	ChannelBlue Channel = iota
	ChannelGreen
	ChannelRed
)

func (c Channel) String() string {
	switch c {
	case ChannelBlue:
		return "blue"
	case ChannelGreen:
		return "green"
	case ChannelRed:
		return "red"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}
