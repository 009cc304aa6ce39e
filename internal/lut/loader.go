package lut

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseTable reads a textual table: a literal list of 3-integer tuples,
// e.g. "[(0, 0, 0), (128, 64, 255)]". Each component must be an integer in
// [0,255]. Returns ErrMalformedTable on any structural violation and
// ErrEmptyTable when the list parses but holds no entries.
func ParseTable(r io.Reader) ([][ChannelCount]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table source: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil, fmt.Errorf("%w: top level is not a list", ErrMalformedTable)
	}
	body := strings.TrimSpace(text[1 : len(text)-1])
	if body == "" {
		return nil, ErrEmptyTable
	}

	var entries [][ChannelCount]byte
	for len(body) > 0 {
		open := strings.IndexByte(body, '(')
		if open != 0 {
			return nil, fmt.Errorf("%w: expected tuple, got %q", ErrMalformedTable, head(body))
		}
		close_ := strings.IndexByte(body, ')')
		if close_ < 0 {
			return nil, fmt.Errorf("%w: unterminated tuple", ErrMalformedTable)
		}

		entry, err := parseTuple(body[1:close_])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)

		body = strings.TrimSpace(body[close_+1:])
		if body == "" {
			break
		}
		if body[0] != ',' {
			return nil, fmt.Errorf("%w: expected separator, got %q", ErrMalformedTable, head(body))
		}
		body = strings.TrimSpace(body[1:])
	}

	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	return entries, nil
}

func parseTuple(s string) ([ChannelCount]byte, error) {
	var entry [ChannelCount]byte
	parts := strings.Split(s, ",")
	if len(parts) != ChannelCount {
		return entry, fmt.Errorf("%w: tuple has %d components, want %d",
			ErrMalformedTable, len(parts), ChannelCount)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return entry, fmt.Errorf("%w: non-numeric component %q", ErrMalformedTable, strings.TrimSpace(p))
		}
		if v < 0 || v > 255 {
			return entry, fmt.Errorf("%w: component %d out of byte range", ErrMalformedTable, v)
		}
		entry[i] = byte(v)
	}
	return entry, nil
}

func head(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// Normalize turns parsed entries into a canonical 256-entry flat BGR table.
// A 256-entry input is accepted as-is; any other length is resampled with
// linear interpolation along the entry axis. Both paths pass the same final
// shape validation.
func Normalize(entries [][ChannelCount]byte) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	if len(entries) != EntryCount {
		entries = resample(entries, EntryCount)
	}

	t := Table{Kind: KindCustom, Data: flatten(entries)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t.Data, nil
}

// resample performs linear interpolation along the entry axis, sampling the
// source at (i+0.5)*len/out-0.5 the way an image resize would.
func resample(entries [][ChannelCount]byte, out int) [][ChannelCount]byte {
	n := len(entries)
	res := make([][ChannelCount]byte, out)
	scale := float64(n) / float64(out)
	for i := 0; i < out; i++ {
		pos := (float64(i)+0.5)*scale - 0.5
		if pos < 0 {
			pos = 0
		}
		if pos > float64(n-1) {
			pos = float64(n - 1)
		}
		lo := int(math.Floor(pos))
		hi := lo
		if lo < n-1 {
			hi = lo + 1
		}
		frac := pos - float64(lo)
		for c := 0; c < ChannelCount; c++ {
			v := float64(entries[lo][c])*(1-frac) + float64(entries[hi][c])*frac
			res[i][c] = byte(math.Round(v))
		}
	}
	return res
}
