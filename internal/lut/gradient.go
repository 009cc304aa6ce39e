package lut

// bgr is one table entry in BGR component order.
type bgr = [ChannelCount]byte

// ramp returns n samples linearly interpolated from lo to hi, endpoints
// inclusive. For n == 1 the single sample is lo.
func ramp(lo, hi bgr, n int) []bgr {
	out := make([]bgr, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		for c := 0; c < ChannelCount; c++ {
			v := float64(lo[c]) + (float64(hi[c])-float64(lo[c]))*t
			out[i][c] = byte(v)
		}
	}
	return out
}

// BuildGradient constructs a custom table: a black-to-white ramp of length
// 256-step followed by a dark-to-saturated ramp of length step in the
// requested channel. The result is always exactly 256 entries; if the
// concatenation ever falls short the table is re-interpolated between its
// first and last samples rather than returned malformed.
func BuildGradient(ch Channel, step int) ([]byte, error) {
	if step < 1 || step > EntryCount-1 {
		return nil, ErrInvalidStep
	}

	var dark, sat bgr
	dark[int(ch)] = 64
	sat[int(ch)] = 255

	entries := ramp(bgr{0, 0, 0}, bgr{255, 255, 255}, EntryCount-step)
	entries = append(entries, ramp(dark, sat, step)...)

	if len(entries) != EntryCount {
		entries = ramp(entries[0], entries[len(entries)-1], EntryCount)
	}

	return flatten(entries), nil
}

func flatten(entries []bgr) []byte {
	out := make([]byte, 0, len(entries)*ChannelCount)
	for _, e := range entries {
		out = append(out, e[0], e[1], e[2])
	}
	return out
}
