package disasm

// NormalizeBits strips the obfuscator's marker tokens from an operand
// sequence so that bit lists captured in different passes can be compared
// for equality.  Maximal consecutive runs of the (195,188) pair are removed,
// as is every isolated 127; a 195 not followed by 188 is real data and is
// preserved.  The relative order of all other elements is unchanged.
//
// Stripping a separator can expose a new marker pair, so passes run until a
// fixpoint is reached; the result is idempotent for every input.
func NormalizeBits(h Heuristics, raw []uint16) []uint16 {
	out := normalizePass(h, raw)
	for len(out) < len(raw) {
		raw = out
		out = normalizePass(h, raw)
	}
	return out
}

func normalizePass(h Heuristics, raw []uint16) []uint16 {
	out := make([]uint16, 0, len(raw))
	for i := 0; i < len(raw); {
		if i+1 < len(raw) && raw[i] == h.MarkerIndex && raw[i+1] == h.MarkerPair {
			for i+1 < len(raw) && raw[i] == h.MarkerIndex && raw[i+1] == h.MarkerPair {
				i += 2
			}
			continue
		}
		if raw[i] == h.SeparatorIndex {
			i++
			continue
		}
		out = append(out, raw[i])
		i++
	}
	return out
}

// bitsEqual compares two operand sequences element-wise.
func bitsEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// bitsKey renders a bit sequence as a compact map key.
func bitsKey(bits []uint16) string {
	// Two bytes per element keeps keys unambiguous without formatting cost.
	buf := make([]byte, 0, len(bits)*2)
	for _, b := range bits {
		buf = append(buf, byte(b>>8), byte(b))
	}
	return string(buf)
}
