package disasm

// Heuristics collects the structural constants the recovery passes match
// against.  None of them are protocol invariants: they are tuned empirically
// against observed interpreter builds and are expected to need retuning when
// the obfuscator revs.  Callers that track a new build can override
// individual fields; the zero value is not usable, start from
// DefaultHeuristics.
type Heuristics struct {
	// DispatcherMinStatements is the statement count above which a function
	// body is taken to be the VM dispatch loop.  The obfuscator renames or
	// anonymises the dispatcher between builds while its bulk stays stable,
	// so size is the only reliable signature.
	DispatcherMinStatements int

	// MarkerIndex and MarkerPair form the (195,188) separator pair the
	// obfuscator injects into operand arrays.  MarkerIndex alone is also a
	// known-noise slot index.
	MarkerIndex uint16
	MarkerPair  uint16

	// SeparatorIndex (127) is stripped wherever it appears in operand bits
	// and rejected as a slot index.
	SeparatorIndex uint16

	// MaxIndex bounds plausible slot indices; resolutions above it are
	// treated as constant-folding noise and dropped.
	MaxIndex uint16

	// KeyMask is the byte mask the payload decoder loop applies; the key
	// expression is recognised by an AND against this value.
	KeyMask uint32

	// InitialPayloadMin and MainPayloadMin are the string-length bands that
	// separate the initial bootstrap payload from the main bytecode payload.
	InitialPayloadMin int
	MainPayloadMin    int

	// CharsetLen is the exact length of the compressor charset literal.
	CharsetLen int

	// InitArgumentMin is the minimum length of the slash-delimited init
	// argument string.
	InitArgumentMin int
}

// DefaultHeuristics returns the tuning that matches the interpreter builds
// this engine was last verified against.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		DispatcherMinStatements: 50,
		MarkerIndex:             195,
		MarkerPair:              188,
		SeparatorIndex:          127,
		MaxIndex:                1000,
		KeyMask:                 255,
		InitialPayloadMin:       300,
		MainPayloadMin:          1000,
		CharsetLen:              65,
		InitArgumentMin:         20,
	}
}

// noiseIndex reports whether idx is a known marker/separator value or out of
// the plausible slot range.  Such resolutions are parse noise, never real
// opcode slots.
func (h Heuristics) noiseIndex(idx uint16) bool {
	return idx == h.MarkerIndex || idx == h.SeparatorIndex || idx > h.MaxIndex
}
