// Package config loads the solver's JSON configuration: target and proxy
// settings for the challenge client, worker sizing, and optional overrides
// for the recovery engine's structural heuristics.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/firasghr/GoChallengeSolver/disasm"
)

// Config holds all tunable parameters for the challenge solver.  It is
// loaded once at startup and then shared as a read-only value, so no
// additional synchronisation is needed after initialisation.
type Config struct {
	// TargetURL is the challenge-protected page the solver fetches.
	TargetURL string `json:"target_url"`

	// ProxyFile is the path to a newline-delimited proxy list.  Empty
	// means direct connections.
	ProxyFile string `json:"proxy_file"`

	// RequestTimeout is the end-to-end timeout for one HTTP exchange.
	// JSON configs may give it as a duration string such as "30s".
	RequestTimeout Duration `json:"request_timeout"`

	// Workers is the number of concurrent solve jobs.  Each job runs its
	// own parse and disassembly; the recovery engine itself stays
	// single-threaded per input.
	Workers int `json:"workers"`

	// MaxRetries is how many times a failed solve is retried before being
	// reported as a permanent failure.
	MaxRetries int `json:"max_retries"`

	// Heuristics optionally overrides the recovery engine's structural
	// constants.  Zero-valued fields keep the engine defaults, so a config
	// file only needs to name the constants that moved in a new
	// interpreter build.
	Heuristics HeuristicsOverride `json:"heuristics"`
}

// HeuristicsOverride mirrors disasm.Heuristics with zero meaning "keep the
// default".  The obfuscator revs its structural constants between builds;
// overriding them from configuration avoids a rebuild when that happens.
type HeuristicsOverride struct {
	DispatcherMinStatements int    `json:"dispatcher_min_statements"`
	MarkerIndex             uint16 `json:"marker_index"`
	MarkerPair              uint16 `json:"marker_pair"`
	SeparatorIndex          uint16 `json:"separator_index"`
	MaxIndex                uint16 `json:"max_index"`
	KeyMask                 uint32 `json:"key_mask"`
	InitialPayloadMin       int    `json:"initial_payload_min"`
	MainPayloadMin          int    `json:"main_payload_min"`
	CharsetLen              int    `json:"charset_len"`
	InitArgumentMin         int    `json:"init_argument_min"`
}

// Duration wraps time.Duration so JSON configs can use "30s"-style strings.
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a plain nanosecond
// count.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return fmt.Errorf("config: parse duration %q: %w", asString, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var asInt int64
	if err := json.Unmarshal(data, &asInt); err != nil {
		return fmt.Errorf("config: duration must be a string or integer: %w", err)
	}
	*d = Duration(asInt)
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Load reads a JSON file at filename and deserialises it into a Config on
// top of the defaults.  Unknown fields are rejected so typos surface at
// startup instead of silently keeping defaults.
func Load(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 – operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	cfg := Default()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return cfg, nil
}

// Default returns a fresh Config with working defaults for a single-worker
// direct-connection run.
func Default() *Config {
	return &Config{
		RequestTimeout: Duration(30 * time.Second),
		Workers:        1,
		MaxRetries:     3,
	}
}

// EngineHeuristics merges the override block onto the engine defaults and
// returns the result.
func (c *Config) EngineHeuristics() disasm.Heuristics {
	h := disasm.DefaultHeuristics()
	o := c.Heuristics
	if o.DispatcherMinStatements > 0 {
		h.DispatcherMinStatements = o.DispatcherMinStatements
	}
	if o.MarkerIndex > 0 {
		h.MarkerIndex = o.MarkerIndex
	}
	if o.MarkerPair > 0 {
		h.MarkerPair = o.MarkerPair
	}
	if o.SeparatorIndex > 0 {
		h.SeparatorIndex = o.SeparatorIndex
	}
	if o.MaxIndex > 0 {
		h.MaxIndex = o.MaxIndex
	}
	if o.KeyMask > 0 {
		h.KeyMask = o.KeyMask
	}
	if o.InitialPayloadMin > 0 {
		h.InitialPayloadMin = o.InitialPayloadMin
	}
	if o.MainPayloadMin > 0 {
		h.MainPayloadMin = o.MainPayloadMin
	}
	if o.CharsetLen > 0 {
		h.CharsetLen = o.CharsetLen
	}
	if o.InitArgumentMin > 0 {
		h.InitArgumentMin = o.InitArgumentMin
	}
	return h
}
