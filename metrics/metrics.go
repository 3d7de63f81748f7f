// Package metrics provides lightweight, lock-free solver counters using
// atomic operations so they impose minimal overhead on hot paths.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks aggregate statistics for the challenge solver.
//
// All counters are accessed exclusively through atomic operations, which means:
//   - There is no mutex contention even with many concurrent solve jobs.
//   - The struct may be embedded or passed as a pointer without additional
//     synchronisation.
//   - Reads and writes are linearisable: a value read after a write always
//     reflects at least that write.
//
// Fields are uint64 and aligned to 64-bit boundaries to satisfy the
// requirements of sync/atomic on 32-bit platforms.
type Metrics struct {
	// ScriptsFetched is the number of interpreter scripts retrieved since
	// startup.
	ScriptsFetched uint64

	// Disassemblies is the number of interpreter scripts that produced a
	// complete instruction bundle.
	Disassemblies uint64

	// DisassemblyFailures is the number of scripts the recovery engine
	// rejected with a fatal error.
	DisassemblyFailures uint64

	// SlotsResolved is the cumulative count of opcode slots mapped to an
	// instruction kind, across all disassemblies.
	SlotsResolved uint64

	// FallbackAliases is the cumulative count of handler names that only
	// resolved through the normalized-bits fallback rather than a direct
	// dispatcher slot.
	FallbackAliases uint64

	// Submissions is the number of solution payloads posted back to the
	// challenge endpoint.
	Submissions uint64

	// startTime records when the metrics instance was created so that
	// SolvesPerSecond can compute a meaningful rate.
	startTime time.Time
}

// NewMetrics creates a Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// IncrementFetched atomically increments the scripts-fetched counter.
func (m *Metrics) IncrementFetched() {
	atomic.AddUint64(&m.ScriptsFetched, 1)
}

// IncrementDisassemblies atomically increments the completed-disassembly
// counter.
func (m *Metrics) IncrementDisassemblies() {
	atomic.AddUint64(&m.Disassemblies, 1)
}

// IncrementDisassemblyFailures atomically increments the fatal-error counter.
func (m *Metrics) IncrementDisassemblyFailures() {
	atomic.AddUint64(&m.DisassemblyFailures, 1)
}

// AddSlotsResolved atomically adds n to the resolved-slot counter.  One
// disassembly resolves many slots, so this takes a count rather than
// incrementing.
func (m *Metrics) AddSlotsResolved(n int) {
	if n > 0 {
		atomic.AddUint64(&m.SlotsResolved, uint64(n))
	}
}

// AddFallbackAliases atomically adds n to the fallback-alias counter.
func (m *Metrics) AddFallbackAliases(n int) {
	if n > 0 {
		atomic.AddUint64(&m.FallbackAliases, uint64(n))
	}
}

// IncrementSubmissions atomically increments the solution-submission counter.
func (m *Metrics) IncrementSubmissions() {
	atomic.AddUint64(&m.Submissions, 1)
}

// SolvesPerSecond returns the average completed-disassembly rate since the
// Metrics instance was created.  Returns 0 if called in the same wall-clock
// second as creation to avoid division by zero.
func (m *Metrics) SolvesPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.Disassemblies)) / elapsed
}

// Snapshot returns a point-in-time copy of the counters.  Because the
// separate atomic loads are not performed under a single lock, the snapshot
// may be very slightly inconsistent at nanosecond granularity, which is
// acceptable for monitoring purposes.
func (m *Metrics) Snapshot() (fetched, disassemblies, failures, slots uint64) {
	return atomic.LoadUint64(&m.ScriptsFetched),
		atomic.LoadUint64(&m.Disassemblies),
		atomic.LoadUint64(&m.DisassemblyFailures),
		atomic.LoadUint64(&m.SlotsResolved)
}
