package disasm

import "fmt"

// DiagLevel classifies a diagnostic event.
type DiagLevel int

const (
	// DiagInfo records a successful but noteworthy resolution, such as a
	// fallback alias.
	DiagInfo DiagLevel = iota
	// DiagSkip records a mapping that was dropped by the noise policy.
	DiagSkip
	// DiagMiss records a resolution attempt that found nothing.
	DiagMiss
)

func (l DiagLevel) String() string {
	switch l {
	case DiagInfo:
		return "INFO"
	case DiagSkip:
		return "SKIP"
	case DiagMiss:
		return "MISS"
	}
	return "UNKNOWN"
}

// Diagnostic is one event emitted during a disassembly run.  The engine
// never logs directly; it accumulates events in discovery order so callers
// can render them and tests can pin the trace.
type Diagnostic struct {
	Level   DiagLevel
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s", d.Level, d.Message)
}

// DiagnosticTrace accumulates events for one disassembly run.  The zero
// value is ready to use.
type DiagnosticTrace struct {
	events []Diagnostic
}

// Events returns the accumulated events in discovery order.
func (d *DiagnosticTrace) Events() []Diagnostic {
	return d.events
}

func (d *DiagnosticTrace) add(level DiagLevel, format string, args ...interface{}) {
	d.events = append(d.events, Diagnostic{Level: level, Message: fmt.Sprintf(format, args...)})
}
