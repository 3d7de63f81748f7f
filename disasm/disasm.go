// Package disasm statically recovers the instruction set of an obfuscated,
// versioned virtual machine embedded in a challenge platform's JavaScript.
//
// The interpreter ships as heavily obfuscated source: handler functions are
// renamed every build, opcode slot numbers are shuffled, and operand arrays
// are salted with marker tokens.  This package consumes the parsed AST of
// that source (produced by the script package's otto front end) and
// reconstructs, per numeric opcode slot, which of the VM's instruction kinds
// it implements, its operand layout, the payload decryption key/offset, and
// the bytecode payload strings.
//
// Recovery is heuristic, best-effort and versioned: the structural constants
// live in Heuristics and are tuned against observed builds.  Slots that
// match no known shape are left unresolved and reported through the
// diagnostic trace rather than failing the run.  The engine performs no
// I/O, holds no global state, and is deterministic: identical input always
// yields an identical table, bundle, and trace.
package disasm

import (
	"errors"
	"sort"
	"strconv"

	"github.com/robertkrimen/otto/ast"
)

// Fatal conditions: the external decoder cannot run without these artifacts,
// so their absence fails the whole disassembly.  Everything else degrades to
// a diagnostic.
var (
	ErrInitialPayloadNotFound = errors.New("disasm: initial vm payload not found")
	ErrKeyExprNotFound        = errors.New("disasm: key expression not found")
	ErrKeyByteNotFound        = errors.New("disasm: key byte not found")
)

// Bundle is the complete recovery result handed to the external bytecode
// executor.  It is produced once per run from one immutable AST and is not
// mutated afterwards.
type Bundle struct {
	Opcodes OpcodeTable

	// KeyExpr is the byte-masking expression fragment the payload decoder
	// re-evaluates; KeyExprSource is its original source text.
	KeyExpr       ast.Expression
	KeyExprSource string

	KeyByte uint16
	Offset  int16

	InitialVMPayload  string
	MainVMPayload     string
	CompressorCharset string
	InitArgument      string

	// CreateFunctionIdent names the VM's dynamic function-construction
	// helper; DispatcherName is the sentinel identifier of the dispatch
	// loop.
	CreateFunctionIdent string
	DispatcherName      string

	// FunctionToOpcodeIndex maps the decimal opcode index to the handler
	// name that resolved to it, including fallback aliases.
	FunctionToOpcodeIndex map[string]string

	// Diagnostics is the ordered event trace of the run.
	Diagnostics []Diagnostic
}

// Disassemble runs the full recovery pipeline with default heuristics.
// program is the parsed interpreter source; src is the raw text, used only
// for slicing out the key-expression fragment.
func Disassemble(program *ast.Program, src string) (*Bundle, error) {
	return DisassembleWithHeuristics(program, src, DefaultHeuristics())
}

// DisassembleWithHeuristics runs the pipeline with caller-tuned structural
// constants.  It always returns as complete a bundle as it could build; the
// error is non-nil only when a required artifact is entirely absent.
func DisassembleWithHeuristics(program *ast.Program, src string, h Heuristics) (*Bundle, error) {
	diag := &DiagnosticTrace{}

	reg, fold := ClassifyFunctions(program, h, diag)
	ko := ExtractKeyOffset(program, src, h)
	pl := LocatePayloads(program, h)
	instr := ClassifyInstructions(program, reg, fold, h, diag)

	names := reconcile(reg, instr.Opcodes, h, diag)

	bundle := &Bundle{
		Opcodes:               instr.Opcodes,
		KeyExpr:               ko.KeyExpr,
		KeyExprSource:         ko.KeyExprSource,
		KeyByte:               reg.KeyByte,
		Offset:                ko.Offset,
		InitialVMPayload:      pl.InitialVM,
		MainVMPayload:         pl.MainVM,
		CompressorCharset:     pl.CompressorCharset,
		InitArgument:          pl.InitArgument,
		CreateFunctionIdent:   instr.CreateFunctionIdent,
		DispatcherName:        DispatcherName,
		FunctionToOpcodeIndex: names,
		Diagnostics:           diag.events,
	}

	if !pl.InitialVMFound {
		return nil, ErrInitialPayloadNotFound
	}
	if !ko.KeyExprFound {
		return nil, ErrKeyExprNotFound
	}
	if !reg.KeyByteFound {
		return nil, ErrKeyByteNotFound
	}
	return bundle, nil
}

// reconcile maps every registered handler name to an opcode slot.  Names
// whose slot holds a classified opcode resolve directly; the rest are
// retried by comparing their captured raw bits, normalized, against the
// normalized bits of every table entry.  Names that still fail stay
// permanently unmapped and are reported in the trace.
func reconcile(reg *FunctionRegistry, opcodes OpcodeTable, h Heuristics, diag *DiagnosticTrace) map[string]string {
	// Normalized-bits lookup over the completed table.  Entries whose bits
	// normalize to nothing carry no signal and are skipped.  Iteration is
	// in slot order so collisions resolve the same way every run.
	slots := make([]uint16, 0, len(opcodes))
	for idx := range opcodes {
		slots = append(slots, idx)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	normToSlot := make(map[string]uint16, len(opcodes))
	for _, idx := range slots {
		norm := NormalizeBits(h, opcodes[idx].Bits)
		if len(norm) == 0 {
			continue
		}
		key := bitsKey(norm)
		if _, taken := normToSlot[key]; !taken {
			normToSlot[key] = idx
		}
	}

	names := make([]string, 0, len(reg.Functions))
	for name := range reg.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(reg.Functions))
	for _, name := range names {
		idx := reg.Functions[name]

		if h.noiseIndex(idx) {
			diag.add(DiagSkip, "reconcile: %q skipped, slot %d is marker noise", name, idx)
			continue
		}

		if _, ok := opcodes[idx]; ok {
			out[strconv.Itoa(int(idx))] = name
			continue
		}

		if raw, ok := reg.RawBits[idx]; ok {
			norm := NormalizeBits(h, raw)
			if len(norm) > 0 {
				if slot, ok := normToSlot[bitsKey(norm)]; ok {
					out[strconv.Itoa(int(slot))] = name
					diag.add(DiagInfo, "reconcile: %q aliased slot %d -> %d via normalized bits", name, idx, slot)
					continue
				}
			}
			diag.add(DiagMiss, "reconcile: %q slot %d has no normalized-bits match", name, idx)
			continue
		}

		diag.add(DiagMiss, "reconcile: %q slot %d unresolved, no captured bits", name, idx)
	}
	return out
}
