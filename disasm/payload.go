package disasm

import (
	"strings"

	"github.com/robertkrimen/otto/ast"
)

// PayloadBundle holds the VM bytecode strings and auxiliary literals lifted
// out of the interpreter source.  InitialVM is required downstream; the
// remaining fields are best-effort.
type PayloadBundle struct {
	// InitialVM is the bootstrap bytecode payload, recognised by the
	// 300–999 length band.  First qualifying match wins.
	InitialVM      string
	InitialVMFound bool

	// MainVM is the main bytecode payload, recognised by length >= 1000.
	// The main payload can legitimately appear more than once; the last
	// occurrence wins.
	MainVM      string
	MainVMFound bool

	// CompressorCharset is the 65-character alphabet of the payload
	// compressor, identified by its length and the presence of '$', '-'
	// and '+'.
	CompressorCharset string

	// InitArgument is the slash-delimited, colon-segmented bootstrap
	// argument.
	InitArgument string
}

// payloadLocator scans call expressions and string literals independently.
// The callee name of payload-carrying calls is deliberately ignored: it is
// renamed every build, while the argument length bands are stable.
type payloadLocator struct {
	h      Heuristics
	bundle *PayloadBundle
}

// LocatePayloads walks the program for the VM payload strings and auxiliary
// charset/init literals.
func LocatePayloads(program *ast.Program, h Heuristics) *PayloadBundle {
	pl := &payloadLocator{h: h, bundle: &PayloadBundle{}}
	ast.Walk(pl, program)
	return pl.bundle
}

func (pl *payloadLocator) Enter(node ast.Node) ast.Visitor {
	switch n := node.(type) {
	case *ast.CallExpression:
		pl.call(n)
	case *ast.StringLiteral:
		pl.literal(n.Value)
	}
	return pl
}

func (pl *payloadLocator) Exit(ast.Node) {}

func (pl *payloadLocator) call(n *ast.CallExpression) {
	if _, ok := n.Callee.(*ast.Identifier); !ok {
		return
	}
	if len(n.ArgumentList) == 0 {
		return
	}
	str, ok := n.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return
	}

	switch length := len(str.Value); {
	case length >= pl.h.MainPayloadMin:
		pl.bundle.MainVM = str.Value
		pl.bundle.MainVMFound = true
	case length >= pl.h.InitialPayloadMin && !pl.bundle.InitialVMFound:
		pl.bundle.InitialVM = str.Value
		pl.bundle.InitialVMFound = true
	}
}

func (pl *payloadLocator) literal(v string) {
	if len(v) == pl.h.CharsetLen &&
		strings.Contains(v, "$") && strings.Contains(v, "-") && strings.Contains(v, "+") {
		pl.bundle.CompressorCharset = v
	}

	if len(v) > pl.h.InitArgumentMin &&
		strings.HasPrefix(v, "/") && strings.HasSuffix(v, "/") &&
		strings.Count(v, ":") == 2 &&
		!strings.Contains(v, "/b/") {
		pl.bundle.InitArgument = v
	}
}
