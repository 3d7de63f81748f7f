package disasm

import (
	"regexp"
	"strconv"

	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/token"
)

// DispatcherName is the sentinel identifier assigned to the VM dispatch
// loop.  The obfuscator renames or anonymises that function between builds,
// so every pass refers to it by this fixed name instead of whatever the
// source declares.
const DispatcherName = "VM_ENTRY"

// FunctionRegistry is the outcome of the function-classification pass: the
// handler-name to slot-index table, the constants-table slot, the key byte
// lifted from the constants array, and a side capture of raw operand bits
// per slot.  RawBits is retained only for fallback matching and is never
// authoritative.
type FunctionRegistry struct {
	Functions map[string]uint16
	RawBits   map[uint16][]uint16

	Constants uint16

	KeyByte      uint16
	KeyByteFound bool

	// DispatcherFound reports whether any function crossed the dispatcher
	// size threshold.
	DispatcherFound bool
}

// staticIndexPattern pulls a slot number out of an obfuscated static
// property name such as "_0x3f2e81".  Later interpreter builds hide slot
// assignments behind dot access with the digits embedded in the name.
var staticIndexPattern = regexp.MustCompile(`[0-9]+`)

// functionClassifier walks the whole program once, tracking which function
// body encloses each assignment so slot mappings are only harvested inside
// the dispatcher.
type functionClassifier struct {
	h    Heuristics
	fold *ConstantFolder
	reg  *FunctionRegistry
	diag *DiagnosticTrace

	// funcs is the stack of enclosing function literals; big mirrors it
	// with the dispatcher flag for each level.
	funcs []*ast.FunctionLiteral
	big   []bool
}

// ClassifyFunctions locates the VM dispatcher by statement count and builds
// the slot-index mapping from computed-member assignments inside it.  The
// returned folder keeps the variable table accumulated along the way so the
// instruction pass can reuse it.
func ClassifyFunctions(program *ast.Program, h Heuristics, diag *DiagnosticTrace) (*FunctionRegistry, *ConstantFolder) {
	reg := &FunctionRegistry{
		Functions: make(map[string]uint16),
		RawBits:   make(map[uint16][]uint16),
	}
	fc := &functionClassifier{
		h:    h,
		fold: NewConstantFolder(),
		reg:  reg,
		diag: diag,
	}
	ast.Walk(fc, program)
	return reg, fc.fold
}

func (fc *functionClassifier) inDispatcher() bool {
	return len(fc.big) > 0 && fc.big[len(fc.big)-1]
}

// statementCount returns the number of top-level statements in a function
// body, tolerating bodies that are not block statements.
func statementCount(body ast.Statement) int {
	if block, ok := body.(*ast.BlockStatement); ok {
		return len(block.List)
	}
	if body == nil {
		return 0
	}
	return 1
}

func (fc *functionClassifier) Enter(node ast.Node) ast.Visitor {
	switch n := node.(type) {
	case *ast.FunctionLiteral:
		isBig := statementCount(n.Body) > fc.h.DispatcherMinStatements
		fc.funcs = append(fc.funcs, n)
		fc.big = append(fc.big, isBig)
		if isBig {
			fc.reg.DispatcherFound = true
		}

	case *ast.VariableExpression:
		if n.Initializer != nil {
			if v, ok := fc.fold.Resolve(n.Initializer); ok {
				fc.fold.Define(n.Name, v)
			}
		}

	case *ast.AssignExpression:
		fc.assignment(n)
	}
	return fc
}

func (fc *functionClassifier) Exit(node ast.Node) {
	if n, ok := node.(*ast.FunctionLiteral); ok {
		if len(fc.funcs) > 0 && fc.funcs[len(fc.funcs)-1] == n {
			fc.funcs = fc.funcs[:len(fc.funcs)-1]
			fc.big = fc.big[:len(fc.big)-1]
		}
	}
}

func (fc *functionClassifier) assignment(n *ast.AssignExpression) {
	if n.Operator != token.ASSIGN {
		return
	}

	// Plain identifier assignments feed the constant-folding table.
	if ident, ok := n.Left.(*ast.Identifier); ok {
		if v, ok := fc.fold.Resolve(n.Right); ok {
			fc.fold.Define(ident.Name, v)
		}
		return
	}

	if !fc.inDispatcher() {
		return
	}

	idx, ok := fc.memberIndex(n.Left)
	if !ok {
		return
	}

	// Raw operand bits are captured from every array-literal right side,
	// whether or not the index survives the noise filter.
	if arr, isArray := n.Right.(*ast.ArrayLiteral); isArray {
		if bits := captureRawBits(arr); len(bits) > 0 {
			fc.reg.RawBits[idx] = bits
		}
	}

	if fc.h.noiseIndex(idx) {
		fc.diag.add(DiagSkip, "functions: dropped slot %d (marker or out of range)", idx)
		return
	}

	if name, ok := extractFunctionName(n.Right); ok {
		fc.reg.Functions[name] = idx
		return
	}

	if arr, isArray := n.Right.(*ast.ArrayLiteral); isArray {
		fc.reg.Constants = idx
		if len(arr.Value) >= 4 {
			if num, ok := arr.Value[3].(*ast.NumberLiteral); ok {
				if v, ok := numberValue(num); ok {
					fc.reg.KeyByte = uint16(v)
					fc.reg.KeyByteFound = true
				}
			}
		}
		return
	}

	// Computed-member assignments inside the dispatcher that resolve to
	// neither a handler name nor the constants array implement inline VM
	// behaviour: the slot belongs to the dispatcher itself.
	if fc.reg.DispatcherFound {
		fc.reg.Functions[DispatcherName] = idx
	}
}

// memberIndex resolves the slot index of an assignment target.  Computed
// members go through the folder; static members fall back to digit
// extraction from the property name.
func (fc *functionClassifier) memberIndex(target ast.Expression) (uint16, bool) {
	switch m := target.(type) {
	case *ast.BracketExpression:
		return fc.fold.ResolveIndex(m.Member)
	case *ast.DotExpression:
		digits := staticIndexPattern.FindString(m.Identifier.Name)
		if digits == "" {
			return 0, false
		}
		v, err := strconv.ParseUint(digits, 10, 16)
		if err != nil {
			return 0, false
		}
		return uint16(v), true
	}
	return 0, false
}

// extractFunctionName recovers the handler identifier from the right side of
// a slot assignment, unwrapping one level of call or sequence indirection.
func extractFunctionName(expr ast.Expression) (string, bool) {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e.Name, true
	case *ast.CallExpression:
		if len(e.ArgumentList) > 0 {
			if ident, ok := e.ArgumentList[0].(*ast.Identifier); ok {
				return ident.Name, true
			}
		}
		return "", false
	case *ast.SequenceExpression:
		if len(e.Sequence) == 0 {
			return "", false
		}
		return extractFunctionName(e.Sequence[len(e.Sequence)-1])
	}
	return "", false
}

// captureRawBits lifts the element values of an array literal verbatim:
// numeric literals, number-parseable strings, and unary-negated numerics.
// Unsupported element shapes are skipped.
func captureRawBits(arr *ast.ArrayLiteral) []uint16 {
	bits := make([]uint16, 0, len(arr.Value))
	for _, el := range arr.Value {
		switch e := el.(type) {
		case *ast.NumberLiteral:
			if v, ok := numberValue(e); ok {
				bits = append(bits, uint16(v))
			}
		case *ast.StringLiteral:
			if v, err := strconv.ParseFloat(e.Value, 64); err == nil {
				bits = append(bits, uint16(v))
			}
		case *ast.UnaryExpression:
			if num, ok := e.Operand.(*ast.NumberLiteral); ok && e.Operator == token.MINUS {
				if v, ok := numberValue(num); ok {
					bits = append(bits, uint16(int16(-v)))
				}
			}
		}
	}
	return bits
}
