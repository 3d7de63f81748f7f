package disasm

import (
	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/token"
)

// InstructionResult is the outcome of the instruction-classification pass.
type InstructionResult struct {
	// Opcodes maps slot indices to recovered instructions.
	Opcodes OpcodeTable

	// CreateFunctionIdent names the VM's dynamic function-construction
	// helper, identified by its return shape.
	CreateFunctionIdent string

	// WindowRegister is the slot whose handler name was consumed by a
	// top-level call assignment rather than a function body.
	WindowRegister uint16

	// Pending holds the handler names that were never claimed by a
	// function body.  The orchestrator retries them via normalized-bits
	// matching.
	Pending map[string]uint16
}

// instructionClassifier visits every function literal, claims its name from
// the pending pool, and classifies the body into a tagged instruction.
type instructionClassifier struct {
	h    Heuristics
	fold *ConstantFolder
	diag *DiagnosticTrace

	constants uint16
	res       *InstructionResult
}

// ClassifyInstructions builds the opcode table from the function registry.
// The registry's name table is copied; claimed names are removed from the
// copy so each slot is classified at most once.
func ClassifyInstructions(program *ast.Program, reg *FunctionRegistry, fold *ConstantFolder, h Heuristics, diag *DiagnosticTrace) *InstructionResult {
	pending := make(map[string]uint16, len(reg.Functions))
	for name, idx := range reg.Functions {
		pending[name] = idx
	}
	ic := &instructionClassifier{
		h:         h,
		fold:      fold,
		diag:      diag,
		constants: reg.Constants,
		res: &InstructionResult{
			Opcodes: make(OpcodeTable),
			Pending: pending,
		},
	}
	ast.Walk(ic, program)
	return ic.res
}

func (ic *instructionClassifier) Enter(node ast.Node) ast.Visitor {
	switch n := node.(type) {
	case *ast.AssignExpression:
		// A handler name consumed by "name = call(...)" at statement level
		// marks the window register rather than an instruction.
		if ident, ok := n.Left.(*ast.Identifier); ok {
			if _, isCall := n.Right.(*ast.CallExpression); isCall {
				if idx, ok := ic.res.Pending[ident.Name]; ok {
					delete(ic.res.Pending, ident.Name)
					ic.res.WindowRegister = idx
				}
			}
		}
	case *ast.FunctionLiteral:
		ic.classify(n)
	}
	return ic
}

func (ic *instructionClassifier) Exit(ast.Node) {}

func (ic *instructionClassifier) classify(fn *ast.FunctionLiteral) {
	body, ok := fn.Body.(*ast.BlockStatement)
	if !ok || len(body.List) == 0 {
		return
	}
	stmts := body.List

	// Oversized bodies are the dispatcher whatever their declared name.
	name := ""
	if len(stmts) > ic.h.DispatcherMinStatements {
		name = DispatcherName
	} else if fn.Name != nil {
		name = fn.Name.Name
	}
	if name == "" {
		return
	}

	ic.detectCreateFunction(name, stmts)

	idx, claimed := ic.res.Pending[name]
	if !claimed {
		return
	}
	delete(ic.res.Pending, name)

	if len(stmts) > ic.h.DispatcherMinStatements {
		// The dispatcher's behaviour is not a single instruction; it gets
		// a fixed default so the slot is not reported as a gap.
		ic.res.Opcodes[idx] = Opcode{Kind: KindSetProperty, Bits: []uint16{}}
		return
	}

	before := len(ic.res.Opcodes)

	if len(stmts) >= 2 {
		ic.secondToLast(idx, stmts)
	}
	ic.lastStatement(idx, stmts)

	if len(ic.res.Opcodes) == before {
		ic.diag.add(DiagMiss, "instructions: handler %q slot %d matched no known shape", name, idx)
	}
}

// detectCreateFunction recognises the dynamic function-construction helper:
// a return of computed member access on a static member with a binary index,
// preceded by an assignment.
func (ic *instructionClassifier) detectCreateFunction(name string, stmts []ast.Statement) {
	ret, ok := stmts[len(stmts)-1].(*ast.ReturnStatement)
	if !ok || len(stmts) < 2 {
		return
	}
	member, ok := ret.Argument.(*ast.BracketExpression)
	if !ok {
		return
	}
	prev, ok := stmts[len(stmts)-2].(*ast.ExpressionStatement)
	if !ok {
		return
	}
	if _, ok := member.Left.(*ast.DotExpression); !ok {
		return
	}
	if _, ok := member.Member.(*ast.BinaryExpression); !ok {
		return
	}
	if _, ok := prev.Expression.(*ast.AssignExpression); !ok {
		return
	}
	ic.res.CreateFunctionIdent = name
}

// secondToLast handles the test-chain and register-copy shapes hanging off
// the penultimate statement.
func (ic *instructionClassifier) secondToLast(idx uint16, stmts []ast.Statement) {
	switch stmt := stmts[len(stmts)-2].(type) {
	case *ast.ExpressionStatement:
		switch expr := stmt.Expression.(type) {
		case *ast.ConditionalExpression:
			// Ternary chain: tests and bits come from the conditional
			// alone, assignments from the whole body.
			assigned := newAssignmentExtractor()
			for _, s := range stmts {
				ast.Walk(assigned, s)
			}
			tests := newTestExtractor(ic.fold)
			ast.Walk(tests, expr)
			bits := newBitExtractor(ic.fold, ic.constants)
			ast.Walk(bits, expr)
			binBits := newBinaryBitExtractor(ic.fold, ic.constants, assigned)
			ast.Walk(binBits, expr)
			ic.dispatchByTestCount(idx, tests, bits, binBits)

		case *ast.AssignExpression:
			// Raw register-to-register copy.
			_, leftMember := expr.Left.(*ast.BracketExpression)
			_, rightMember := expr.Right.(*ast.BracketExpression)
			if leftMember && rightMember {
				ic.res.Opcodes[idx] = Opcode{Kind: KindSwapRegister, Bits: ic.plainBits(stmts)}
			}
		}

	case *ast.IfStatement:
		assigned := newAssignmentExtractor()
		for _, s := range stmts {
			ast.Walk(assigned, s)
		}
		tests := newTestExtractor(ic.fold)
		ast.Walk(tests, stmt)
		bits := newBitExtractor(ic.fold, ic.constants)
		bits.extractStatements(stmts)
		binBits := newBinaryBitExtractor(ic.fold, ic.constants, assigned)
		binBits.extractStatements(stmts)
		ic.dispatchByTestCount(idx, tests, bits, binBits)
	}
}

// dispatchByTestCount classifies a test chain purely by how many tests it
// contains, matched against the enum cardinalities in precedence order.
// A count matching nothing is an accepted gap, not an error.
func (ic *instructionClassifier) dispatchByTestCount(idx uint16, tests *testExtractor, bits *bitExtractor, binBits *binaryBitExtractor) {
	switch n := len(tests.tests); {
	case n == len(unaryOps):
		ic.handleUnary(tests, bits)
	case n == len(literalTypes):
		ic.handleLiteral(idx, tests, bits)
	case n == len(binaryOps) || n == len(binaryOps)-1:
		// Some builds fold the trailing operator into the dispatcher, so
		// one missing test is tolerated.
		ic.handleBinary(tests, binBits)
	case n == len(heapTypes):
		ic.handleHeap(idx, tests, bits)
	}
}

// drainBits removes and returns up to n leading elements of *bits.
func drainBits(bits *[]uint16, n int) []uint16 {
	if n > len(*bits) {
		n = len(*bits)
	}
	out := make([]uint16, n)
	copy(out, (*bits)[:n])
	*bits = (*bits)[n:]
	return out
}

// shiftTest removes and returns the first pending test value.
func shiftTest(tests *[]uint16) uint16 {
	t := (*tests)[0]
	*tests = (*tests)[1:]
	return t
}

// handleUnary assigns one Unary opcode per enumerant, draining one test and
// two bits per step.  The test value is itself the opcode slot.
func (ic *instructionClassifier) handleUnary(tests *testExtractor, bits *bitExtractor) {
	for _, op := range unaryOps {
		if len(tests.tests) == 0 {
			break
		}
		test := shiftTest(&tests.tests)
		ic.res.Opcodes[test] = Opcode{
			Kind:     KindUnary,
			Bits:     drainBits(&bits.bits, 2),
			Operator: op.JS(),
		}
	}
}

// handleLiteral builds the NewLiteral opcode: one shared bit pair, then a
// per-kind consumption schedule over the remaining bits.
func (ic *instructionClassifier) handleLiteral(idx uint16, tests *testExtractor, bits *bitExtractor) {
	shared := drainBits(&bits.bits, 2)
	cases := make(map[uint16]LiteralCase)

	for _, typ := range literalTypes {
		if len(tests.tests) == 0 {
			break
		}
		test := shiftTest(&tests.tests)

		var caseBits []uint16
		switch typ {
		case LiteralInteger, LiteralString, LiteralCopyState, LiteralArray:
			caseBits = drainBits(&bits.bits, 1)
		case LiteralRegexp:
			caseBits = append([]uint16(nil), bits.bits...)
		}
		cases[test] = LiteralCase{Bits: caseBits, Type: typ}
	}

	ic.res.Opcodes[idx] = Opcode{Kind: KindNewLiteral, Bits: shared, Literals: cases}
}

// handleBinary assigns one Binary opcode per enumerant, draining up to three
// bits and one swap flag per step.  The test value is the opcode slot.
func (ic *instructionClassifier) handleBinary(tests *testExtractor, binBits *binaryBitExtractor) {
	for _, op := range binaryOps {
		if len(tests.tests) == 0 {
			break
		}
		test := shiftTest(&tests.tests)
		bits := drainBits(&binBits.bits, 3)

		swap := false
		if len(binBits.swaps) > 0 {
			swap = binBits.swaps[0]
			binBits.swaps = binBits.swaps[1:]
		}

		ic.res.Opcodes[test] = Opcode{
			Kind:     KindBinary,
			Bits:     bits,
			Operator: op.JS(),
			Swap:     swap,
		}
	}
}

// handleHeap builds the Heap opcode: one shared bit, then one bit per
// closure kind except Init.
func (ic *instructionClassifier) handleHeap(idx uint16, tests *testExtractor, bits *bitExtractor) {
	var shared uint16
	if len(bits.bits) > 0 {
		shared = bits.bits[0]
		bits.bits = bits.bits[1:]
	}

	closures := make(map[uint16]ClosureCase)
	for _, typ := range heapTypes {
		if len(tests.tests) == 0 {
			break
		}
		test := shiftTest(&tests.tests)

		var caseBits []uint16
		if typ != HeapInit && len(bits.bits) > 0 {
			caseBits = drainBits(&bits.bits, 1)
		}
		closures[test] = ClosureCase{Bits: caseBits, Type: typ}
	}

	ic.res.Opcodes[idx] = Opcode{Kind: KindHeap, Bits: []uint16{shared}, Closures: closures}
}

// lastStatement classifies by the shape of the final statement.  Matches
// later in the sequence supersede earlier ones, mirroring how the shapes
// overlap in real handler bodies.
func (ic *instructionClassifier) lastStatement(idx uint16, stmts []ast.Statement) {
	switch last := stmts[len(stmts)-1].(type) {
	case *ast.ExpressionStatement:
		switch expr := last.Expression.(type) {
		case *ast.AssignExpression:
			target, ok := expr.Left.(*ast.BracketExpression)
			if !ok {
				return
			}
			ic.assignTail(idx, target, expr.Right, stmts)
		case *ast.BinaryExpression:
			if expr.Operator == token.LOGICAL_AND || expr.Operator == token.LOGICAL_OR {
				ic.res.Opcodes[idx] = Opcode{Kind: KindJumpIf, Bits: ic.plainBits(stmts)}
			}
		}
	case *ast.ThrowStatement:
		ic.res.Opcodes[idx] = Opcode{Kind: KindThrow, Bits: ic.plainBits(stmts)}
	}
}

// assignTail classifies "target[...] = right" by the shape of right.
func (ic *instructionClassifier) assignTail(idx uint16, target *ast.BracketExpression, right ast.Expression, stmts []ast.Statement) {
	switch r := right.(type) {
	case *ast.CallExpression:
		if len(r.ArgumentList) > 0 && !isMemberExpression(r.ArgumentList[0]) {
			ic.res.Opcodes[idx] = Opcode{Kind: KindSplicePop, Bits: ic.plainBits(stmts)}
		}
		if callee, ok := r.Callee.(*ast.BracketExpression); ok {
			if prop, ok := callee.Member.(*ast.StringLiteral); ok {
				switch prop.Value {
				case "push":
					ic.res.Opcodes[idx] = Opcode{Kind: KindArrayPush, Bits: ic.plainBits(stmts)}
				case "bind":
					if obj, ok := callee.Left.(*ast.Identifier); ok {
						switch len(obj.Name) {
						case 1:
							ic.res.Opcodes[idx] = Opcode{Kind: KindBind, Bits: ic.plainBits(stmts)}
						case 2:
							ic.res.Opcodes[idx] = Opcode{Kind: KindRegisterVMFunction, Bits: ic.plainBits(stmts)}
						}
					}
				case "pop":
					if _, ok := callee.Left.(*ast.Identifier); ok {
						ic.res.Opcodes[idx] = Opcode{Kind: KindPop, Bits: ic.plainBits(stmts)}
					}
				}
			}
		}

	case *ast.ObjectLiteral:
		ic.res.Opcodes[idx] = Opcode{Kind: KindNewObject, Bits: ic.plainBits(stmts)}

	case *ast.BracketExpression:
		kind := KindSetProperty
		if _, ok := r.Left.(*ast.Identifier); ok {
			kind = KindGetProperty
		}
		ic.res.Opcodes[idx] = Opcode{Kind: kind, Bits: ic.plainBits(stmts)}

	case *ast.NewExpression:
		ic.res.Opcodes[idx] = Opcode{Kind: KindCallFuncNoContext, Bits: ic.plainBits(stmts)}

	case *ast.ArrayLiteral:
		ic.res.Opcodes[idx] = Opcode{Kind: KindNewArray, Bits: ic.plainBits(stmts)}

	case *ast.Identifier:
		if _, ok := target.Member.(*ast.NumberLiteral); ok {
			ic.res.Opcodes[idx] = Opcode{Kind: KindJump, Bits: ic.plainBits(stmts)}
			return
		}
		if identAssignPrecedes(stmts) {
			ic.res.Opcodes[idx] = Opcode{Kind: KindMove, Bits: ic.plainBits(stmts)}
			return
		}
		ic.res.Opcodes[idx] = Opcode{Kind: KindSetProperty, Bits: ic.plainBits(stmts)}

	case *ast.ConditionalExpression:
		ic.res.Opcodes[idx] = Opcode{Kind: KindCall, Bits: ic.plainBits(stmts)}

	default:
		// Catch-all keeps total coverage of assignment tails.
		ic.res.Opcodes[idx] = Opcode{Kind: KindSetProperty, Bits: ic.plainBits(stmts)}
	}
}

// plainBits runs the statement-level bit extractor over the whole body.
func (ic *instructionClassifier) plainBits(stmts []ast.Statement) []uint16 {
	bx := newBitExtractor(ic.fold, ic.constants)
	bx.extractStatements(stmts)
	if bx.bits == nil {
		return []uint16{}
	}
	return bx.bits
}

func isMemberExpression(expr ast.Expression) bool {
	switch expr.(type) {
	case *ast.BracketExpression, *ast.DotExpression:
		return true
	}
	return false
}

// identAssignPrecedes reports whether the penultimate statement assigns to a
// plain identifier, which distinguishes Move from the SetProperty fallback.
func identAssignPrecedes(stmts []ast.Statement) bool {
	if len(stmts) < 2 {
		return false
	}
	stmt, ok := stmts[len(stmts)-2].(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	assign, ok := stmt.Expression.(*ast.AssignExpression)
	if !ok {
		return false
	}
	_, ok = assign.Left.(*ast.Identifier)
	return ok
}
