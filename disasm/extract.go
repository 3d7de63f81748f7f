package disasm

import (
	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/token"
)

// The four sub-extractors below each make one focused pass over a handler
// body.  They are deliberately tolerant: unrecognised shapes are skipped and
// never abort the walk.

// assignmentExtractor records identifier assignment targets in source order.
// The binary-bit extractor uses the ordering to detect operand swaps.
type assignmentExtractor struct {
	order []string
	pos   map[string]int
}

func newAssignmentExtractor() *assignmentExtractor {
	return &assignmentExtractor{pos: make(map[string]int)}
}

func (ax *assignmentExtractor) Enter(node ast.Node) ast.Visitor {
	if assign, ok := node.(*ast.AssignExpression); ok {
		if ident, ok := assign.Left.(*ast.Identifier); ok {
			if _, seen := ax.pos[ident.Name]; !seen {
				ax.pos[ident.Name] = len(ax.order)
				ax.order = append(ax.order, ident.Name)
			}
		}
	}
	return ax
}

func (ax *assignmentExtractor) Exit(ast.Node) {}

// testExtractor collects the short-circuit test values of a handler's
// conditional or if-chain: for every equality comparison found in a test
// position, the literal side is resolved and appended in chain order.
type testExtractor struct {
	fold  *ConstantFolder
	tests []uint16
}

func newTestExtractor(fold *ConstantFolder) *testExtractor {
	return &testExtractor{fold: fold}
}

func (tx *testExtractor) Enter(node ast.Node) ast.Visitor {
	switch n := node.(type) {
	case *ast.ConditionalExpression:
		tx.harvest(n.Test)
	case *ast.IfStatement:
		tx.harvest(n.Test)
	}
	return tx
}

func (tx *testExtractor) Exit(ast.Node) {}

// harvest pulls the compared constant out of every equality expression
// under test, left to right.
func (tx *testExtractor) harvest(test ast.Expression) {
	switch e := test.(type) {
	case *ast.BinaryExpression:
		switch e.Operator {
		case token.EQUAL, token.STRICT_EQUAL, token.NOT_EQUAL, token.STRICT_NOT_EQUAL:
			if v, ok := tx.fold.Resolve(e.Right); ok {
				tx.tests = append(tx.tests, uint16(v))
			} else if v, ok := tx.fold.Resolve(e.Left); ok {
				tx.tests = append(tx.tests, uint16(v))
			}
		case token.LOGICAL_AND, token.LOGICAL_OR:
			tx.harvest(e.Left)
			tx.harvest(e.Right)
		}
	case *ast.SequenceExpression:
		for _, sub := range e.Sequence {
			tx.harvest(sub)
		}
	}
}

// bitExtractor collects resolved computed-member indices in walk order.
// The constants-table index is recorded at most once: nearly every operand
// access goes through the constants register, and repeating it would drown
// the real operand bits.
type bitExtractor struct {
	fold          *ConstantFolder
	constants     uint16
	constantsSeen bool
	bits          []uint16
}

func newBitExtractor(fold *ConstantFolder, constants uint16) *bitExtractor {
	return &bitExtractor{fold: fold, constants: constants}
}

func (bx *bitExtractor) append(v uint16) {
	if v == bx.constants {
		if bx.constantsSeen {
			return
		}
		bx.constantsSeen = true
	}
	bx.bits = append(bx.bits, v)
}

func (bx *bitExtractor) Enter(node ast.Node) ast.Visitor {
	if member, ok := node.(*ast.BracketExpression); ok {
		if v, ok := bx.fold.Resolve(member.Member); ok {
			bx.append(uint16(v))
		}
	}
	return bx
}

func (bx *bitExtractor) Exit(ast.Node) {}

// extractStatements walks every statement in order.
func (bx *bitExtractor) extractStatements(stmts []ast.Statement) {
	for _, stmt := range stmts {
		ast.Walk(bx, stmt)
	}
}

// binaryBitExtractor collects operand bits grouped per binary-operator
// candidate and flags candidates whose operands are used in reverse
// assignment order (register swaps).  Equality comparisons are test
// plumbing, not operator implementations, and are descended rather than
// treated as candidates.
type binaryBitExtractor struct {
	fold          *ConstantFolder
	constants     uint16
	constantsSeen bool
	assigned      *assignmentExtractor

	bits  []uint16
	swaps []bool
}

func newBinaryBitExtractor(fold *ConstantFolder, constants uint16, assigned *assignmentExtractor) *binaryBitExtractor {
	return &binaryBitExtractor{fold: fold, constants: constants, assigned: assigned}
}

func (bb *binaryBitExtractor) append(v uint16) {
	if v == bb.constants {
		if bb.constantsSeen {
			return
		}
		bb.constantsSeen = true
	}
	bb.bits = append(bb.bits, v)
}

func (bb *binaryBitExtractor) Enter(node ast.Node) ast.Visitor {
	bin, ok := node.(*ast.BinaryExpression)
	if !ok {
		return bb
	}
	switch bin.Operator {
	case token.EQUAL, token.STRICT_EQUAL, token.NOT_EQUAL, token.STRICT_NOT_EQUAL,
		token.LOGICAL_AND, token.LOGICAL_OR:
		return bb
	}

	bb.collectMembers(bin.Left)
	bb.collectMembers(bin.Right)
	bb.swaps = append(bb.swaps, bb.swapped(bin))

	// The whole subtree was consumed as one candidate; nested binaries
	// inside it are part of the same operator implementation.
	return nil
}

func (bb *binaryBitExtractor) Exit(ast.Node) {}

func (bb *binaryBitExtractor) extractStatements(stmts []ast.Statement) {
	for _, stmt := range stmts {
		ast.Walk(bb, stmt)
	}
}

// collectMembers appends the resolved index of every computed-member access
// in expr, left to right.
func (bb *binaryBitExtractor) collectMembers(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.BracketExpression:
		bb.collectMembers(e.Left)
		if v, ok := bb.fold.Resolve(e.Member); ok {
			bb.append(uint16(v))
		}
	case *ast.BinaryExpression:
		bb.collectMembers(e.Left)
		bb.collectMembers(e.Right)
	case *ast.UnaryExpression:
		bb.collectMembers(e.Operand)
	case *ast.CallExpression:
		bb.collectMembers(e.Callee)
		for _, arg := range e.ArgumentList {
			bb.collectMembers(arg)
		}
	case *ast.SequenceExpression:
		for _, sub := range e.Sequence {
			bb.collectMembers(sub)
		}
	}
}

// swapped reports whether the candidate's operand identifiers were assigned
// in the opposite order to their use: the signature of a register swap.
func (bb *binaryBitExtractor) swapped(bin *ast.BinaryExpression) bool {
	left := firstIdentifier(bin.Left)
	right := firstIdentifier(bin.Right)
	if left == "" || right == "" {
		return false
	}
	posL, okL := bb.assigned.pos[left]
	posR, okR := bb.assigned.pos[right]
	return okL && okR && posL > posR
}

// firstIdentifier finds the leftmost bare identifier in expr.
func firstIdentifier(expr ast.Expression) string {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e.Name
	case *ast.BracketExpression:
		return firstIdentifier(e.Left)
	case *ast.DotExpression:
		return firstIdentifier(e.Left)
	case *ast.UnaryExpression:
		return firstIdentifier(e.Operand)
	case *ast.BinaryExpression:
		if name := firstIdentifier(e.Left); name != "" {
			return name
		}
		return firstIdentifier(e.Right)
	}
	return ""
}
