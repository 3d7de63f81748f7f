package disasm

import (
	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/token"
)

// KeyOffsetBundle carries the payload-decoder parameters recovered by
// structural pattern match: the byte-masking key expression (kept as an AST
// fragment plus its source text for the external decoder to re-evaluate) and
// the call-paired integer offset.
type KeyOffsetBundle struct {
	KeyExpr       ast.Expression
	KeyExprSource string
	KeyExprFound  bool

	Offset      int16
	OffsetFound bool
}

// keyOffsetExtractor scans for-loop bodies for the masking expression and
// the whole tree for the offset constant.
type keyOffsetExtractor struct {
	h      Heuristics
	src    string
	bundle *KeyOffsetBundle
	inFor  int
}

// ExtractKeyOffset recovers the key expression and offset from the program.
// src is the raw interpreter source; it is used only to slice out the text
// of the captured fragment.
func ExtractKeyOffset(program *ast.Program, src string, h Heuristics) *KeyOffsetBundle {
	ex := &keyOffsetExtractor{h: h, src: src, bundle: &KeyOffsetBundle{}}
	ast.Walk(ex, program)
	return ex.bundle
}

func (ex *keyOffsetExtractor) Enter(node ast.Node) ast.Visitor {
	switch n := node.(type) {
	case *ast.ForStatement:
		ex.inFor++

	case *ast.AssignExpression:
		if ex.inFor > 0 && !ex.bundle.KeyExprFound {
			if ex.isKeyMask(n.Right) {
				ex.bundle.KeyExpr = n.Right
				ex.bundle.KeyExprSource = sourceFragment(ex.src, n.Right)
				ex.bundle.KeyExprFound = true
			}
		}

	case *ast.BinaryExpression:
		if !ex.bundle.OffsetFound {
			if off, ok := offsetCandidate(n); ok {
				ex.bundle.Offset = off
				ex.bundle.OffsetFound = true
				// Nothing below this expression can refine the match.
				return nil
			}
		}
	}
	return ex
}

func (ex *keyOffsetExtractor) Exit(node ast.Node) {
	if _, ok := node.(*ast.ForStatement); ok {
		ex.inFor--
	}
}

// isKeyMask reports whether expr is a binary AND against the byte mask.
// Some builds use fractional mask literals such as 255.63, so the value is
// truncated before comparison.
func (ex *keyOffsetExtractor) isKeyMask(expr ast.Expression) bool {
	bin, ok := expr.(*ast.BinaryExpression)
	if !ok || bin.Operator != token.AND {
		return false
	}
	num, ok := bin.Right.(*ast.NumberLiteral)
	if !ok {
		return false
	}
	v, ok := numberValue(num)
	return ok && uint32(v) == ex.h.KeyMask
}

// offsetCandidate matches "literal + call()" or "literal ^ call()" in either
// operand order with a non-zero literal, yielding the literal as the 16-bit
// signed offset.
func offsetCandidate(bin *ast.BinaryExpression) (int16, bool) {
	if bin.Operator != token.PLUS && bin.Operator != token.EXCLUSIVE_OR {
		return 0, false
	}

	var lit *ast.NumberLiteral
	switch l := bin.Left.(type) {
	case *ast.NumberLiteral:
		if _, ok := bin.Right.(*ast.CallExpression); ok {
			lit = l
		}
	case *ast.CallExpression:
		if r, ok := bin.Right.(*ast.NumberLiteral); ok {
			lit = r
		}
	}
	if lit == nil {
		return 0, false
	}
	v, ok := numberValue(lit)
	if !ok || int64(v) == 0 {
		return 0, false
	}
	return int16(int64(v)), true
}

// sourceFragment slices the original source text covered by node.  otto file
// indexes are 1-based; out-of-range spans yield an empty string rather than
// a panic.
func sourceFragment(src string, node ast.Node) string {
	if node == nil {
		return ""
	}
	start := int(node.Idx0()) - 1
	end := int(node.Idx1()) - 1
	if start < 0 || end > len(src) || start >= end {
		return ""
	}
	return src[start:end]
}
