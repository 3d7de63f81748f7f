package disasm

import (
	"math"
	"strconv"

	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/token"
)

// ConstantFolder resolves expression subtrees to numeric constants using a
// table of variables learned from plain declarations and assignments.  It
// implements just enough JavaScript evaluation to recover register indices
// and literal operands from obfuscated arithmetic; anything it cannot fold
// is reported as unresolved, never as an error.
type ConstantFolder struct {
	vars map[string]float64
}

// NewConstantFolder returns a folder with an empty variable table.
func NewConstantFolder() *ConstantFolder {
	return &ConstantFolder{vars: make(map[string]float64)}
}

// Define records a variable binding for later identifier lookups.
func (f *ConstantFolder) Define(name string, value float64) {
	f.vars[name] = value
}

// Lookup returns the recorded value for name, if any.
func (f *ConstantFolder) Lookup(name string) (float64, bool) {
	v, ok := f.vars[name]
	return v, ok
}

// truthy applies JavaScript truthiness to a number: 0 and NaN are falsy.
func truthy(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

// numberValue extracts the numeric value from an otto number literal, which
// stores integers and floats under different dynamic types.
func numberValue(lit *ast.NumberLiteral) (float64, bool) {
	switch v := lit.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Resolve attempts to fold expr to a single numeric value.  The second
// return is false when any operand cannot be resolved; malformed or
// unsupported node shapes fall through to unresolved rather than failing.
func (f *ConstantFolder) Resolve(expr ast.Expression) (float64, bool) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return numberValue(e)
	case *ast.StringLiteral:
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case *ast.BooleanLiteral:
		if e.Value {
			return 1, true
		}
		return 0, true
	case *ast.Identifier:
		return f.Lookup(e.Name)
	case *ast.SequenceExpression:
		if len(e.Sequence) == 0 {
			return 0, false
		}
		return f.Resolve(e.Sequence[len(e.Sequence)-1])
	case *ast.UnaryExpression:
		return f.resolveUnary(e)
	case *ast.BinaryExpression:
		return f.resolveBinary(e)
	case *ast.ConditionalExpression:
		test, ok := f.Resolve(e.Test)
		if !ok {
			return 0, false
		}
		if truthy(test) {
			return f.Resolve(e.Consequent)
		}
		return f.Resolve(e.Alternate)
	}
	return 0, false
}

func (f *ConstantFolder) resolveUnary(e *ast.UnaryExpression) (float64, bool) {
	v, ok := f.Resolve(e.Operand)
	if !ok {
		return 0, false
	}
	switch e.Operator {
	case token.MINUS:
		return -v, true
	case token.PLUS:
		return v, true
	case token.BITWISE_NOT:
		return float64(^int64(v)), true
	case token.NOT:
		if truthy(v) {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}

func (f *ConstantFolder) resolveBinary(e *ast.BinaryExpression) (float64, bool) {
	// Logical operators short-circuit on a resolvable left side, mirroring
	// the JS evaluation the obfuscator relies on.
	switch e.Operator {
	case token.LOGICAL_OR:
		if l, ok := f.Resolve(e.Left); ok {
			if truthy(l) {
				return l, true
			}
		}
		return f.Resolve(e.Right)
	case token.LOGICAL_AND:
		l, ok := f.Resolve(e.Left)
		if !ok {
			return 0, false
		}
		if !truthy(l) {
			return l, true
		}
		return f.Resolve(e.Right)
	}

	l, okL := f.Resolve(e.Left)
	r, okR := f.Resolve(e.Right)
	if !okL || !okR {
		return 0, false
	}
	switch e.Operator {
	case token.PLUS:
		return l + r, true
	case token.MINUS:
		return l - r, true
	case token.MULTIPLY:
		return l * r, true
	case token.SLASH:
		return l / r, true
	case token.REMAINDER:
		return math.Mod(l, r), true
	case token.AND:
		return float64(int64(l) & int64(r)), true
	case token.OR:
		return float64(int64(l) | int64(r)), true
	case token.EXCLUSIVE_OR:
		return float64(int64(l) ^ int64(r)), true
	case token.SHIFT_LEFT:
		return float64(int64(l) << uint64(int64(r))), true
	case token.SHIFT_RIGHT:
		return float64(int64(l) >> uint64(int64(r))), true
	}
	return 0, false
}

// ResolveIndex resolves expr to a slot index.  Beyond full folding it
// accepts partial resolution of a binary expression: when exactly one side
// folds, that side's value is taken as the index on the assumption that the
// other side is an unresolved register reference.  As a last resort it
// descends into call arguments and member objects looking for any bare
// numeric literal.
func (f *ConstantFolder) ResolveIndex(expr ast.Expression) (uint16, bool) {
	if v, ok := f.Resolve(expr); ok {
		return uint16(v), true
	}
	if bin, ok := expr.(*ast.BinaryExpression); ok {
		l, okL := f.Resolve(bin.Left)
		r, okR := f.Resolve(bin.Right)
		switch {
		case okL && !okR:
			return uint16(l), true
		case okR && !okL:
			return uint16(r), true
		}
	}
	if v, ok := f.rawLiteral(expr, 0); ok {
		return uint16(v), true
	}
	return 0, false
}

// rawLiteral recursively searches expr for any numeric or number-parseable
// string literal, descending through call argument lists and member-access
// objects.  Depth is bounded to keep pathological trees cheap.
func (f *ConstantFolder) rawLiteral(expr ast.Expression, depth int) (float64, bool) {
	if depth > 8 {
		return 0, false
	}
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return numberValue(e)
	case *ast.StringLiteral:
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case *ast.CallExpression:
		for _, arg := range e.ArgumentList {
			if v, ok := f.rawLiteral(arg, depth+1); ok {
				return v, true
			}
		}
		return f.rawLiteral(e.Callee, depth+1)
	case *ast.BracketExpression:
		if v, ok := f.rawLiteral(e.Member, depth+1); ok {
			return v, true
		}
		return f.rawLiteral(e.Left, depth+1)
	case *ast.DotExpression:
		return f.rawLiteral(e.Left, depth+1)
	case *ast.SequenceExpression:
		for i := len(e.Sequence) - 1; i >= 0; i-- {
			if v, ok := f.rawLiteral(e.Sequence[i], depth+1); ok {
				return v, true
			}
		}
	case *ast.UnaryExpression:
		return f.rawLiteral(e.Operand, depth+1)
	}
	return 0, false
}
