package disasm

// OpcodeKind identifies which VM instruction a recovered handler implements.
// The interpreter shuffles handler names and slot numbers between builds, but
// the set of behaviours stays fixed, so the kind is recovered structurally.
type OpcodeKind int

const (
	KindArrayPush OpcodeKind = iota
	KindThrow
	KindBind
	KindRegisterVMFunction
	KindBinary
	KindUnary
	KindNewLiteral
	KindNewObject
	KindPop
	KindSetProperty
	KindGetProperty
	KindSplicePop
	KindCallFuncNoContext
	KindSwapRegister
	KindNewArray
	KindJump
	KindJumpIf
	KindMove
	KindCall
	KindHeap
)

var opcodeKindNames = map[OpcodeKind]string{
	KindArrayPush:          "ArrayPush",
	KindThrow:              "Throw",
	KindBind:               "Bind",
	KindRegisterVMFunction: "RegisterVMFunction",
	KindBinary:             "Binary",
	KindUnary:              "Unary",
	KindNewLiteral:         "NewLiteral",
	KindNewObject:          "NewObject",
	KindPop:                "Pop",
	KindSetProperty:        "SetProperty",
	KindGetProperty:        "GetProperty",
	KindSplicePop:          "SplicePop",
	KindCallFuncNoContext:  "CallFuncNoContext",
	KindSwapRegister:       "SwapRegister",
	KindNewArray:           "NewArray",
	KindJump:               "Jump",
	KindJumpIf:             "JumpIf",
	KindMove:               "Move",
	KindCall:               "Call",
	KindHeap:               "Heap",
}

func (k OpcodeKind) String() string {
	if name, ok := opcodeKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// UnaryOp enumerates the unary operators a Unary handler can implement, in
// the order the handler's short-circuit chain tests for them.
type UnaryOp int

const (
	UnaryTypeOf UnaryOp = iota
	UnaryMinus
	UnaryPlus
	UnaryLogicalNot
	UnaryBitwiseNot
)

// unaryOps lists every UnaryOp in declaration order.  The classifier matches
// a handler's test count against len(unaryOps).
var unaryOps = []UnaryOp{UnaryTypeOf, UnaryMinus, UnaryPlus, UnaryLogicalNot, UnaryBitwiseNot}

// JS returns the JavaScript spelling of the operator.
func (op UnaryOp) JS() string {
	switch op {
	case UnaryTypeOf:
		return "typeof"
	case UnaryMinus:
		return "-"
	case UnaryPlus:
		return "+"
	case UnaryLogicalNot:
		return "!"
	case UnaryBitwiseNot:
		return "~"
	}
	return ""
}

// BinaryOp enumerates the binary operators a Binary handler can implement,
// in short-circuit chain order.
type BinaryOp int

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryBitwiseAnd
	BinaryBitwiseOr
	BinaryBitwiseXor
	BinaryShiftLeft
	BinaryShiftRight
	BinaryShiftRightUnsigned
	BinaryEqual
	BinaryStrictEqual
	BinaryGreater
	BinaryGreaterOrEqual
	BinaryInstanceOf
	BinaryIn
)

var binaryOps = []BinaryOp{
	BinaryAdd, BinarySub, BinaryMul, BinaryDiv, BinaryMod,
	BinaryLogicalAnd, BinaryLogicalOr,
	BinaryBitwiseAnd, BinaryBitwiseOr, BinaryBitwiseXor,
	BinaryShiftLeft, BinaryShiftRight, BinaryShiftRightUnsigned,
	BinaryEqual, BinaryStrictEqual, BinaryGreater, BinaryGreaterOrEqual,
	BinaryInstanceOf, BinaryIn,
}

// JS returns the JavaScript spelling of the operator.
func (op BinaryOp) JS() string {
	switch op {
	case BinaryAdd:
		return "+"
	case BinarySub:
		return "-"
	case BinaryMul:
		return "*"
	case BinaryDiv:
		return "/"
	case BinaryMod:
		return "%"
	case BinaryLogicalAnd:
		return "&&"
	case BinaryLogicalOr:
		return "||"
	case BinaryBitwiseAnd:
		return "&"
	case BinaryBitwiseOr:
		return "|"
	case BinaryBitwiseXor:
		return "^"
	case BinaryShiftLeft:
		return "<<"
	case BinaryShiftRight:
		return ">>"
	case BinaryShiftRightUnsigned:
		return ">>>"
	case BinaryEqual:
		return "=="
	case BinaryStrictEqual:
		return "==="
	case BinaryGreater:
		return ">"
	case BinaryGreaterOrEqual:
		return ">="
	case BinaryInstanceOf:
		return "instanceof"
	case BinaryIn:
		return "in"
	}
	return ""
}

// LiteralType enumerates the value kinds a NewLiteral handler can construct,
// in short-circuit chain order.
type LiteralType int

const (
	LiteralNull LiteralType = iota
	LiteralNaN
	LiteralInfinity
	LiteralTrue
	LiteralFalse
	LiteralFloat
	LiteralInteger
	LiteralString
	LiteralNextValue
	LiteralCopyState
	LiteralArray
	LiteralRegexp
)

var literalTypes = []LiteralType{
	LiteralNull, LiteralNaN, LiteralInfinity, LiteralTrue, LiteralFalse,
	LiteralFloat, LiteralInteger, LiteralString, LiteralNextValue,
	LiteralCopyState, LiteralArray, LiteralRegexp,
}

// HeapType enumerates the closure operations a Heap handler can implement,
// in short-circuit chain order.
type HeapType int

const (
	HeapSet HeapType = iota
	HeapGet
	HeapInit
)

var heapTypes = []HeapType{HeapSet, HeapGet, HeapInit}

// LiteralCase is one branch of a NewLiteral handler: the runtime test value
// that selects it and the operand bits consumed when it fires.
type LiteralCase struct {
	Bits []uint16
	Type LiteralType
}

// ClosureCase is one branch of a Heap handler.
type ClosureCase struct {
	Bits []uint16
	Type HeapType
}

// Opcode is one recovered VM instruction.  Bits is the ordered list of
// operand/register slot references the handler reads; order is significant.
// Operator, Swap, Literals and Closures are populated only for the kinds
// that carry them.
type Opcode struct {
	Kind OpcodeKind
	Bits []uint16

	// Operator carries the JS spelling for Binary and Unary kinds.
	Operator string

	// Swap is set on Binary kinds whose operands are applied in reverse
	// assignment order.
	Swap bool

	// Literals maps a runtime test value to a literal-construction branch
	// for NewLiteral kinds.
	Literals map[uint16]LiteralCase

	// Closures maps a runtime test value to a closure branch for Heap kinds.
	Closures map[uint16]ClosureCase
}

// OpcodeTable maps a numeric opcode slot to its recovered instruction.
// At most one Opcode ever occupies a slot in a finished table.
type OpcodeTable map[uint16]Opcode
