package disasm_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/firasghr/GoChallengeSolver/disasm"
)

func classifyInstructions(t *testing.T, src string) (*disasm.InstructionResult, *disasm.DiagnosticTrace) {
	t.Helper()
	program := parseProgram(t, src)
	h := disasm.DefaultHeuristics()
	var trace disasm.DiagnosticTrace
	reg, fold := disasm.ClassifyFunctions(program, h, &trace)
	return disasm.ClassifyInstructions(program, reg, fold, h, &trace), &trace
}

// handlerSrc wires a single named handler into a dispatcher-sized program so
// the registry maps it to slot.
func handlerSrc(name string, slot int, body string) string {
	return "function " + name + "(t, s) {\n" + body + "\n}\n" +
		"function dispatch(m) {\n" + padStatements(55) +
		fmt.Sprintf("m[%d] = %s;\n", slot, name) + "}\n"
}

func TestClassifyInstructions_AssignmentTails(t *testing.T) {
	cases := []struct {
		name string
		body string
		want disasm.OpcodeKind
	}{
		{"array push", `s[1] = q["push"](s[2]);`, disasm.KindArrayPush},
		{"bind short receiver", `s[1] = q["bind"](s[2]);`, disasm.KindBind},
		{"bind long receiver", `s[1] = qq["bind"](s[2]);`, disasm.KindRegisterVMFunction},
		{"pop", `s[1] = q["pop"]();`, disasm.KindPop},
		{"splice pop", `s[1] = f(9, 1);`, disasm.KindSplicePop},
		{"object literal", `s[1] = {};`, disasm.KindNewObject},
		{"array literal", `s[1] = [s[2], s[3]];`, disasm.KindNewArray},
		{"constructor call", `s[1] = new F(s[2]);`, disasm.KindCallFuncNoContext},
		{"conditional", `s[1] = t ? f(s[2]) : g(s[3]);`, disasm.KindCall},
		{"identifier-rooted member", `s[1] = o[s[2]];`, disasm.KindGetProperty},
		{"deep member", `s[1] = o.p[s[2]];`, disasm.KindSetProperty},
		{"numeric target identifier", `s[3] = t;`, disasm.KindJump},
		{"move after identifier assign", "x = s[4];\ns[x] = x;", disasm.KindMove},
		{"identifier without preceding assign", `s[t] = t;`, disasm.KindSetProperty},
		{"literal tail falls through", `s[1] = 5;`, disasm.KindSetProperty},
		{"logical tail", `s[7] && f(s[8]);`, disasm.KindJumpIf},
		{"throw", `throw s[6];`, disasm.KindThrow},
		{"register copy", "s[1] = s[2];\nf();", disasm.KindSwapRegister},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := classifyInstructions(t, handlerSrc("hv", 9, tc.body))
			op, ok := res.Opcodes[9]
			if !ok {
				t.Fatalf("slot 9 not classified for body %q", tc.body)
			}
			if op.Kind != tc.want {
				t.Errorf("kind = %v, want %v", op.Kind, tc.want)
			}
		})
	}
}

func TestClassifyInstructions_PushSupersedesSplicePop(t *testing.T) {
	// A push call whose first argument is a plain literal matches both the
	// splice-pop and push shapes; the later match wins.
	res, _ := classifyInstructions(t, handlerSrc("hv", 9, `s[1] = q["push"](2);`))
	op, ok := res.Opcodes[9]
	if !ok {
		t.Fatal("slot 9 not classified")
	}
	if op.Kind != disasm.KindArrayPush {
		t.Errorf("kind = %v, want %v", op.Kind, disasm.KindArrayPush)
	}
}

func TestClassifyInstructions_OperandBits(t *testing.T) {
	res, _ := classifyInstructions(t, handlerSrc("hv", 9, `s[1] = q["push"](s[2]);`))
	op := res.Opcodes[9]
	want := []uint16{1, 2}
	if len(op.Bits) != len(want) {
		t.Fatalf("bits = %v, want %v", op.Bits, want)
	}
	for i := range want {
		if op.Bits[i] != want[i] {
			t.Fatalf("bits = %v, want %v", op.Bits, want)
		}
	}
}

func TestClassifyInstructions_UnaryChain(t *testing.T) {
	body := "t === 10 ? s[1] = -s[2] : " +
		"t === 11 ? s[3] = -s[4] : " +
		"t === 12 ? s[5] = -s[6] : " +
		"t === 13 ? s[7] = -s[8] : " +
		"t === 14 ? s[9] = -s[10] : 0;\n" +
		"f();"

	res, _ := classifyInstructions(t, handlerSrc("hu", 20, body))

	wantOps := []string{"typeof", "-", "+", "!", "~"}
	for i, wantOp := range wantOps {
		slot := uint16(10 + i)
		op, ok := res.Opcodes[slot]
		if !ok {
			t.Fatalf("unary slot %d not classified", slot)
		}
		if op.Kind != disasm.KindUnary {
			t.Errorf("slot %d kind = %v, want %v", slot, op.Kind, disasm.KindUnary)
		}
		if op.Operator != wantOp {
			t.Errorf("slot %d operator = %q, want %q", slot, op.Operator, wantOp)
		}
		if len(op.Bits) != 2 || op.Bits[0] != uint16(2*i+1) || op.Bits[1] != uint16(2*i+2) {
			t.Errorf("slot %d bits = %v, want [%d %d]", slot, op.Bits, 2*i+1, 2*i+2)
		}
	}
}

func TestClassifyInstructions_BinaryChain(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 19; i++ {
		fmt.Fprintf(&b, "t === %d ? s[1] = s[4] + s[5] * s[6] : ", 40+i)
	}
	b.WriteString("0;\nf();")

	res, _ := classifyInstructions(t, handlerSrc("hb", 21, b.String()))

	wantOps := []string{
		"+", "-", "*", "/", "%", "&&", "||", "&", "|", "^",
		"<<", ">>", ">>>", "==", "===", ">", ">=", "instanceof", "in",
	}
	for i, wantOp := range wantOps {
		slot := uint16(40 + i)
		op, ok := res.Opcodes[slot]
		if !ok {
			t.Fatalf("binary slot %d not classified", slot)
		}
		if op.Kind != disasm.KindBinary {
			t.Errorf("slot %d kind = %v, want %v", slot, op.Kind, disasm.KindBinary)
		}
		if op.Operator != wantOp {
			t.Errorf("slot %d operator = %q, want %q", slot, op.Operator, wantOp)
		}
		if op.Swap {
			t.Errorf("slot %d swap set for in-order operands", slot)
		}
		if len(op.Bits) != 3 || op.Bits[0] != 4 || op.Bits[1] != 5 || op.Bits[2] != 6 {
			t.Errorf("slot %d bits = %v, want [4 5 6]", slot, op.Bits)
		}
	}
}

func TestClassifyInstructions_LiteralChain(t *testing.T) {
	// Consequents are chosen so the flat operand stream is exactly
	// [21 22 | 23 24 25 26 | 27]: two shared bits, one bit each for the
	// Integer/String/CopyState/Array branches, the rest for Regexp.
	consequents := []string{
		"r[21] = r[22]", // Null
		"x = 0",         // NaN
		"x = 0",         // Infinity
		"x = 0",         // True
		"x = 0",         // False
		"x = 0",         // Float
		"r[23] = 0",     // Integer
		"r[24] = 0",     // String
		"x = 0",         // NextValue
		"r[25] = 0",     // CopyState
		"r[26] = 0",     // Array
		"r[27] = 0",     // Regexp
	}
	var b strings.Builder
	for i, c := range consequents {
		fmt.Fprintf(&b, "t === %d ? %s : ", 100+i, c)
	}
	b.WriteString("0;\nf();")

	res, _ := classifyInstructions(t, handlerSrc("hl", 22, b.String()))

	op, ok := res.Opcodes[22]
	if !ok {
		t.Fatal("literal handler slot not classified")
	}
	if op.Kind != disasm.KindNewLiteral {
		t.Fatalf("kind = %v, want %v", op.Kind, disasm.KindNewLiteral)
	}
	if len(op.Bits) != 2 || op.Bits[0] != 21 || op.Bits[1] != 22 {
		t.Errorf("shared bits = %v, want [21 22]", op.Bits)
	}
	if len(op.Literals) != 12 {
		t.Fatalf("literal cases = %d, want 12", len(op.Literals))
	}

	if c := op.Literals[100]; c.Type != disasm.LiteralNull || len(c.Bits) != 0 {
		t.Errorf("case 100 = %+v, want Null with no bits", c)
	}
	if c := op.Literals[106]; c.Type != disasm.LiteralInteger || len(c.Bits) != 1 || c.Bits[0] != 23 {
		t.Errorf("case 106 = %+v, want Integer with bits [23]", c)
	}
	if c := op.Literals[111]; c.Type != disasm.LiteralRegexp || len(c.Bits) != 1 || c.Bits[0] != 27 {
		t.Errorf("case 111 = %+v, want Regexp with bits [27]", c)
	}
}

func TestClassifyInstructions_HeapChain(t *testing.T) {
	body := "t === 70 ? r[31] = r[32] : " +
		"t === 71 ? r[33] = 0 : " +
		"t === 72 ? x = 0 : 0;\n" +
		"f();"

	res, _ := classifyInstructions(t, handlerSrc("hh", 23, body))

	op, ok := res.Opcodes[23]
	if !ok {
		t.Fatal("heap handler slot not classified")
	}
	if op.Kind != disasm.KindHeap {
		t.Fatalf("kind = %v, want %v", op.Kind, disasm.KindHeap)
	}
	if len(op.Bits) != 1 || op.Bits[0] != 31 {
		t.Errorf("shared bits = %v, want [31]", op.Bits)
	}
	if c := op.Closures[70]; c.Type != disasm.HeapSet || len(c.Bits) != 1 || c.Bits[0] != 32 {
		t.Errorf("case 70 = %+v, want Set with bits [32]", c)
	}
	if c := op.Closures[71]; c.Type != disasm.HeapGet || len(c.Bits) != 1 || c.Bits[0] != 33 {
		t.Errorf("case 71 = %+v, want Get with bits [33]", c)
	}
	if c := op.Closures[72]; c.Type != disasm.HeapInit || len(c.Bits) != 0 {
		t.Errorf("case 72 = %+v, want Init with no bits", c)
	}
}

func TestClassifyInstructions_WindowRegister(t *testing.T) {
	src := "function dispatch(m) {\n" + padStatements(55) +
		"m[9] = wr;\n}\n" +
		"wr = hook();\n"

	res, _ := classifyInstructions(t, src)
	if res.WindowRegister != 9 {
		t.Errorf("window register = %d, want 9", res.WindowRegister)
	}
	if _, ok := res.Pending["wr"]; ok {
		t.Error("window register name left pending")
	}
}

func TestClassifyInstructions_CreateFunctionIdent(t *testing.T) {
	src := "function mk(s) {\n" +
		"  s.q = 1;\n" +
		"  return s.tbl[1 + 2];\n" +
		"}\n"

	res, _ := classifyInstructions(t, src)
	if res.CreateFunctionIdent != "mk" {
		t.Errorf("create-function ident = %q, want %q", res.CreateFunctionIdent, "mk")
	}
}

func TestClassifyInstructions_UnmatchedHandlerDiagnosed(t *testing.T) {
	res, trace := classifyInstructions(t, handlerSrc("hx", 9, "f();"))

	if _, ok := res.Opcodes[9]; ok {
		t.Fatal("shapeless handler classified anyway")
	}
	found := false
	for _, ev := range trace.Events() {
		if ev.Level == disasm.DiagMiss && strings.Contains(ev.Message, "hx") {
			found = true
		}
	}
	if !found {
		t.Error("no miss diagnostic recorded for unmatched handler")
	}
}

func TestClassifyInstructions_DispatcherSlotDefaulted(t *testing.T) {
	// An orphan slot assignment maps the dispatcher itself; the slot gets a
	// fixed default instead of a structural match.
	src := "function dispatch(m, a, b) {\n" + padStatements(55) +
		"m[30] = a + b;\n}\n"

	res, _ := classifyInstructions(t, src)
	op, ok := res.Opcodes[30]
	if !ok {
		t.Fatal("dispatcher slot not defaulted")
	}
	if op.Kind != disasm.KindSetProperty {
		t.Errorf("dispatcher slot kind = %v, want %v", op.Kind, disasm.KindSetProperty)
	}
}
