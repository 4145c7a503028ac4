package compiler

import (
	"io"
	"testing"

	"github.com/chazu/angstrom/vm"
)

// eval compiles and runs src in a fresh session and renders the result.
func eval(t *testing.T, src string) string {
	t.Helper()
	s := NewSession(Options{VM: vm.Config{Stdout: io.Discard}})
	v, err := s.CompileAndRun(src, "test")
	if err != nil {
		t.Fatalf("CompileAndRun(%q): %v", src, err)
	}
	return s.Format(v)
}

// failCode compiles and runs src and returns the code it fails with.
func failCode(t *testing.T, src string) vm.ErrorCode {
	t.Helper()
	s := NewSession(Options{VM: vm.Config{Stdout: io.Discard}})
	_, err := s.CompileAndRun(src, "test")
	if err == nil {
		t.Fatalf("CompileAndRun(%q) succeeded, want an error", src)
	}
	code, ok := ErrorCodeOf(err)
	if !ok {
		t.Fatalf("CompileAndRun(%q) error without a code: %v", src, err)
	}
	return code
}

// compileOps compiles src with a bare compiler and returns its opcodes.
func compileOps(t *testing.T, src string) []vm.Opcode {
	t.Helper()
	prog, err := Parse(src, "test")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	code, err := NewCompiler(vm.NewTypeRegistry()).Compile(prog, 0)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	var ops []vm.Opcode
	for i := 0; i < len(code); i += code[i].Op.InstructionLen() {
		ops = append(ops, code[i].Op)
	}
	return ops
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"precedence", "3 + 4 * 2", "11.0"},
		{"default", "var x :: Num\nx", "0.0"},
		{"destructure", "var (a,_,c) = (1,2,3)\na + c", "4.0"},
		{"lambda", "var f = fn(x: Num) => x + 1\nf(5)", "6.0"},
		{"match", "match 5 | 5 -> 1 | _ -> 0", "1.0"},
		{"structural call", "var f = fn(p: (x: Num, y: Num)) => p.x - p.y\nf((a: 5, b: 2))", "3.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.src); got != tt.want {
				t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestStructuralCallMismatch(t *testing.T) {
	srcs := []string{
		"var f = fn(p: (x: Num, y: Num)) => p.x\nf((1,))",
		"var f = fn(p: (x: Num, y: Num)) => p.x\nf((a: true, b: 2))",
		"var f = fn(p: (x: Num, y: Num)) => p.x\nf(1)",
	}
	for _, src := range srcs {
		if code := failCode(t, src); code != vm.ErrInvalidLambdaParam {
			t.Errorf("%q: code = %v, want INVALID_LAMBDA_PARAM", src, code)
		}
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		// Arithmetic
		{"10 / 4", "2.5"},
		{"-(2 + 3)", "-5.0"},
		{"2 * 3 - 1", "5.0"},
		{"1 - 2 - 3", "-4.0"},

		// Comparison and equality
		{"1 < 2", "true"},
		{"2 < 1", "false"},
		{"1 > 2", "false"},
		{"2 <= 2", "true"},
		{"3 >= 4", "false"},
		{"1 == 1", "true"},
		{"1 != 1", "false"},
		{`"a" == "a"`, "true"},
		{"(1, 2) == (1, 2)", "true"},
		{"!true", "false"},
		{"!(1 > 2)", "true"},

		// Literals
		{`"hello"`, "hello"},
		{"nil", "nil"},
		{"()", "nil"},
		{"(1)", "1.0"},
		{"(1, 2)", "(1.0, 2.0)"},
		{`(x: 1, s: "a")`, `(x: 1.0, s: "a")`},
		{"[1, 2, 3]", "[1.0, 2.0, 3.0]"},
		{"[]", "[]"},

		// Access
		{"(1, 2).1", "2.0"},
		{"(x: 1, y: 2).y", "2.0"},
		{"(x: 1, y: 2).0", "1.0"},
		{"(1, (2, 3)).1.0", "2.0"},
		{"[1, 2, 3][1]", "2.0"},
		{"[[1], [2, 3]][1][0]", "2.0"},

		// Statements
		{"1\n2\n3", "3.0"},
		{"", "nil"},
		{"var x = 1", "1.0"},
		{"type T :: Num", "nil"},
		{"var (a, b) = (1, 2)", "nil"},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestAssignment(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"var x = 1\nx = x + 1\nx", "2.0"},
		{"var x = 1\nx = 5", "5.0"},
		{"var p = (x: 1, y: 2)\np.x = 5\np", "(x: 5.0, y: 2.0)"},
		{"var a = [1, 2, 3]\na[0] = 10\na", "[10.0, 2.0, 3.0]"},
		{"{ var n = 1\n n = n * 10\n n }", "10.0"},
		{"var s :: Num | String = 1\ns = \"now a string\"", "now a string"},
		{"var a = 1\nvar b = 2\na = b = 3\na + b", "6.0"},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestBlocks(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"{ var a = 1\n var b = 2\n a + b }", "3.0"},
		{"{ }", "nil"},
		{"{ 1; 2 }", "2.0"},
		{"{ var a = 1 }", "1.0"},
		{"{ return 5\n 6 }", "5.0"},
		{"{ var a = 1\n { var b = a + 1\n b * 10 } }", "20.0"},
		{"var x = 1\n{ var x = 2\n x }", "2.0"},
		{"var x = 1\n{ var x = 2 }\nx", "1.0"},
		{"{ var (a, (b, c)) = (1, (2, 3))\n a + b + c }", "6.0"},
		{"{ var a = 1\n var f = fn(n: Num) => n + a\n f(2) }", "3.0"},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestLambdas(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no params", "var k = fn() => 42\nk()", "42.0"},
		{"two params", "var add = fn(a: Num, b: Num) => a + b\nadd(2, 3)", "5.0"},
		{"closure", "var make = fn(n: Num) => fn(m: Num) => n + m\nvar add2 = make(2)\nadd2(3)", "5.0"},
		{"immediate", "(fn(x: Num) => x * x)(7)", "49.0"},
		{"block body", "var f = fn(x: Num) => { var y = x * 2\n y + 1 }\nf(3)", "7.0"},
		{"early return", "var f = fn(n: Num) => { match n | 0 -> return 100 | _ -> n }\nf(0) + f(1)", "101.0"},
		{"recursion", "var fact :: Num => Num = fn(n: Num) => match n | 0 -> 1 | _ -> n * fact(n - 1)\nfact(5)", "120.0"},
		{"higher order", "var twice = fn(f: Num => Num, x: Num) => f(f(x))\ntwice(fn(n: Num) => n + 3, 1)", "7.0"},
		{"captured by value", "{ var a = 1\n var f = fn() => a\n a = 2\n f() }", "1.0"},
		{"record param", "var norm = fn(p: (x: Num, y: Num)) => p.x * p.x + p.y * p.y\nnorm((3, 4))", "25.0"},
		{"sum param with variant", "var m = fn(v: Num | Bool) => match v | Bool -> 2 | _ -> 1\nm(true) * 10 + m(3)", "21.0"},
		{"sum param with sum", "var m = fn(v: Num | Bool) => match v | Bool -> 1 | _ -> 0\nvar s :: Num | Bool = false\nm(s)", "1.0"},
		{"sum field in params", "var pick = fn(v: Num | Bool, n: Num) => match v | Bool -> n | _ -> 0\npick(true, 7)", "7.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.src); got != tt.want {
				t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"literal", "match 2 | 1 -> 10 | 2 -> 20 | _ -> 0", "20.0"},
		{"negative literal", "match -1 | -1 -> 1 | _ -> 0", "1.0"},
		{"string literal", `match "b" | "a" -> 1 | "b" -> 2 | _ -> 3`, "2.0"},
		{"bool literal", "match 1 < 2 | true -> \"yes\" | false -> \"no\"", "yes"},
		{"no match", "match 3 | 1 -> 10 | 2 -> 20", "nil"},
		{"wildcard", "match 9 | 1 -> 10 | _ -> 0", "0.0"},
		{"sum variant", "var s :: Num | String = \"x\"\nmatch s | Num -> \"num\" | String -> \"str\"", "str"},
		{"product bindings", "var v = (x: 1, y: 2)\nmatch v | (x: Num, y: Num) -> x + y | _ -> 0", "3.0"},
		{"product structural", "var v = (a: 1, b: 2)\nmatch v | (x: Num, y: Num) -> x * 10 + y | _ -> 0", "12.0"},
		{"product mismatch", "var v = (true, 2)\nmatch v | (x: Num, y: Num) -> x | _ -> 0", "0.0"},
		{"alias", "type Point :: (x: Num, y: Num)\nvar p :: Point = (x: 3, y: 4)\nmatch p | Point -> p.x | _ -> 0", "3.0"},
		{"nested in lambda", "var sign = fn(n: Num) => match n < 0 | true -> -1 | _ -> 1\nsign(-5) + sign(5) * 10", "9.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.src); got != tt.want {
				t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestTypeDeclarations(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"type Point :: (x: Num, y: Num)\nvar p :: Point\np", "(x: 0.0, y: 0.0)"},
		{"type Point :: (x: Num, y: Num)\nvar p :: Point = (x: 1, y: 2)\np.y", "2.0"},
		{"type Id :: Num\nvar i :: Id = 4\ni + 1", "5.0"},
		{"type Pair :: (Num, Num)\nvar swap = fn(p: Pair) => (p.1, p.0)\nswap((1, 2))", "(2.0, 1.0)"},
		{"{ type T :: Bool\n var b :: T\n b }", "false"},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestDefaultValues(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"var x :: Num\nx", "0.0"},
		{"var b :: Bool\nb", "false"},
		{"var s :: String\ns", ""},
		{"var n :: nil\nn", "nil"},
		{"var a :: _\na", "nil"},
		{"var s :: Num | String\ns", "0.0"},
		{"var s :: String | Num\nlen(s)", "0.0"},
		{"var f :: Num => Num\nf", "nil"},
		{"var a :: [Num]\na", "[]"},
		{"var t :: (Num, Bool)\nt", "(0.0, false)"},
		{"var g :: Box<Num>\ng", "nil"},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

// TestDefaultRoundTrip destructures a composite default back into its
// fields and checks each against its type's default.
func TestDefaultRoundTrip(t *testing.T) {
	src := `type P :: (a: Num, b: (Bool, String), c: [Num], d: Num | Bool)
var p :: P
var (a, (b, s), c, d) = p
(a, b, s, len(c), d)`
	if got, want := eval(t, src), `(0.0, false, "", 0.0, 0.0)`; got != want {
		t.Errorf("round trip = %s, want %s", got, want)
	}
}

func TestDestructureReconstruct(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"var (a, b, c) = (1, 2, 3)\n(a, b, c)", "(1.0, 2.0, 3.0)"},
		{"var (a, (b, c)) = (1, (2, 3))\n(c, b, a)", "(3.0, 2.0, 1.0)"},
		{"var (x, y) = (x: 5, y: 6)\nx * y", "30.0"},
		{"var (a, b) = (1, 2, 3)\na + b", "3.0"},
		{"var (h, _) :: (Num, Bool)\nh", "0.0"},
	}

	for _, tt := range tests {
		if got := eval(t, tt.src); got != tt.want {
			t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestInterningIdempotence(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"(x: Num, y: Num)", "(x:Num,y:Num)"},
		{"(Num, Bool)", "((Num), Bool)"},
		{"Num | Bool", "Num | Bool | Num"},
		{"Num | (Bool | String)", "Num | Bool | String"},
		{"Num => Bool", "(Num) => (Bool)"},
		{"[Num]", "[(Num)]"},
		{"[(a: Num)]", "[(a: Num)]"},
		{"Box<Num>", "Box<(Num)>"},
	}

	for _, tt := range tests {
		types := vm.NewTypeRegistry()
		c := NewCompiler(types)
		prog, err := Parse("var a :: "+tt.a+"\nvar b :: "+tt.b, "test")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if _, err := c.Compile(prog, 0); err != nil {
			t.Fatalf("Compile %s / %s: %v", tt.a, tt.b, err)
		}
		a, _ := c.Lookup("a")
		b, _ := c.Lookup("b")
		if a.Type != b.Type {
			t.Errorf("%s and %s resolve to %s (%d) and %s (%d)", tt.a, tt.b, a.Type, a.Type.ID, b.Type, b.Type.ID)
		}
	}
}

func TestCyclicValues(t *testing.T) {
	const decls = "var p :: (x: _, y: Num)\nvar q :: (x: _, y: Num)\n"
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"store through any field", "var p :: (x: _, y: Num)\np.x = (1, 2)\np.x", "(1.0, 2.0)"},
		{"self reference", "var p :: (x: _, y: Num)\np.x = p\np.y = 4\np.y", "4.0"},
		{"equal self loops", decls + "p.x = p\nq.x = q\np == q", "true"},
		{"self loop with itself", decls + "p.x = p\np == p", "true"},
		{"self loops differ", decls + "p.x = p\nq.x = q\nq.y = 1\np != q", "true"},
		{"mutual cycle", decls + "p.x = q\nq.x = p\np == q", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval(t, tt.src); got != tt.want {
				t.Errorf("eval(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code vm.ErrorCode
	}{
		{"undeclared", "x + 1", vm.ErrUndeclaredVariable},
		{"undeclared assign", "x = 1", vm.ErrUndeclaredVariable},
		{"redeclared", "var x = 1\nvar x = 2", vm.ErrNameCollision},
		{"redeclared in block", "{ var x = 1\n var x = 2\n x }", vm.ErrNameCollision},
		{"duplicate field", "(a: 1, a: 2)", vm.ErrNameCollision},
		{"duplicate binding", "var (a, a) = (1, 2)", vm.ErrNameCollision},
		{"duplicate param", "fn(a: Num, a: Num) => a", vm.ErrNameCollision},
		{"duplicate type", "type T :: Num\ntype T :: Bool", vm.ErrNameCollision},
		{"native redeclared", "var print = 1", vm.ErrNameCollision},
		{"unknown type", "var x :: Foo", vm.ErrUnknownType},
		{"type before declaration", "var p :: Point\ntype Point :: (Num, Num)", vm.ErrUnknownType},
		{"arithmetic", "1 + true", vm.ErrTypeError},
		{"negate", "-true", vm.ErrTypeError},
		{"not", "!1", vm.ErrTypeError},
		{"equality", `1 == "a"`, vm.ErrTypeError},
		{"comparison", `"a" < "b"`, vm.ErrTypeError},
		{"annotation", `var x :: Num = "s"`, vm.ErrTypeError},
		{"record annotation", "var p :: (x: Num) = (y: 1)", vm.ErrTypeError},
		{"assignment", "var x = 1\nx = true", vm.ErrTypeError},
		{"array elements", "[1, true]", vm.ErrTypeError},
		{"array index", "[1][true]", vm.ErrTypeError},
		{"index non-array", "(1, 2)[0]", vm.ErrTypeError},
		{"match literal", `match 1 | "a" -> 1 | _ -> 2`, vm.ErrTypeError},
		{"insufficient tuple", "var (a, b, c) = (1, 2)", vm.ErrInsufficientTuple},
		{"destructure scalar", "var (a, b) = 1", vm.ErrInvalidDestr},
		{"destructure nested scalar", "var (a, (b, c)) = (1, 2)", vm.ErrInvalidDestr},
		{"missing field", "(1, 2).z", vm.ErrInvalidSlot},
		{"index out of range", "(1, 2).5", vm.ErrInvalidSlot},
		{"field of scalar", "var n = 1\nn.x", vm.ErrInvalidSlot},
		{"mixed record", "(x: 1, 2)", vm.ErrIncompleteRecord},
		{"mixed record type", "var t :: (x: Num, Bool)", vm.ErrIncompleteRecord},
		{"declaration operand", "1 + var x = 2", vm.ErrUnknownAST},
		{"top-level return", "return 1", vm.ErrNonBlockReturn},
		{"bad argument", "var f = fn(x: Num) => x\nf(true)", vm.ErrInvalidLambdaParam},
		{"missing argument", "var f = fn(x: Num) => x\nf()", vm.ErrInvalidLambdaParam},
		{"argument not a variant", "var m = fn(v: Num | Bool) => v\nm(nil)", vm.ErrInvalidLambdaParam},
		{"sum argument to variant param", "var f = fn(x: Num) => x\nvar s :: Num | Bool = 1\nf(s)", vm.ErrInvalidLambdaParam},
		{"call number", "var n = 1\nn(2)", vm.ErrNonLambdaCall},
		{"call string", `"f"()`, vm.ErrNonLambdaCall},
		{"assign param", "fn(x: Num) => { x = 2 }", vm.ErrImmutableVariable},
		{"assign native", "print = 1", vm.ErrImmutableVariable},
		{"assign match binding", "match (x: 1) | (x: Num) -> x = 2 | _ -> 0", vm.ErrImmutableVariable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := failCode(t, tt.src); code != tt.code {
				t.Errorf("%q: code = %v, want %v", tt.src, code, tt.code)
			}
		})
	}
}

func TestRuntimeFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code vm.ErrorCode
	}{
		{"array bounds", "[1, 2][5]", vm.ErrArrOutOfBounds},
		{"negative index", "var a = [1]\na[-1] = 2", vm.ErrArrOutOfBounds},
		{"runaway recursion", "var f :: Num => Num = fn(n: Num) => f(n + 1)\nf(1)", vm.ErrStackOverflow},
		{"native argument", "len(1)", vm.ErrInvalidLambdaParam},
		{"time argument", "time(1)", vm.ErrInvalidLambdaParam},
		{"call nil function", "var f :: Num => Num\nf(1)", vm.ErrNonLambdaCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := failCode(t, tt.src); code != tt.code {
				t.Errorf("%q: code = %v, want %v", tt.src, code, tt.code)
			}
		})
	}
}

func TestDiagnosticFormat(t *testing.T) {
	s := NewSession(Options{})
	_, err := s.CompileAndRun("var x = 1\ny", "demo")
	if err == nil {
		t.Fatalf("expected an error")
	}
	want := "[demo:2] Error UNDECLARED_VARIABLE: undeclared variable 'y'"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
	ds, ok := err.(Diagnostics)
	if !ok || len(ds) != 1 {
		t.Fatalf("error = %T, want one Diagnostics entry", err)
	}
	if ds[0].Pos.Column != 1 {
		t.Errorf("column = %d, want 1", ds[0].Pos.Column)
	}
}

func TestCodegenShape(t *testing.T) {
	tests := []struct {
		src  string
		want []vm.Opcode
	}{
		{"3 + 4 * 2", []vm.Opcode{vm.OpPush, vm.OpPush, vm.OpPush, vm.OpMulF, vm.OpAddF, vm.OpHalt}},
		{"1 <= 2", []vm.Opcode{vm.OpPush, vm.OpPush, vm.OpSubF, vm.OpIsPos, vm.OpNot, vm.OpHalt}},
		{"(1, 2)", []vm.Opcode{vm.OpPush, vm.OpPush, vm.OpTuple, vm.OpHalt}},
		{`"s"`, []vm.Opcode{vm.OpStr, vm.OpHalt}},
		{"var x = 1\nx", []vm.Opcode{vm.OpPush, vm.OpGStore, vm.OpPop, vm.OpGLoad, vm.OpHalt}},
		{"{ var a = 1\n a }", []vm.Opcode{vm.OpPush, vm.OpLoad, vm.OpRStore, vm.OpPopN, vm.OpRLoad, vm.OpHalt}},
		{"{ 1 }", []vm.Opcode{vm.OpPush, vm.OpHalt}},
		{"var t :: (Num, Bool)", []vm.Opcode{vm.OpPush, vm.OpPush, vm.OpTuple, vm.OpGStore, vm.OpHalt}},
		{"fn() => 1", []vm.Opcode{vm.OpJmp, vm.OpPush, vm.OpRet, vm.OpClosure, vm.OpHalt}},
		{"match 1 | 1 -> 2 | _ -> 3", []vm.Opcode{
			vm.OpPush, vm.OpRStore,
			vm.OpRLoad, vm.OpPush, vm.OpEq, vm.OpJmpF, vm.OpPush, vm.OpJmp,
			vm.OpPush, vm.OpJmp,
			vm.OpHalt,
		}},
	}

	for _, tt := range tests {
		got := compileOps(t, tt.src)
		if len(got) != len(tt.want) {
			t.Errorf("%q: ops = %v, want %v", tt.src, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%q: ops = %v, want %v", tt.src, got, tt.want)
				break
			}
		}
	}
}

func TestCompileAtBase(t *testing.T) {
	prog, err := Parse("var f = fn(x: Num) => x\nf(1)", "test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	code, err := NewCompiler(vm.NewTypeRegistry()).Compile(prog, 100)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// JMP over the body lands inside the unit.
	if !code[0].IsOp(vm.OpJmp) {
		t.Fatalf("first op = %v, want JMP", code[0].Op)
	}
	if target := code[1].Int; target < 100 || target >= 100+len(code) {
		t.Errorf("jump target %d outside %d..%d", target, 100, 100+len(code))
	}
}

func TestResolvedTypes(t *testing.T) {
	prog, err := Check("var p = (x: 1, y: true)\np.y\nvar f = fn(n: Num) => n > 0", "test")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	tests := []struct {
		node Node
		want string
	}{
		{prog.Stmts[0], "(x:Num,y:Bool)"},
		{prog.Stmts[1], "Bool"},
		{prog.Stmts[1].(*Accessor).Object, "(x:Num,y:Bool)"},
		{prog.Stmts[2], "Num=>Bool"},
		{prog.Stmts[2].(*VarDecl).Init.(*Lambda).Params[0], "Num"},
		{prog, "Num=>Bool"},
	}
	for i, tt := range tests {
		if got := tt.node.ResolvedType(); got == nil || got.Name != tt.want {
			t.Errorf("node %d (%T) type = %v, want %s", i, tt.node, got, tt.want)
		}
	}
}
