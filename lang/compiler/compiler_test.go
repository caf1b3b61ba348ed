package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/object"
)

func compile(t *testing.T, src string) (*object.ObjFunction, bool, string) {
	t.Helper()
	heap := object.NewHeap()
	c := compiler.New(heap)
	var errOut bytes.Buffer
	c.SetErrOut(&errOut)
	fn, ok := c.Compile(src)
	return fn, ok, errOut.String()
}

func TestCompileSimpleProgramSucceeds(t *testing.T) {
	fn, ok, errs := compile(t, `print 1 + 2 * 3;`)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
	if fn == nil {
		t.Fatal("expected a non-nil function on success")
	}
}

func TestCompileClassesAndClosures(t *testing.T) {
	src := `
class A {
  init(x) { this.x = x; }
  who() { print "A"; }
}
class B < A {
  who() { super.who(); print "B"; }
}
fun makeCounter() {
  var c = 0;
  fun inc() { c = c + 1; return c; }
  return inc;
}
`
	_, ok, errs := compile(t, src)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
}

func TestFinalReassignmentIsCompileError(t *testing.T) {
	_, ok, errs := compile(t, `final var x = 1; x = 2;`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "Cannot assign to final variable") {
		t.Errorf("errors = %q, want a final-variable message", errs)
	}
}

func TestFinalWithoutVarKeywordIsStillFinal(t *testing.T) {
	_, ok, errs := compile(t, `final x = 1; x = 2;`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "Cannot assign to final variable") {
		t.Errorf("errors = %q, want a final-variable message", errs)
	}
}

func TestFinalWithoutInitializerAllowsOneAssignment(t *testing.T) {
	_, ok, errs := compile(t, `final var x; x = 1;`)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
	_, ok, errs = compile(t, `final var x; x = 1; x = 2;`)
	if ok {
		t.Fatal("expected a compile error on the second assignment")
	}
	if !strings.Contains(errs, "Cannot assign to final variable") {
		t.Errorf("errors = %q, want a final-variable message", errs)
	}
}

func TestRedundantSetPopGetIsElided(t *testing.T) {
	fn, ok, errs := compile(t, `var x = 0; x = 1; print x;`)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
	code := fn.Chunk.Code
	redundant := []byte{byte(object.OpSetLocal), 1, byte(object.OpPop), byte(object.OpGetLocal), 1}
	if bytes.Contains(code, redundant) {
		t.Errorf("chunk still contains SET_LOCAL 1; POP; GET_LOCAL 1: % x", code)
	}
	collapsed := []byte{byte(object.OpSetLocal), 1, byte(object.OpPrint)}
	if !bytes.Contains(code, collapsed) {
		t.Errorf("chunk missing collapsed SET_LOCAL 1; PRINT: % x", code)
	}
}

func TestElisionStopsAtJumpTargets(t *testing.T) {
	// the read of x follows a patched jump target (the end of the if), so
	// the SET inside the branch must keep its POP
	fn, ok, errs := compile(t, `var x = 0; if (false) x = 1; print x;`)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
	collapsed := []byte{byte(object.OpSetLocal), 1, byte(object.OpPrint)}
	if bytes.Contains(fn.Chunk.Code, collapsed) {
		t.Errorf("elision crossed a jump target: % x", fn.Chunk.Code)
	}
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	_, ok, errs := compile(t, `break;`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "break") {
		t.Errorf("errors = %q, want a break-outside-loop message", errs)
	}
}

func TestContinueOutsideLoopIsCompileError(t *testing.T) {
	_, ok, _ := compile(t, `continue;`)
	if ok {
		t.Fatal("expected a compile error")
	}
}

func TestSelfInheritanceIsCompileError(t *testing.T) {
	_, ok, errs := compile(t, `class A < A {}`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "inherit from itself") {
		t.Errorf("errors = %q, want a self-inheritance message", errs)
	}
}

func TestUndefinedVariableIsCompileError(t *testing.T) {
	_, ok, errs := compile(t, `print nope;`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "Undefined variable") {
		t.Errorf("errors = %q, want an undefined-variable message", errs)
	}
}

func TestReturnFromTopLevelCompiles(t *testing.T) {
	// a top-level return supplies the script's exit code
	_, ok, errs := compile(t, `return 1;`)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
	if errs != "" {
		t.Errorf("errors = %q, want no diagnostics", errs)
	}
}

func TestReturnValueFromInitializerIsCompileError(t *testing.T) {
	src := `class A { init() { return 1; } }`
	_, ok, errs := compile(t, src)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "initializer") {
		t.Errorf("errors = %q, want an initializer-return message", errs)
	}
}

func TestTooManyLocalsIsCompileError(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("var v")
		b.WriteString(itoa(i))
		b.WriteString(" = 0;\n")
	}
	_, ok, errs := compile(t, b.String())
	if ok {
		t.Fatal("expected a compile error past the local-variable cap")
	}
	if !strings.Contains(errs, "Too many local variables") {
		t.Errorf("errors = %q, want a too-many-locals message", errs)
	}
}

func TestDuplicateDeclarationInSameScopeIsCompileError(t *testing.T) {
	_, ok, errs := compile(t, `var x = 1; var x = 2;`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "Already a variable") {
		t.Errorf("errors = %q, want a duplicate-declaration message", errs)
	}
}

func TestImportUnknownNativeIsCompileError(t *testing.T) {
	_, ok, errs := compile(t, `import bogus;`)
	if ok {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(errs, "Unknown native") {
		t.Errorf("errors = %q, want an unknown-native message", errs)
	}
}

func TestImportKnownNativeSucceeds(t *testing.T) {
	_, ok, errs := compile(t, `import clock; print clock();`)
	if !ok {
		t.Fatalf("expected success, got errors: %s", errs)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
