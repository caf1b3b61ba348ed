package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/loxlang/loxvm/lang/compiler"
	"github.com/loxlang/loxvm/lang/object"
	"github.com/loxlang/loxvm/lang/vm"
)

// run compiles and executes src, returning stdout, stderr and any runtime
// error. It fails the test outright on a compile error since that's not
// what these end-to-end cases are exercising.
func run(t *testing.T, src string) (stdout, stderr string, runErr error) {
	t.Helper()
	heap := object.NewHeap()
	machine := vm.New(heap)
	var out, errOut bytes.Buffer
	machine.Stdout = &out
	machine.Stderr = &errOut
	machine.Silent = true

	c := compiler.New(heap)
	var compileErrs bytes.Buffer
	c.SetErrOut(&compileErrs)
	fn, ok := c.Compile(src)
	if !ok {
		t.Fatalf("unexpected compile error: %s", compileErrs.String())
	}

	_, runErr = machine.Run(fn)
	return out.String(), errOut.String(), runErr
}

func TestArithmeticPrecedence(t *testing.T) {
	out, _, err := run(t, `print 1 + 2 * 3;`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Errorf("output = %q, want 7", out)
	}
}

func TestStringConcatenationAndSlicing(t *testing.T) {
	out, _, err := run(t, `
print "hel" + "lo";
print "hello"[1:4];
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "ell" {
		t.Errorf("output = %q, want [hello ell]", lines)
	}
}

func TestForLoopPrintsSequence(t *testing.T) {
	out, _, err := run(t, `
for (var i = 0; i < 3; i = i + 1) {
  print i;
}
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "0,1,2" {
		t.Errorf("output = %v, want [0 1 2]", lines)
	}
}

func TestClosureCounter(t *testing.T) {
	out, _, err := run(t, `
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
print counter();
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "1,2,3" {
		t.Errorf("output = %v, want [1 2 3]", lines)
	}
}

func TestLoopClosuresCaptureDistinctCells(t *testing.T) {
	out, _, err := run(t, `
var first; var second;
for (var i = 0; i < 2; i = i + 1) {
  var j = i;
  fun get() { return j; }
  if (i == 0) first = get; else second = get;
}
print first();
print second();
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "0,1" {
		t.Errorf("output = %v, want [0 1]: each iteration must close over its own cell", lines)
	}
}

func TestClassInitInheritanceAndSuper(t *testing.T) {
	out, _, err := run(t, `
class A {
  init() { this.value = 7; }
  greet() { print "A"; }
}
class B < A {
  greet() {
    super.greet();
    print "B";
  }
}
var b = B();
b.greet();
print b.value;
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "A,B,7" {
		t.Errorf("output = %v, want [A B 7]", lines)
	}
}

func TestBreakAndContinueInLoop(t *testing.T) {
	out, _, err := run(t, `
for (var i = 0; i < 5; i = i + 1) {
  if (i == 1) continue;
  if (i == 3) break;
  print i;
}
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "0,2" {
		t.Errorf("output = %v, want [0 2]", lines)
	}
}

func TestTernaryAndExponent(t *testing.T) {
	out, _, err := run(t, `
print 2 ** 3 ** 2;
print (1 < 2) ? "yes" : "no";
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "512" || lines[1] != "yes" {
		t.Errorf("output = %v, want [512 yes]", lines)
	}
}

func TestRuntimeErrorReportsStackTrace(t *testing.T) {
	_, stderr, err := run(t, `
fun boom() {
  return 1 + "nope";
}
boom();
`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(stderr, "boom") {
		t.Errorf("stack trace = %q, want a frame for boom", stderr)
	}
}

func TestOutOfRangeStringIndexIsRuntimeError(t *testing.T) {
	_, _, err := run(t, `print "abc"[3];`)
	if err == nil {
		t.Fatal("expected a runtime error for an out-of-bounds index")
	}
}

func TestNegativeStringIndexIsValidAtBoundary(t *testing.T) {
	out, _, err := run(t, `print "abc"[-3];`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if strings.TrimSpace(out) != "a" {
		t.Errorf("output = %q, want a", out)
	}
}

func TestOpenEndedSlices(t *testing.T) {
	out, _, err := run(t, `
var s = "hello";
print s[1:];
print s[:2];
print s[:];
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "ello,he,hello" {
		t.Errorf("output = %v, want [ello he hello]", lines)
	}
}

func TestAssignmentResultFlowsToNextStatement(t *testing.T) {
	// exercises the set/pop/get elision end to end: the value left by the
	// assignment is what print reads
	out, _, err := run(t, `var x = 0; x = 41 + 1; print x; print x;`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if strings.Join(lines, ",") != "42,42" {
		t.Errorf("output = %v, want [42 42]", lines)
	}
}

func TestConditionalAssignmentIsNotElidedAcrossBranches(t *testing.T) {
	out, _, err := run(t, `var x = 0; if (false) x = 1; print x;`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Errorf("output = %q, want 0", out)
	}
}

func TestPopManyOpcode(t *testing.T) {
	// the compiler never emits POP_MANY (scope locals pop one at a time so
	// captured ones can close), so drive it with a hand-assembled chunk:
	// push three numbers, drop the top two, return the survivor.
	heap := object.NewHeap()
	fn := heap.NewFunction()
	k, _ := fn.Chunk.AddConstant(object.Number(7))
	fn.Chunk.Write(byte(object.OpConstant), 1)
	fn.Chunk.Write(byte(k), 1)
	k2, _ := fn.Chunk.AddConstant(object.Number(8))
	fn.Chunk.Write(byte(object.OpConstant), 1)
	fn.Chunk.Write(byte(k2), 1)
	fn.Chunk.Write(byte(object.OpConstant), 1)
	fn.Chunk.Write(byte(k2), 1)
	fn.Chunk.Write(byte(object.OpPopN), 1)
	fn.Chunk.Write(2, 1)
	fn.Chunk.Write(byte(object.OpReturn), 1)

	machine := vm.New(heap)
	machine.Silent = true
	result, err := machine.Run(fn)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if n, ok := result.(object.Number); !ok || n != 7 {
		t.Errorf("result = %v, want Number(7)", result)
	}
}

func TestImportAndCallNative(t *testing.T) {
	out, _, err := run(t, `
import clock;
var t = clock();
print t >= 0;
`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if strings.TrimSpace(out) != "true" {
		t.Errorf("output = %q, want true", out)
	}
}

func TestStressGCProducesSameOutput(t *testing.T) {
	// collecting on every allocation must not change observable behavior,
	// in particular string interning: runtime-built strings still compare
	// equal to each other by identity
	src := `
class Greeter {
  init(name) { this.name = name; }
  greet() { return "hi " + this.name; }
}
var g = Greeter("lox");
print g.greet() == "hi " + "lox";
fun outer() {
  var s = "cap";
  fun inner() { return s + "!"; }
  return inner;
}
print outer()();
`
	var outputs [2]string
	for i, stress := range []bool{false, true} {
		heap := object.NewHeap()
		heap.StressGC = stress
		machine := vm.New(heap)
		var out, errOut bytes.Buffer
		machine.Stdout = &out
		machine.Stderr = &errOut
		machine.Silent = true

		c := compiler.New(heap)
		c.SetErrOut(&errOut)
		fn, ok := c.Compile(src)
		if !ok {
			t.Fatalf("stress=%v: unexpected compile error: %s", stress, errOut.String())
		}
		if _, err := machine.Run(fn); err != nil {
			t.Fatalf("stress=%v: unexpected runtime error: %v", stress, err)
		}
		outputs[i] = out.String()
	}
	if outputs[0] != outputs[1] {
		t.Errorf("stress collection changed output: %q vs %q", outputs[0], outputs[1])
	}
	if strings.TrimSpace(outputs[0]) != "true\ncap!" {
		t.Errorf("output = %q, want [true cap!]", outputs[0])
	}
}

func TestTopLevelReturnIsProcessExitCode(t *testing.T) {
	heap := object.NewHeap()
	machine := vm.New(heap)
	var out bytes.Buffer
	machine.Stdout = &out
	machine.Silent = true

	c := compiler.New(heap)
	fn, ok := c.Compile(`return 42;`)
	if !ok {
		t.Fatal("unexpected compile error")
	}
	result, err := machine.Run(fn)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	n, ok := result.(object.Number)
	if !ok || n != 42 {
		t.Errorf("result = %v, want Number(42)", result)
	}
}
