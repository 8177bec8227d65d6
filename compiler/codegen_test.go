package compiler

import "testing"

func mustCompile(t *testing.T, src string, opts Options) *Object {
	t.Helper()
	prog, err := ParseSource([]byte(src))
	if err != nil {
		t.Fatalf("ParseSource(%q): %v", src, err)
	}
	obj, err := NewCodegen(opts).CompileProgram(prog)
	if err != nil {
		t.Fatalf("CompileProgram(%q): %v", src, err)
	}
	return obj
}

func TestCompileMinimalFunctionEndsInRet(t *testing.T) {
	obj := mustCompile(t, "@main() { ret 1 }", Options{})
	if len(obj.Symbols) != 1 || obj.Symbols[0].Name != "main" {
		t.Fatalf("got %+v", obj.Symbols)
	}
	if len(obj.Text) == 0 {
		t.Fatalf("expected non-empty .text")
	}
	if obj.Text[len(obj.Text)-1] != 0xC3 {
		t.Errorf("last emitted byte = %#x, want 0xC3 (ret)", obj.Text[len(obj.Text)-1])
	}
}

func TestCompileRejectsDuplicateFunction(t *testing.T) {
	prog, err := ParseSource([]byte("@f() { ret 1 } @f() { ret 2 }"))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	_, err = NewCodegen(Options{}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected a redeclaration error")
	}
	cerr, ok := err.(*CompileError)
	if !ok || cerr.Kind != SemanticError {
		t.Fatalf("got %+v, want a SemanticError", err)
	}
}

func TestCompileRejectsTooManyParams(t *testing.T) {
	fn := Function{Name: "f", Args: make([]VarType, MaxFuncArgs+1)}
	err := NewCodegen(Options{}).CompileFunction(&fn)
	if err == nil {
		t.Fatalf("expected an error for exceeding MaxFuncArgs")
	}
}

func TestCompileRejectsUnknownIdentifier(t *testing.T) {
	prog, err := ParseSource([]byte("@f() { ret x }"))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if _, err := NewCodegen(Options{}).CompileProgram(prog); err == nil {
		t.Fatalf("expected a semantic error for an undeclared identifier")
	}
}

func TestCompileRejectsAssignToImmutableParam(t *testing.T) {
	prog, _ := ParseSource([]byte("@f(a:int) { a = 1 ret a }"))
	_, err := NewCodegen(Options{}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected an error assigning to an immutable parameter")
	}
}

func TestCompileRejectsCallToUndeclaredFunction(t *testing.T) {
	prog, _ := ParseSource([]byte("@f() { ret g() }"))
	_, err := NewCodegen(Options{}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected an error calling a function not yet declared")
	}
}

func TestCompileAllowsForwardSelfCall(t *testing.T) {
	// f may call itself: its own symbol is registered before the body
	// that references it finishes lowering.
	prog, err := ParseSource([]byte("@f(n:int) { if n == 0 { ret 0 } ret f(n - 1) }"))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if _, err := NewCodegen(Options{}).CompileProgram(prog); err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
}

func TestCompileRejectsBreakOutsideLoop(t *testing.T) {
	prog, _ := ParseSource([]byte("@f() { break ret 1 }"))
	_, err := NewCodegen(Options{}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected an error for break outside a loop")
	}
}

func TestCompileRejectsNonArithExprStatement(t *testing.T) {
	prog, _ := ParseSource([]byte("@f() { 1 == 1 ret 1 }"))
	_, err := NewCodegen(Options{}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected an error for a non-arithmetic expression statement")
	}
}

func TestCompileTextCapOverflow(t *testing.T) {
	prog, _ := ParseSource([]byte("@f() { ret 1 + 2 + 3 + 4 + 5 + 6 + 7 + 8 }"))
	_, err := NewCodegen(Options{TextCap: 4}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected a buffer overflow error with a 4-byte text cap")
	}
}

func TestCompileSymtabCapOverflow(t *testing.T) {
	prog, _ := ParseSource([]byte("@a() { ret 1 } @b() { ret 2 }"))
	_, err := NewCodegen(Options{SymtabCap: 2}).CompileProgram(prog)
	if err == nil {
		t.Fatalf("expected a symtab overflow error: 2 functions + 2 reserved entries exceeds a cap of 2")
	}
}

func TestCompileUnsignedVsSignedDivisionDiffer(t *testing.T) {
	src := "@f(a:int,b:int) { ret a / b }"
	unsigned := mustCompile(t, src, Options{SignedDivision: false})
	signed := mustCompile(t, src, Options{SignedDivision: true})
	if string(unsigned.Text) == string(signed.Text) {
		t.Errorf("unsigned and signed division should emit different instruction sequences")
	}
}

func TestCompileLoopResolvesBreakAndContinue(t *testing.T) {
	prog, err := ParseSource([]byte("@f() { dec i:int = 0 while i < 10 { i = i + 1 if i == 5 { break } continue } ret i }"))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if _, err := NewCodegen(Options{}).CompileProgram(prog); err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
}
