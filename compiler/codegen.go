package compiler

// Options tunes codegen behavior at points spec.md left open (see
// SPEC_FULL.md §1 "Open Question decisions").
type Options struct {
	// SignedDivision switches Div from the documented unsigned DIV/mov
	// RDX,0 sequence to IDIV with a CQO sign-extension. Off by default
	// to match the worked examples in the original design notes.
	SignedDivision bool

	// TextCap, SymtabCap, StrtabCap impose a hard ceiling on their
	// respective buffers, reproducing the original's fixed-size arrays
	// when non-zero. Zero means unlimited (the default, and the
	// rewrite's actual behavior per the design notes' "only externally
	// observable constant is MAX_FUNC_ARGS"). StrtabCap counts the
	// symbol names only; the build-ID note objfile.WithBuildID appends
	// is not counted against it.
	TextCap, SymtabCap, StrtabCap int
}

// Symbol is a function's entry in the object's symbol table: its name,
// its .text start offset, and its encoded length.
type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
}

// Object is the codegen's output: a flat .text blob and the symbols
// defined within it. Building the ELF64 container around these is the
// object sink's job (package objfile), kept deliberately ignorant of
// how the bytes were produced.
type Object struct {
	Text    []byte
	Symbols []Symbol
}

// Codegen lowers a parsed Program into an Object. Functions are
// compiled in program order and share one growing .text buffer and
// symbol table; a function may only call itself or a function that
// precedes it (its own entry is recorded before its body is lowered —
// see CompileFunction), since the symbol table it consults for calls is
// populated incrementally rather than in a separate pre-pass. The
// restriction to preceding functions mirrors the original's single
// symtab scan in
// original_source/src/codegen.c's _evaluate_arith_expression
// (ARITH_FUNC_CALL case), which only ever finds symbols already
// written.
type Codegen struct {
	opts      Options
	text      *GrowableBuffer
	symbols   []Symbol
	funcIndex map[string]Symbol
	traceSink func([]byte)
}

// SetTraceSink installs a callback invoked with every instruction's
// encoded bytes as it is flushed, for package trace's real-time feed.
// Must be called before CompileProgram/CompileFunction.
func (c *Codegen) SetTraceSink(sink func([]byte)) {
	c.traceSink = sink
}

// NewCodegen creates a codegen ready to compile a Program.
func NewCodegen(opts Options) *Codegen {
	return &Codegen{
		opts:      opts,
		text:      NewGrowableBuffer("text", opts.TextCap),
		funcIndex: make(map[string]Symbol),
	}
}

// CompileProgram lowers every function in prog and returns the
// resulting Object. Stops at the first error.
func (c *Codegen) CompileProgram(prog *Program) (*Object, error) {
	for i := range prog.Functions {
		if err := c.CompileFunction(&prog.Functions[i]); err != nil {
			return nil, err
		}
	}
	return &Object{Text: c.text.Bytes(), Symbols: c.symbols}, nil
}

// CompileFunction lowers a single function and registers its symbol.
// Exported separately from CompileProgram so a caller wanting
// keep-going batch diagnostics (see package diag) can drive functions
// one at a time and continue past a failure.
func (c *Codegen) CompileFunction(fn *Function) error {
	if _, exists := c.funcIndex[fn.Name]; exists {
		return errNoPos(SemanticError, "function %q redeclared", fn.Name)
	}
	if len(fn.Args) > MaxFuncArgs {
		return errNoPos(SemanticError, "function %q declares %d parameters, limit is %d", fn.Name, len(fn.Args), MaxFuncArgs)
	}

	fg := &funcGen{cg: c, scope: NewScope(), alloc: NewAllocator(), enc: (&Encoder{}).SetSink(c.traceSink)}
	fg.jmp = NewJumpTable(fg.patch)
	start := c.text.Len()

	// Record the function's start before lowering its body so the body
	// can call itself; Size is filled in once the epilogue is emitted.
	c.funcIndex[fn.Name] = Symbol{Name: fn.Name, Value: uint32(start)}
	done := false
	defer func() {
		if !done {
			delete(c.funcIndex, fn.Name)
		}
	}()

	if err := fg.emitPrologue(fn); err != nil {
		return err
	}
	if err := fg.lowerBlock(fn.Body, fg.jmp); err != nil {
		return err
	}
	if err := fg.emitEpilogue(); err != nil {
		return err
	}
	if !fg.jmp.Empty() {
		return errNoPos(CodegenError, "function %q: unresolved branch to %v (break/continue outside a loop)", fn.Name, fg.jmp.PendingLabels())
	}

	sym := Symbol{Name: fn.Name, Value: uint32(start), Size: uint32(c.text.Len() - start)}
	if c.opts.SymtabCap > 0 && len(c.symbols)+1+2 > c.opts.SymtabCap {
		// +1 for this function's entry; +2 accounts for the null and
		// .text-section entries the object sink prepends (see
		// objfile.Write).
		return errNoPos(CodegenError, "symtab buffer overflow: capacity %d entries exceeded", c.opts.SymtabCap)
	}
	if c.opts.StrtabCap > 0 {
		// Leading NUL and ".text\0", then every function name with its NUL.
		n := 1 + len(".text") + 1 + len(fn.Name) + 1
		for _, s := range c.symbols {
			n += len(s.Name) + 1
		}
		if n > c.opts.StrtabCap {
			return errNoPos(CodegenError, "strtab buffer overflow: capacity %d bytes exceeded", c.opts.StrtabCap)
		}
	}
	c.symbols = append(c.symbols, sym)
	c.funcIndex[fn.Name] = sym
	done = true
	return nil
}

// funcGen holds the per-function mutable state threaded through
// lowering: the shared stack frame scope, the register allocator, one
// reusable instruction encoder, and the function-local jump table.
type funcGen struct {
	cg    *Codegen
	scope *Scope
	alloc *Allocator
	enc   *Encoder
	jmp   *JumpTable
}

func (fg *funcGen) patch(fieldOffset int, disp int32) error {
	return fg.cg.text.WriteAt(fieldOffset, leBytes(int64(disp), 4))
}

func (fg *funcGen) emit(b []byte) (int, error) {
	off := fg.cg.text.Len()
	if err := fg.cg.text.Write(b); err != nil {
		return 0, err
	}
	return off, nil
}

func calleeSavedSlotName(r Reg) string { return " " + r.String() }

var calleeSaved = [5]Reg{RBX, R12, R13, R14, R15}
var paramRegs = [6]Reg{RDI, RSI, RDX, RCX, R8, R9}

// alignFrame rounds n up to the nearest multiple of 16. Per the System V
// ABI, RSP%16==8 at a function's first instruction (the `call` that got
// us here pushed an 8-byte return address onto a 16-aligned RSP); the
// prologue's `push RBP` accounts for that odd 8 bytes and brings RSP
// back to 0 mod 16. The callee-saved and parameter spills that follow
// are `mov`s into scope slots, not pushes, so RSP does not move again
// until `sub RSP, frame_size` — frame_size must itself be 0 mod 16 to
// keep RSP 16-aligned at every `call` emitted in the function body.
func alignFrame(n uint32) uint32 {
	return (n + 15) &^ 15
}

// sumDeclareSizes totals the Declare statements directly in block,
// without descending into nested If/While bodies. This matches
// original_source/src/codegen.c's calc_stack_size, which scans only the
// function's top-level statement list; declarations nested inside a
// conditional or loop still insert into the same function-wide Scope
// (see emitPrologue) and rely on the ABI red zone if they push the
// frame beyond what was pre-summed here.
func sumDeclareSizes(block Block) uint32 {
	var size uint32
	for _, stmt := range block {
		if _, ok := stmt.(StmtDeclare); ok {
			size += 8
		}
	}
	return size
}

// emitPrologue writes `push RBP; mov RBP, RSP`, spills the five
// callee-saved registers into synthetic scope slots, spills the
// parameter registers into their named slots, then reserves the frame
// with a single `sub RSP, frame_size`.
func (fg *funcGen) emitPrologue(fn *Function) error {
	if _, err := fg.emit(fg.enc.OpcodePlusReg(0x50, RBP).Flush()); err != nil { // push rbp
		return err
	}
	if _, err := fg.emit(fg.enc.REX(true, false, false, false).Opcode(0x89).ModRM(0b11, RSP, RBP).Flush()); err != nil { // mov rbp, rsp
		return err
	}

	for _, r := range calleeSaved {
		entry, ok := fg.scope.Insert(calleeSavedSlotName(r), 8)
		if !ok {
			return errNoPos(CodegenError, "internal: callee-saved slot for %s collides", r)
		}
		if err := fg.emitStoreReg(r, entry.Position); err != nil {
			return err
		}
	}

	for i, arg := range fn.Args {
		entry, ok := fg.scope.InsertImmutable(arg.Name, 8)
		if !ok {
			return errNoPos(SemanticError, "function %q: duplicate parameter %q", fn.Name, arg.Name)
		}
		if err := fg.emitStoreReg(paramRegs[i], entry.Position); err != nil {
			return err
		}
	}

	frameSize := alignFrame(fg.scope.FrameSize() + sumDeclareSizes(fn.Body))
	if frameSize > 0 {
		bytes := fg.enc.REX(true, false, false, false).Opcode(0x81).ModRMDigit(0b11, 5, RSP).Imm32(int32(frameSize)).Flush()
		if _, err := fg.emit(bytes); err != nil {
			return err
		}
	}
	return nil
}

// emitEpilogue restores callee-saved registers, tears down the frame
// (`mov RSP, RBP; pop RBP; ret`), and resolves the function's Ret
// label at the position recorded before any of that runs.
func (fg *funcGen) emitEpilogue() error {
	retPos := fg.cg.text.Len()
	for _, r := range calleeSaved {
		entry, ok := fg.scope.Get(calleeSavedSlotName(r))
		if !ok {
			return errNoPos(CodegenError, "internal: missing callee-saved slot for %s", r)
		}
		if err := fg.emitLoadReg(r, entry.Position); err != nil {
			return err
		}
	}
	if _, err := fg.emit(fg.enc.REX(true, false, false, false).Opcode(0x89).ModRM(0b11, RBP, RSP).Flush()); err != nil { // mov rsp, rbp
		return err
	}
	if _, err := fg.emit(fg.enc.OpcodePlusReg(0x58, RBP).Flush()); err != nil { // pop rbp
		return err
	}
	if _, err := fg.emit(fg.enc.Opcode(0xC3).Flush()); err != nil { // ret
		return err
	}
	return fg.jmp.Resolve(SimpleLabel(LabelRet), retPos)
}

func (fg *funcGen) emitStoreReg(r Reg, pos int32) error { // mov [rbp+pos], r
	bytes := fg.enc.REX(true, false, false, false).Opcode(0x89).ModRM(0b10, r, RBP).Disp32(pos).Flush()
	_, err := fg.emit(bytes)
	return err
}

func (fg *funcGen) emitLoadReg(r Reg, pos int32) error { // mov r, [rbp+pos]
	bytes := fg.enc.REX(true, false, false, false).Opcode(0x8B).ModRM(0b10, r, RBP).Disp32(pos).Flush()
	_, err := fg.emit(bytes)
	return err
}

func (fg *funcGen) emitMovRegReg(dst, src Reg) error { // mov dst, src
	if dst == src {
		return nil
	}
	bytes := fg.enc.REX(true, false, false, false).Opcode(0x89).ModRM(0b11, src, dst).Flush()
	_, err := fg.emit(bytes)
	return err
}

func (fg *funcGen) emitMovImm(r Reg, v int64) error { // mov r, imm64
	bytes := fg.enc.REX(true, false, false, false).OpcodePlusReg(0xB8, r).Imm64(v).Flush()
	_, err := fg.emit(bytes)
	return err
}

func (fg *funcGen) emitJmp(tab *JumpTable, label Label) error {
	off, err := fg.emit(fg.enc.Opcode(0xE9).Imm32(0).Flush())
	if err != nil {
		return err
	}
	tab.Insert(off, label, OpJmpRel32)
	return nil
}

func (fg *funcGen) emitJcc(tab *JumpTable, cc byte, label Label) error {
	off, err := fg.emit(fg.enc.Escape0F().Opcode(cc).Imm32(0).Flush())
	if err != nil {
		return err
	}
	tab.Insert(off, label, OpJccRel32)
	return nil
}

func cmpOpToJcc(op CmpOp) byte {
	switch op {
	case CmpEq:
		return 0x84 // JE
	case CmpNeq:
		return 0x85 // JNE
	case CmpLt:
		return 0x8C // JL
	case CmpGte:
		return 0x8D // JGE
	case CmpGt:
		return 0x8F // JG
	case CmpLte:
		return 0x8E // JLE
	default:
		return 0x85
	}
}

// lowerBlock lowers each statement in block in order, routing
// Break/Continue fixups into tab, then drops any names the block
// itself declared from scope's lookup map (their frame slots stay
// reserved — see Scope.Remove).
func (fg *funcGen) lowerBlock(block Block, tab *JumpTable) error {
	var declared []string
	for _, stmt := range block {
		name, err := fg.lowerStatement(stmt, tab)
		if err != nil {
			return err
		}
		if name != "" {
			declared = append(declared, name)
		}
	}
	for _, name := range declared {
		fg.scope.Remove(name)
	}
	return nil
}

// lowerStatement lowers one statement, resetting the register
// allocator both before and after (spec §4.6: "A full reset between
// statements restores the reserved set"). It returns the declared
// variable's name for StmtDeclare so the caller can remove it from
// scope once its enclosing block ends, "" otherwise.
func (fg *funcGen) lowerStatement(stmt Statement, tab *JumpTable) (string, error) {
	fg.alloc.ResetForStatement()
	defer fg.alloc.ResetForStatement()

	switch s := stmt.(type) {
	case StmtDeclare:
		if _, exists := fg.scope.Get(s.Name); exists {
			return "", errNoPos(SemanticError, "%q already declared", s.Name)
		}
		entry, ok := fg.scope.Insert(s.Name, 8)
		if !ok {
			return "", errNoPos(SemanticError, "%q already declared", s.Name)
		}
		if err := fg.evalExprToReg(s.Expr, RAX); err != nil {
			return "", err
		}
		if err := fg.emitStoreReg(RAX, entry.Position); err != nil {
			return "", err
		}
		return s.Name, nil

	case StmtAssign:
		entry, ok := fg.scope.Get(s.Name)
		if !ok {
			return "", errNoPos(SemanticError, "assignment to unknown variable %q", s.Name)
		}
		if entry.Immutable {
			return "", errNoPos(SemanticError, "%q is immutable", s.Name)
		}
		if err := fg.evalExprToReg(s.Expr, RAX); err != nil {
			return "", err
		}
		return "", fg.emitStoreReg(RAX, entry.Position)

	case StmtRet:
		if err := fg.evalExprToReg(s.Expr, RAX); err != nil {
			return "", err
		}
		return "", fg.emitJmp(tab, SimpleLabel(LabelRet))

	case StmtIf:
		return "", fg.lowerIf(s, tab)

	case StmtWhile:
		return "", fg.lowerWhile(s, tab)

	case StmtContinue:
		return "", fg.emitJmp(tab, SimpleLabel(LabelLoopStart))

	case StmtBreak:
		return "", fg.emitJmp(tab, SimpleLabel(LabelBlockEnd))

	case StmtExpr:
		// REDESIGN (SPEC_FULL.md §1): the original silently discards
		// a non-arithmetic expression statement (it prints the type
		// tag and moves on); a statement with no observable effect is
		// treated here as a semantic error instead.
		if _, ok := s.Expr.(ExprArith); !ok {
			return "", errNoPos(SemanticError, "expression statement must be arithmetic")
		}
		return "", fg.evalExprToReg(s.Expr, RAX)

	default:
		return "", errNoPos(CodegenError, "unknown statement type %T", stmt)
	}
}

func (fg *funcGen) lowerIf(s StmtIf, outer *JumpTable) error {
	tab := NewJumpTable(fg.patch)
	if err := fg.evalCond(s.Cond, SimpleLabel(LabelBlockStart), SimpleLabel(LabelBlockEnd), tab, 1); err != nil {
		return err
	}
	fg.alloc.ResetForStatement()
	if err := tab.Resolve(SimpleLabel(LabelBlockStart), fg.cg.text.Len()); err != nil {
		return err
	}
	// Break/Continue inside the if's body register directly on outer:
	// an `if` introduces no loop of its own, so its body's flow-control
	// keywords belong to whatever loop (if any) encloses the if.
	if err := fg.lowerBlock(s.Block, outer); err != nil {
		return err
	}
	return tab.Resolve(SimpleLabel(LabelBlockEnd), fg.cg.text.Len())
}

func (fg *funcGen) lowerWhile(s StmtWhile, outer *JumpTable) error {
	tab := NewJumpTable(fg.patch)
	top := fg.cg.text.Len()
	if err := fg.evalCond(s.Cond, SimpleLabel(LabelBlockStart), SimpleLabel(LabelBlockEnd), tab, 1); err != nil {
		return err
	}
	fg.alloc.ResetForStatement()
	blockPos := fg.cg.text.Len()
	if err := fg.lowerBlock(s.Block, tab); err != nil {
		return err
	}
	if err := fg.emitJmp(tab, SimpleLabel(LabelLoopStart)); err != nil {
		return err
	}
	if err := tab.Resolve(SimpleLabel(LabelLoopStart), top); err != nil {
		return err
	}
	if err := tab.Resolve(SimpleLabel(LabelBlockStart), blockPos); err != nil {
		return err
	}
	if err := tab.Resolve(SimpleLabel(LabelBlockEnd), fg.cg.text.Len()); err != nil {
		return err
	}
	Merge(outer, tab)
	return nil
}

// evalCond lowers a boolean/comparison/arithmetic expression used as a
// condition into control flow, per spec §4.6's truth table. level
// doubles per nesting so concurrent && / || sites never share a
// NextCond label.
func (fg *funcGen) evalCond(expr Expr, trueLabel, falseLabel Label, tab *JumpTable, level int) error {
	switch e := expr.(type) {
	case ExprParen:
		return fg.evalCond(e.Inner, trueLabel, falseLabel, tab, level)

	case ExprBool:
		switch e.Bool.Op {
		case BoolAnd:
			next := NextCondLabel(level)
			if err := fg.evalCond(e.Bool.LHS, next, falseLabel, tab, level*2); err != nil {
				return err
			}
			if err := tab.Resolve(next, fg.cg.text.Len()); err != nil {
				return err
			}
			return fg.evalCond(e.Bool.RHS, trueLabel, falseLabel, tab, level*2+1)
		case BoolOr:
			next := NextCondLabel(level)
			if err := fg.evalCond(e.Bool.LHS, trueLabel, next, tab, level*2); err != nil {
				return err
			}
			if err := tab.Resolve(next, fg.cg.text.Len()); err != nil {
				return err
			}
			return fg.evalCond(e.Bool.RHS, trueLabel, falseLabel, tab, level*2+1)
		case BoolNot:
			return fg.evalCond(e.Bool.LHS, falseLabel, trueLabel, tab, level)
		default:
			return errNoPos(CodegenError, "unknown boolean operator")
		}

	case ExprCmp:
		if err := fg.evalArithToReg(e.Cmp.LHS, RAX); err != nil {
			return err
		}
		if err := fg.evalArithToReg(e.Cmp.RHS, RBX); err != nil {
			return err
		}
		fg.alloc.ResetForStatement()
		if _, err := fg.emit(fg.enc.REX(true, false, false, false).Opcode(0x3B).ModRM(0b11, RAX, RBX).Flush()); err != nil { // cmp rax, rbx (CMP r64, r/m64: flags = RAX - RBX)
			return err
		}
		if err := fg.emitJcc(tab, cmpOpToJcc(e.Cmp.Op), trueLabel); err != nil {
			return err
		}
		return fg.emitJmp(tab, falseLabel)

	case ExprArith:
		if err := fg.evalArithToReg(e.Arith, RAX); err != nil {
			return err
		}
		fg.alloc.ResetForStatement()
		bytes := fg.enc.REX(true, false, false, false).Opcode(0x83).ModRMDigit(0b11, 7, RAX).Imm8(0).Flush() // cmp rax, 0
		if _, err := fg.emit(bytes); err != nil {
			return err
		}
		if err := fg.emitJcc(tab, 0x85, trueLabel); err != nil { // JNE: truthy = non-zero
			return err
		}
		return fg.emitJmp(tab, falseLabel)

	default:
		return errNoPos(CodegenError, "invalid condition expression type %T", expr)
	}
}

// evalExprToReg evaluates an Expr that must be arithmetic into target
// and resets the allocator, per spec §4.6's eval_expr_to_reg contract
// ("non-arith expressions are not valid as r-values here").
func (fg *funcGen) evalExprToReg(expr Expr, target Reg) error {
	switch e := expr.(type) {
	case ExprArith:
		if err := fg.evalArithToReg(e.Arith, target); err != nil {
			return err
		}
		fg.alloc.ResetForStatement()
		return nil
	case ExprParen:
		return fg.evalExprToReg(e.Inner, target)
	default:
		return errNoPos(SemanticError, "expected an arithmetic expression, found %T", expr)
	}
}

func (fg *funcGen) evalArithToReg(expr ArithExpr, target Reg) error {
	r, err := fg.evalArith(expr)
	if err != nil {
		return err
	}
	return fg.emitMovRegReg(target, r)
}

// evalArith is the recursive core of arithmetic lowering: it returns
// the register holding expr's value, claiming scratch registers
// lowest-index-first and freeing the right-hand operand of a binary op
// as soon as it's consumed so a long operand chain doesn't exhaust the
// allocator within one expression (original_source/src/codegen.c's
// _evaluate_arith_expression does the same `regtab[rhsr] = false`
// immediately after combining, rather than waiting for the next
// per-statement reset).
func (fg *funcGen) evalArith(expr ArithExpr) (Reg, error) {
	switch e := expr.(type) {
	case ArithNum:
		r, err := fg.alloc.AllocReg()
		if err != nil {
			return 0, err
		}
		return r, fg.emitMovImm(r, e.Value)

	case ArithIdent:
		entry, ok := fg.scope.Get(e.Name)
		if !ok {
			return 0, errNoPos(SemanticError, "%q not found in scope", e.Name)
		}
		r, err := fg.alloc.AllocReg()
		if err != nil {
			return 0, err
		}
		return r, fg.emitLoadReg(r, entry.Position)

	case ArithParen:
		r, err := fg.alloc.AllocReg()
		if err != nil {
			return 0, err
		}
		return r, fg.evalArithToReg(e.Inner, r)

	case ArithFuncCall:
		return fg.evalFuncCall(e)

	case ArithBinOp:
		lhsr, err := fg.evalArith(e.LHS)
		if err != nil {
			return 0, err
		}
		rhsr, err := fg.evalArith(e.RHS)
		if err != nil {
			return 0, err
		}
		fg.alloc.FreeReg(rhsr)
		switch e.Op {
		case ArithAdd:
			err = fg.emitRegOp(0x03, lhsr, rhsr) // ADD r64, r/m64
		case ArithSub:
			err = fg.emitRegOp(0x2B, lhsr, rhsr) // SUB r64, r/m64
		case ArithMul:
			err = fg.emitIMul(lhsr, rhsr)
		case ArithDiv:
			err = fg.emitDiv(lhsr, rhsr)
		default:
			err = errNoPos(CodegenError, "unknown arithmetic operator")
		}
		return lhsr, err

	default:
		return 0, errNoPos(CodegenError, "unknown arithmetic expression type %T", expr)
	}
}

func (fg *funcGen) emitRegOp(opcode byte, dst, src Reg) error {
	bytes := fg.enc.REX(true, false, false, false).Opcode(opcode).ModRM(0b11, dst, src).Flush()
	_, err := fg.emit(bytes)
	return err
}

func (fg *funcGen) emitIMul(dst, src Reg) error {
	bytes := fg.enc.REX(true, false, false, false).Escape0F().Opcode(0xAF).ModRM(0b11, dst, src).Flush()
	_, err := fg.emit(bytes)
	return err
}

// emitDiv lowers Div per spec §9: unsigned by default (`mov RDX, 0`
// ahead of `DIV`), or signed when Options.SignedDivision is set
// (`CQO` ahead of `IDIV`). Either way the quotient in RAX is moved back
// into lhsr, matching the original's `div_reg_to_reg` + final
// mov_reg_to_reg(lhsr, RAX).
func (fg *funcGen) emitDiv(lhsr, rhsr Reg) error {
	if fg.cg.opts.SignedDivision {
		if _, err := fg.emit(fg.enc.REX(true, false, false, false).Opcode(0x99).Flush()); err != nil { // cqo
			return err
		}
	} else if err := fg.emitMovImm(RDX, 0); err != nil {
		return err
	}
	if err := fg.emitMovRegReg(RAX, lhsr); err != nil {
		return err
	}
	digit := byte(6) // DIV
	if fg.cg.opts.SignedDivision {
		digit = 7 // IDIV
	}
	bytes := fg.enc.REX(true, false, false, false).Opcode(0xF7).ModRMDigit(0b11, digit, rhsr).Flush()
	if _, err := fg.emit(bytes); err != nil {
		return err
	}
	return fg.emitMovRegReg(lhsr, RAX)
}

// evalFuncCall evaluates each argument into its ABI register in order,
// looks the callee up in the symbol table built so far, and emits a
// direct rel32 call. See Codegen's doc comment for the single-pass
// symbol-visibility rule this depends on.
//
// Each argument's evalExprToReg call resets the allocator on return
// (including the ABI register the argument was just written to,
// marking it "free" again even though it still holds a live value)
// exactly as original_source/src/codegen.c's loop does; a later
// argument's own sub-expression evaluation could in principle reclaim
// an earlier argument's register before the call is emitted. Carried
// over unchanged rather than fixed, since expressions inside a single
// call's argument list run out of argument slots (MaxFuncArgs = 6)
// long before they run out of the ten non-reserved scratch registers.
func (fg *funcGen) evalFuncCall(e ArithFuncCall) (Reg, error) {
	if len(e.Args) > MaxFuncArgs {
		return 0, errNoPos(SemanticError, "call to %q passes %d arguments, limit is %d", e.Name, len(e.Args), MaxFuncArgs)
	}
	for i, arg := range e.Args {
		if err := fg.evalExprToReg(arg, paramRegs[i]); err != nil {
			return 0, err
		}
	}
	callee, ok := fg.cg.funcIndex[e.Name]
	if !ok {
		return 0, errNoPos(SemanticError, "no function named %q", e.Name)
	}
	site := fg.cg.text.Len()
	disp := int32(int64(callee.Value) - int64(site) - 5)
	if _, err := fg.emit(fg.enc.Opcode(0xE8).Imm32(disp).Flush()); err != nil { // call rel32
		return 0, err
	}
	return RAX, nil
}
