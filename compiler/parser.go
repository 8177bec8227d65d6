package compiler

// Parser builds a Program from a token stream by recursive descent,
// using Pratt parsing for arithmetic and boolean expressions. Every
// try* method either returns a value with the lexer's cursor advanced
// past what it consumed, or restores the cursor to its pre-call
// position — the same contract the lexer itself follows (see
// lexer.go), which is what makes the speculative lookahead below safe.
type Parser struct {
	lex *Lexer
}

// NewParser wraps lex for parsing.
func NewParser(lex *Lexer) *Parser {
	return &Parser{lex: lex}
}

// ParseSource lexes and parses src in one step.
func ParseSource(src []byte) (*Program, error) {
	return NewParser(NewLexer(src)).ParseProgram()
}

// ParseProgram parses a sequence of functions terminated by EOF.
func (p *Parser) ParseProgram() (*Program, error) {
	var funcs []Function
	for !p.lex.AtEOF() {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, *fn)
	}
	if len(funcs) == 0 {
		return nil, p.unexpected("at least one function")
	}
	return &Program{Functions: funcs}, nil
}

func (p *Parser) parseFunction() (*Function, error) {
	if _, ok := p.lex.TryToken(KindAt); !ok {
		return nil, p.unexpected("'@' to start a function declaration")
	}
	nameTok, ok := p.lex.TryTokenValue(KindIdent)
	if !ok {
		return nil, p.unexpected("function name")
	}
	if _, ok := p.lex.TryToken(KindParenL); !ok {
		return nil, p.failAt(nameTok.Pos, "expected '(' after function name %q", nameTok.Name)
	}

	var args []VarType
	if _, ok := p.lex.TryToken(KindParenR); !ok {
		for {
			vt, err := p.parseVarType()
			if err != nil {
				return nil, err
			}
			args = append(args, *vt)
			if len(args) > MaxFuncArgs {
				return nil, p.failAt(nameTok.Pos, "function %q declares more than %d parameters", nameTok.Name, MaxFuncArgs)
			}
			if _, ok := p.lex.TryToken(KindComma); ok {
				continue
			}
			break
		}
		if _, ok := p.lex.TryToken(KindParenR); !ok {
			return nil, p.unexpected("')' to close parameter list")
		}
	}

	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Function{Name: nameTok.Name, Args: args, Body: *block}, nil
}

func (p *Parser) parseVarType() (*VarType, error) {
	nameTok, ok := p.lex.TryTokenValue(KindIdent)
	if !ok {
		return nil, p.unexpected("parameter name")
	}
	if _, ok := p.lex.TryToken(KindColon); !ok {
		return nil, p.failAt(nameTok.Pos, "expected ':' after parameter name %q", nameTok.Name)
	}
	if _, ok := p.lex.TryToken(KindTypeInt); !ok {
		return nil, p.unexpected("a type")
	}
	return &VarType{Name: nameTok.Name, Type: TypeInt64}, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	if _, ok := p.lex.TryToken(KindBraceL); !ok {
		return nil, p.unexpected("'{' to start a block")
	}
	var stmts Block
	for {
		if _, ok := p.lex.TryToken(KindBraceR); ok {
			return &stmts, nil
		}
		if p.lex.AtEOF() {
			return nil, p.unexpected("'}' to close block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// parseStatement tries each statement form in the order spec §4.3
// names. Declare/Ret/If/While/Continue/Break each begin with a unique
// keyword, so once that keyword is consumed a further parse failure is
// a committed (non-backtracking) error; Assign is ambiguous with a
// bare expression statement until the '=' is seen, so it rewinds fully
// on mismatch and falls through.
func (p *Parser) parseStatement() (Statement, error) {
	if s, matched, err := p.tryDeclare(); matched {
		return s, err
	}
	if s, matched, err := p.tryRet(); matched {
		return s, err
	}
	if s, matched, err := p.tryAssign(); matched {
		return s, err
	}
	if s, matched, err := p.tryIf(); matched {
		return s, err
	}
	if s, matched, err := p.tryWhile(); matched {
		return s, err
	}
	if _, ok := p.lex.TryToken(KindKwCont); ok {
		return StmtContinue{}, nil
	}
	if _, ok := p.lex.TryToken(KindKwBreak); ok {
		return StmtBreak{}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, p.unexpected("a statement")
	}
	return StmtExpr{Expr: expr}, nil
}

func (p *Parser) tryDeclare() (Statement, bool, error) {
	if _, ok := p.lex.TryToken(KindKwDec); !ok {
		return nil, false, nil
	}
	nameTok, ok := p.lex.TryTokenValue(KindIdent)
	if !ok {
		return nil, true, p.unexpected("variable name after 'dec'")
	}
	if _, ok := p.lex.TryToken(KindColon); !ok {
		return nil, true, p.failAt(nameTok.Pos, "expected ':' after 'dec %s'", nameTok.Name)
	}
	if _, ok := p.lex.TryToken(KindTypeInt); !ok {
		return nil, true, p.unexpected("a type after ':'")
	}
	if _, ok := p.lex.TryToken(KindOpEq); !ok {
		return nil, true, p.unexpected("'=' in declaration")
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, true, err
	}
	return StmtDeclare{Name: nameTok.Name, Type: TypeInt64, Expr: expr}, true, nil
}

func (p *Parser) tryRet() (Statement, bool, error) {
	if _, ok := p.lex.TryToken(KindKwRet); !ok {
		return nil, false, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, true, err
	}
	return StmtRet{Expr: expr}, true, nil
}

func (p *Parser) tryAssign() (Statement, bool, error) {
	save := p.lex.save()
	nameTok, ok := p.lex.TryTokenValue(KindIdent)
	if !ok {
		return nil, false, nil
	}
	if _, ok := p.lex.TryToken(KindOpEq); !ok {
		p.lex.Seek(save)
		return nil, false, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, true, err
	}
	return StmtAssign{Name: nameTok.Name, Expr: expr}, true, nil
}

func (p *Parser) tryIf() (Statement, bool, error) {
	if _, ok := p.lex.TryToken(KindKwIf); !ok {
		return nil, false, nil
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, true, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, true, err
	}
	return StmtIf{Cond: cond, Block: *block}, true, nil
}

func (p *Parser) tryWhile() (Statement, bool, error) {
	if _, ok := p.lex.TryToken(KindKwWhile); !ok {
		return nil, false, nil
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, true, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, true, err
	}
	return StmtWhile{Cond: cond, Block: *block}, true, nil
}

// parseExpr is the entry point into the expression grammar: boolean
// connectives (lowest precedence) over comparisons over arithmetic.
func (p *Parser) parseExpr() (Expr, error) {
	return p.parseBoolBp(0)
}

// parseBoolBp is the Pratt loop over And/Or, whose binding powers come
// from tryBoolOp; Not is handled as
// a prefix operator in parseBoolAtom instead of an infix one, which is
// what gives it tighter-than-And/Or binding without needing its own
// level in this loop.
func (p *Parser) parseBoolBp(minPrec int) (Expr, error) {
	lhs, err := p.parseBoolAtom()
	if err != nil {
		return nil, err
	}
	for {
		save := p.lex.save()
		op, prec, ok := p.tryBoolOp()
		if !ok || prec <= minPrec {
			p.lex.Seek(save)
			return lhs, nil
		}
		rhs, err := p.parseBoolBp(prec)
		if err != nil {
			return nil, err
		}
		lhs = ExprBool{Bool: BoolOperation{Op: op, LHS: lhs, RHS: rhs}}
	}
}

func (p *Parser) tryBoolOp() (BoolOp, int, bool) {
	if _, ok := p.lex.TryToken(KindLogAnd); ok {
		return BoolAnd, 2, true
	}
	if _, ok := p.lex.TryToken(KindLogOr); ok {
		return BoolOr, 1, true
	}
	return 0, 0, false
}

func (p *Parser) parseBoolAtom() (Expr, error) {
	if _, ok := p.lex.TryToken(KindParenL); ok {
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.lex.TryToken(KindParenR); !ok {
			return nil, p.unexpected("')' to close parenthesized expression")
		}
		return ExprParen{Inner: inner}, nil
	}
	if _, ok := p.lex.TryToken(KindLogNot); ok {
		inner, err := p.parseBoolAtom()
		if err != nil {
			return nil, err
		}
		return ExprBool{Bool: BoolOperation{Op: BoolNot, LHS: inner}}, nil
	}
	return p.parseCmpOrArith()
}

// parseCmpOrArith parses a single arith operand, then looks for a
// trailing comparison operator. Comparisons don't chain: a second
// comparison operator after the first is left for an enclosing bool
// connective (or a syntax error) to deal with.
func (p *Parser) parseCmpOrArith() (Expr, error) {
	lhs, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if op, ok := p.tryCmpOp(); ok {
		rhs, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		return ExprCmp{Cmp: CmpOperation{Op: op, LHS: lhs, RHS: rhs}}, nil
	}
	return ExprArith{Arith: lhs}, nil
}

// tryCmpOp attempts the two-character comparisons before their
// single-character prefixes (<=/>= before </>), per spec §4.2.
func (p *Parser) tryCmpOp() (CmpOp, bool) {
	if _, ok := p.lex.TryToken(KindCmpEq); ok {
		return CmpEq, true
	}
	if _, ok := p.lex.TryToken(KindCmpNeq); ok {
		return CmpNeq, true
	}
	if _, ok := p.lex.TryToken(KindCmpLte); ok {
		return CmpLte, true
	}
	if _, ok := p.lex.TryToken(KindCmpGte); ok {
		return CmpGte, true
	}
	if _, ok := p.lex.TryToken(KindCmpLt); ok {
		return CmpLt, true
	}
	if _, ok := p.lex.TryToken(KindCmpGt); ok {
		return CmpGt, true
	}
	return 0, false
}

func (p *Parser) parseArith() (ArithExpr, error) {
	return p.parseArithBp(0)
}

func (p *Parser) parseArithBp(minPrec int) (ArithExpr, error) {
	lhs, err := p.parseArithAtom()
	if err != nil {
		return nil, err
	}
	for {
		save := p.lex.save()
		op, prec, ok := p.tryArithOp()
		if !ok || prec <= minPrec {
			p.lex.Seek(save)
			return lhs, nil
		}
		rhs, err := p.parseArithBp(prec)
		if err != nil {
			return nil, err
		}
		lhs = ArithBinOp{Op: op, LHS: lhs, RHS: rhs}
	}
}

func (p *Parser) tryArithOp() (ArithOp, int, bool) {
	if _, ok := p.lex.TryToken(KindOpMul); ok {
		return ArithMul, 2, true
	}
	if _, ok := p.lex.TryToken(KindOpDiv); ok {
		return ArithDiv, 2, true
	}
	if _, ok := p.lex.TryToken(KindOpAdd); ok {
		return ArithAdd, 1, true
	}
	if _, ok := p.lex.TryToken(KindOpSub); ok {
		return ArithSub, 1, true
	}
	return 0, 0, false
}

func (p *Parser) parseArithAtom() (ArithExpr, error) {
	if tok, ok := p.lex.TryTokenValue(KindInt); ok {
		return ArithNum{Value: tok.IntVal}, nil
	}
	if _, ok := p.lex.TryToken(KindParenL); ok {
		inner, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		if _, ok := p.lex.TryToken(KindParenR); !ok {
			return nil, p.unexpected("')' to close parenthesized expression")
		}
		return ArithParen{Inner: inner}, nil
	}
	if fc, matched, err := p.tryFuncCall(); matched {
		return fc, err
	}
	if tok, ok := p.lex.TryTokenValue(KindIdent); ok {
		return ArithIdent{Name: tok.Name}, nil
	}
	return nil, p.unexpected("a number, identifier, function call, or '('")
}

// tryFuncCall speculates on `ident '('`; with no '(' following the
// identifier it is not a call (could be a bare Ident atom instead), so
// it rewinds fully rather than committing.
func (p *Parser) tryFuncCall() (ArithExpr, bool, error) {
	save := p.lex.save()
	nameTok, ok := p.lex.TryTokenValue(KindIdent)
	if !ok {
		return nil, false, nil
	}
	if _, ok := p.lex.TryToken(KindParenL); !ok {
		p.lex.Seek(save)
		return nil, false, nil
	}

	var args []Expr
	if _, ok := p.lex.TryToken(KindParenR); !ok {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, true, err
			}
			args = append(args, arg)
			if len(args) > MaxFuncArgs {
				return nil, true, p.failAt(nameTok.Pos, "call to %q passes more than %d arguments", nameTok.Name, MaxFuncArgs)
			}
			if _, ok := p.lex.TryToken(KindComma); ok {
				continue
			}
			break
		}
		if _, ok := p.lex.TryToken(KindParenR); !ok {
			return nil, true, p.unexpected("')' to close call arguments")
		}
	}
	return ArithFuncCall{Name: nameTok.Name, Args: args}, true, nil
}

func (p *Parser) unexpected(expected string) error {
	return errAt(ParseError, p.lex.curPosition(), "expected %s, found %s", expected, p.lex.PeekKind())
}

func (p *Parser) failAt(pos Position, format string, args ...interface{}) error {
	return errAt(ParseError, pos, format, args...)
}
