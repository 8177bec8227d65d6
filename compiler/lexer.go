package compiler

import "strconv"

// Lexer is a stateful cursor over source bytes. Every Try* method either
// consumes a token and advances past it, or leaves the cursor exactly
// where it found it — the rewind discipline spec §4.2 describes, and the
// mechanism the parser's speculative productions rely on (see parser.go).
//
// This is hand-written rather than built on a combinator library: the
// try/rewind contract here is narrower and cheaper than a general packrat
// scanner (github.com/launix-de/go-packrat/v2, used elsewhere in the
// teacher's own parser for exactly this kind of position save/restore)
// needs, and the grammar has no memoization requirements that would
// justify pulling in packing/backtracking machinery for this small token set.
type Lexer struct {
	src  []byte
	pos  int
	line int
	col  int
}

// NewLexer wraps src for lexing. Line/column numbers start at 1.
func NewLexer(src []byte) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1}
}

// Position returns the current byte offset of the cursor.
func (l *Lexer) Position() int {
	return l.pos
}

// cursor snapshots line/col alongside the byte offset so Seek can restore
// diagnostics position too.
type cursor struct {
	pos, line, col int
}

func (l *Lexer) save() cursor {
	return cursor{l.pos, l.line, l.col}
}

// Seek restores a previously observed cursor state.
func (l *Lexer) Seek(c cursor) {
	l.pos, l.line, l.col = c.pos, c.line, c.col
}

func (l *Lexer) curPosition() Position {
	return Position{Offset: l.pos, Line: l.line, Col: l.col}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentChar(b byte) bool {
	return isIdentStart(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.advance()
	}
}

func (l *Lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

// TryToken attempts to match a single fixed-spelling token kind (anything
// other than Ident/Int, which carry a payload and go through
// TryTokenValue). Returns the matched Token and true on success; on
// failure the cursor is restored to its pre-call position.
func (l *Lexer) TryToken(kind Kind) (Token, bool) {
	start := l.save()
	l.skipWhitespace()
	startPos := l.curPosition()

	ok := l.tryMatch(kind)
	if !ok {
		l.Seek(start)
		return Token{}, false
	}
	return Token{Kind: kind, Pos: startPos}, true
}

// single-character and multi-character operator spellings. tryMatch
// matches only the one spelling asked for, so a single-char kind also
// matches the first byte of a longer operator; ordering is left to the
// caller (parser.go's tryCmpOp tries <= and >= before < and >).
var punctSpellings = map[Kind]string{
	KindAt:        "@",
	KindComma:     ",",
	KindColon:     ":",
	KindSemicolon: ";",
	KindParenL:    "(",
	KindParenR:    ")",
	KindBraceL:    "{",
	KindBraceR:    "}",
	KindOpAdd:     "+",
	KindOpSub:     "-",
	KindOpMul:     "*",
	KindOpDiv:     "/",
	KindCmpEq:     "==",
	KindCmpNeq:    "!=",
	KindCmpLt:     "<",
	KindCmpLte:    "<=",
	KindCmpGt:     ">",
	KindCmpGte:    ">=",
	KindLogAnd:    "&&",
	KindLogOr:     "||",
	KindLogNot:    "!",
	KindOpEq:      "=",
}

func (l *Lexer) tryMatch(kind Kind) bool {
	switch kind {
	case KindEOF:
		return l.pos >= len(l.src)
	case KindKwRet, KindKwDec, KindKwIf, KindKwWhile, KindKwCont, KindKwBreak, KindTypeInt:
		return l.tryKeyword(kindNames[kind])
	default:
		spelling, ok := punctSpellings[kind]
		if !ok {
			return false
		}
		return l.tryLiteral(spelling)
	}
}

func (l *Lexer) tryLiteral(lit string) bool {
	if l.pos+len(lit) > len(l.src) {
		return false
	}
	if string(l.src[l.pos:l.pos+len(lit)]) != lit {
		return false
	}
	for i := 0; i < len(lit); i++ {
		l.advance()
	}
	return true
}

// tryKeyword matches lit followed by a non-identifier character (or EOF);
// this is what stops "int" from swallowing the first three letters of
// "intrinsic".
func (l *Lexer) tryKeyword(lit string) bool {
	if l.pos+len(lit) > len(l.src) {
		return false
	}
	if string(l.src[l.pos:l.pos+len(lit)]) != lit {
		return false
	}
	next := l.pos + len(lit)
	if next < len(l.src) && isIdentChar(l.src[next]) {
		return false
	}
	for i := 0; i < len(lit); i++ {
		l.advance()
	}
	return true
}

// TryTokenValue attempts to match Ident or Int, the two token kinds that
// carry a payload. Returns the decoded Token on success; the cursor is
// restored on failure.
func (l *Lexer) TryTokenValue(kind Kind) (Token, bool) {
	start := l.save()
	l.skipWhitespace()
	startPos := l.curPosition()

	switch kind {
	case KindIdent:
		if b, ok := l.peekByte(); !ok || !isIdentStart(b) {
			l.Seek(start)
			return Token{}, false
		}
		from := l.pos
		for {
			b, ok := l.peekByte()
			if !ok || !isIdentChar(b) {
				break
			}
			l.advance()
		}
		name := string(l.src[from:l.pos])
		if _, isKeyword := keywords[name]; isKeyword {
			l.Seek(start)
			return Token{}, false
		}
		return Token{Kind: KindIdent, Name: name, Pos: startPos}, true

	case KindInt:
		if b, ok := l.peekByte(); !ok || !isDigit(b) {
			l.Seek(start)
			return Token{}, false
		}
		from := l.pos
		for {
			b, ok := l.peekByte()
			if !ok || !isDigit(b) {
				break
			}
			l.advance()
		}
		text := string(l.src[from:l.pos])
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			l.Seek(start)
			return Token{}, false
		}
		return Token{Kind: KindInt, IntVal: v, Pos: startPos}, true

	default:
		l.Seek(start)
		return Token{}, false
	}
}

// AtEOF reports whether, ignoring leading whitespace, the cursor sits at
// end of input. Does not consume anything.
func (l *Lexer) AtEOF() bool {
	start := l.save()
	l.skipWhitespace()
	eof := l.pos >= len(l.src)
	l.Seek(start)
	return eof
}

// PeekKind is a diagnostic aid: best-effort classification of what's at
// the cursor, used only to build "expected X, got Y" error messages. It
// never advances the cursor.
func (l *Lexer) PeekKind() string {
	start := l.save()
	l.skipWhitespace()
	defer l.Seek(start)
	if l.pos >= len(l.src) {
		return "EOF"
	}
	b := l.src[l.pos]
	if isDigit(b) {
		return "integer"
	}
	if isIdentStart(b) {
		from := l.pos
		for from < len(l.src) && isIdentChar(l.src[from]) {
			from++
		}
		word := string(l.src[l.pos:from])
		if _, ok := keywords[word]; ok {
			return word
		}
		return "identifier"
	}
	return string(b)
}
