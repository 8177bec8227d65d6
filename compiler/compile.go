package compiler

// Compile runs the full pipeline — lex, parse, codegen — over src and
// returns the resulting object. This is the single entry point callers
// outside this package (main, repl, daemon, cache) should use rather
// than wiring Lexer/Parser/Codegen together themselves.
func Compile(src []byte, opts Options) (*Object, error) {
	prog, err := ParseSource(src)
	if err != nil {
		return nil, err
	}
	return NewCodegen(opts).CompileProgram(prog)
}
