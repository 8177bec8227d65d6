// Package repl implements `dumc -repl`: a line-oriented read-eval-print
// loop over the codegen pipeline. Each accepted input is a complete
// function definition; it is compiled in isolation (as a throwaway
// one-function Object, never written to disk) and the REPL reports its
// encoded size.
//
// Grounded on scm/prompt.go's Repl: the same chzyer/readline
// configuration (colored prompts, a throwaway history file, Ctrl-C
// handling), and the same continuation scheme — an unterminated input
// is held and re-prompted with a "..." continuation prompt rather than
// reported as an error. scm's parser signals "incomplete" by panicking
// with a specific string; this grammar has no such signal, so
// completeness is judged by brace balance before compiling at all.
package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dumc-project/dumc/compiler"
)

const (
	newPrompt  = "\033[32mdumc>\033[0m "
	contPrompt = "\033[32m  ...\033[0m "
	resultMark = "\033[31m=\033[0m "
)

// Options configures the REPL's codegen.
type Options struct {
	Codegen compiler.Options
}

// Run drives the loop until EOF or a Ctrl-C with no input pending (a
// Ctrl-C during a multi-line input discards that input). It never returns an
// error for a bad program — compile errors are printed and the loop
// continues; it returns an error only for a readline setup failure.
func Run(opts Options) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newPrompt,
		HistoryFile:       ".dumc-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	var pending string
	for {
		line, err := l.Readline()
		full := pending + line
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if full == "" {
				return nil
			}
			pending = ""
			l.SetPrompt(newPrompt)
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("repl: %w", err)
		}

		if strings.TrimSpace(full) == "" {
			pending = ""
			continue
		}
		if !balanced(full) {
			pending = full + "\n"
			l.SetPrompt(contPrompt)
			continue
		}

		obj, err := compiler.Compile([]byte(full), opts.Codegen)
		if err != nil {
			fmt.Println(resultMark + err.Error())
		} else {
			fmt.Printf("%s%d bytes of .text, %d symbol(s)\n", resultMark, len(obj.Text), len(obj.Symbols))
		}
		pending = ""
		l.SetPrompt(newPrompt)
	}
}

// balanced reports whether every brace and paren opened in s is closed,
// a cheap stand-in for the parser telling us an input is incomplete.
func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		}
	}
	return depth <= 0
}
