// Command dumc compiles a small procedural language into a relocatable
// x86-64 ELF object file.
//
// usage: dumc [flags] <source.dm>
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dc0d/onexit"
	units "github.com/docker/go-units"
	"golang.org/x/sync/errgroup"

	"github.com/dumc-project/dumc/buildid"
	"github.com/dumc-project/dumc/cache"
	"github.com/dumc-project/dumc/compiler"
	"github.com/dumc-project/dumc/daemon"
	"github.com/dumc-project/dumc/diag"
	"github.com/dumc-project/dumc/objdump"
	"github.com/dumc-project/dumc/objfile"
	"github.com/dumc-project/dumc/repl"
	"github.com/dumc-project/dumc/trace"
	"github.com/dumc-project/dumc/watch"
)

var (
	flagWatch     = flag.Bool("watch", false, "recompile the given source file on every save")
	flagRepl      = flag.Bool("repl", false, "start an interactive codegen REPL")
	flagServe     = flag.String("serve", "", "run a compile daemon listening on addr (e.g. :8080)")
	flagDump      = flag.String("dump", "", "list the functions in an existing object file and exit")
	flagCacheURL  = flag.String("cache", "", "remote build cache, e.g. s3://bucket/prefix")
	flagTraceOut  = flag.String("trace", "", "stream an lz4-compressed instruction trace to this file")
	flagJobs      = flag.Int("jobs", 1, "number of source files to compile concurrently")
	flagKeepGoing = flag.Bool("keep-going", false, "compile every input file even after an error; report all errors together")
	flagSignedDiv = flag.Bool("signed-division", false, "use IDIV/CQO instead of the documented unsigned DIV")
	flagTextCap   = flag.String("text-cap", "", "hard ceiling on the .text buffer, e.g. 4KiB (default unlimited)")
	flagSymtabCap = flag.Int("symtab-cap", 0, "hard ceiling on symbol table entries (default unlimited)")
	flagStrtabCap = flag.String("strtab-cap", "", "hard ceiling on the string table, e.g. 256B (default unlimited)")
	flagOut       = flag.String("o", "", "output path for a single input file (default: <source>.o)")
	flagHelpLong  = flag.Bool("help", false, "show usage")
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dumc [flags] <source.dm> [<source.dm> ...]")
	flag.PrintDefaults()
}

func main() {
	flag.BoolVar(flagHelpLong, "h", false, "show usage")
	flag.Usage = usage
	flag.Parse()
	if *flagHelpLong {
		usage()
		return
	}

	if *flagDump != "" {
		if err := runDump(*flagDump); err != nil {
			log.Fatal(err)
		}
		return
	}

	opts, err := codegenOptions()
	if err != nil {
		log.Fatal(err)
	}

	if *flagServe != "" {
		srv := daemon.New(opts)
		if err := srv.ListenAndServe(*flagServe); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *flagRepl {
		if err := repl.Run(repl.Options{Codegen: opts}); err != nil {
			log.Fatal(err)
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if *flagWatch {
		if len(args) != 1 {
			log.Fatal("dumc: -watch takes exactly one source file")
		}
		if err := watch.Run(args[0], func(path string) error {
			return compileFile(path, opts, nil)
		}); err != nil {
			log.Fatal(err)
		}
		return
	}

	var store *cache.Store
	if *flagCacheURL != "" {
		cfg, err := cache.ParseURL(*flagCacheURL)
		if err != nil {
			log.Fatal(err)
		}
		store = cache.New(cfg)
	}

	collector := diag.NewCollector()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*flagJobs)
	for _, path := range args {
		path := path
		g.Go(func() error {
			if err := compileFileCtx(ctx, path, opts, store); err != nil {
				if *flagKeepGoing {
					if cerr, ok := err.(*compiler.CompileError); ok {
						collector.Add(path, cerr)
						return nil
					}
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	if collector.Len() > 0 {
		collector.Report(os.Stderr)
		os.Exit(1)
	}
}

func codegenOptions() (compiler.Options, error) {
	opts := compiler.Options{SignedDivision: *flagSignedDiv, SymtabCap: *flagSymtabCap}
	if *flagTextCap != "" {
		n, err := units.RAMInBytes(*flagTextCap)
		if err != nil {
			return opts, fmt.Errorf("invalid -text-cap: %w", err)
		}
		opts.TextCap = int(n)
	}
	if *flagStrtabCap != "" {
		n, err := units.RAMInBytes(*flagStrtabCap)
		if err != nil {
			return opts, fmt.Errorf("invalid -strtab-cap: %w", err)
		}
		opts.StrtabCap = int(n)
	}
	return opts, nil
}

// compileFile is the entry point watch mode uses: no cache, no
// cancellation context, one file at a time.
func compileFile(path string, opts compiler.Options, store *cache.Store) error {
	return compileFileCtx(context.Background(), path, opts, store)
}

func compileFileCtx(ctx context.Context, path string, opts compiler.Options, store *cache.Store) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &compiler.CompileError{Kind: compiler.IoError, Msg: err.Error()}
	}

	key := cache.Key(src)
	if store != nil {
		if data, err := store.Get(ctx, key); err == nil {
			outPath := outputPath(path)
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return &compiler.CompileError{Kind: compiler.IoError, Msg: err.Error()}
			}
			log.Printf("dumc: %s (cache hit)", path)
			return nil
		}
	}

	cg := compiler.NewCodegen(opts)
	var traceSink *trace.Sink
	if *flagTraceOut != "" {
		f, err := os.Create(*flagTraceOut)
		if err != nil {
			return &compiler.CompileError{Kind: compiler.IoError, Msg: err.Error()}
		}
		defer f.Close()
		traceSink = trace.Attach(cg, f)
	}

	prog, err := compiler.ParseSource(src)
	if err != nil {
		return err
	}
	obj, err := cg.CompileProgram(prog)
	if err != nil {
		return err
	}
	if traceSink != nil {
		if err := traceSink.Close(); err != nil {
			log.Printf("dumc: trace flush: %v", err)
		}
	}

	id := buildid.New().String()
	var buf bytes.Buffer
	if err := objfile.Write(&buf, obj, objfile.WithBuildID(id)); err != nil {
		return &compiler.CompileError{Kind: compiler.IoError, Msg: err.Error()}
	}

	outPath := outputPath(path)
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return &compiler.CompileError{Kind: compiler.IoError, Msg: err.Error()}
	}
	log.Printf("dumc: %s -> %s (%d bytes, build %s)", path, outPath, buf.Len(), id)

	if store != nil {
		if err := store.Put(ctx, key, buf.Bytes()); err != nil {
			log.Printf("dumc: cache put failed: %v", err)
		}
	}
	return nil
}

func outputPath(srcPath string) string {
	if *flagOut != "" {
		return *flagOut
	}
	if strings.HasSuffix(srcPath, ".dm") {
		return strings.TrimSuffix(srcPath, ".dm") + ".o"
	}
	return srcPath + ".o"
}

func runDump(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	syms, err := objdump.List(f)
	if err != nil {
		return err
	}
	fmt.Print(objdump.Format(syms))
	return nil
}

func init() {
	onexit.Register(func() { log.SetFlags(log.LstdFlags) })
}
