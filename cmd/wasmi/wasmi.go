package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	wasmi "github.com/wasmi-labs/wasmi-sub007"
	"github.com/wasmi-labs/wasmi-sub007/internal/version"
	"github.com/wasmi-labs/wasmi-sub007/wasm/translator"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "compile":
		doCompile(flag.Args()[1:], stdOut, stdErr, exit)
	case "disasm":
		doDisasm(flag.Args()[1:], stdOut, stdErr, exit)
	case "version":
		fmt.Fprintln(stdOut, version.GetVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

// compileFlags are the options shared by the commands which translate a module.
type compileFlags struct {
	help      bool
	config    string
	cacheDir  string
	fuel      bool
	workers   int
	verbosity int
}

func newCompileFlags(name string, stdErr io.Writer) (*flag.FlagSet, *compileFlags) {
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	flags.SetOutput(stdErr)

	f := &compileFlags{}
	flags.BoolVar(&f.help, "h", false, "print usage")
	flags.StringVar(&f.config, "config", "", "TOML file with the runtime configuration.")
	flags.StringVar(&f.cacheDir, "cachedir", "", "Writeable directory for functions translated from wasm. "+
		"Contents are re-used for the same version of wasmi.")
	flags.BoolVar(&f.fuel, "fuel", false, "Enable fuel metering, overriding the configuration file.")
	flags.IntVar(&f.workers, "workers", 0, "Number of functions translated concurrently. Zero uses the configuration file or GOMAXPROCS.")
	flags.IntVar(&f.verbosity, "v", 0, "Log verbosity on stderr. 2 logs the cache activity and every translated function.")
	return flags, f
}

// compile parses the args of a command and translates the module they name.
func compile(name string, args []string, stdErr io.Writer, exit func(code int),
	printCmdUsage func(io.Writer, *flag.FlagSet),
) []*translator.CompiledFunc {
	flags, f := newCompileFlags(name, stdErr)
	_ = flags.Parse(args)

	if f.help {
		printCmdUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to wasm file")
		printCmdUsage(stdErr, flags)
		exit(1)
	}
	wasmPath := flags.Arg(0)

	// Zero keeps warnings, such as unreadable cache entries.
	commonlog.Configure(f.verbosity, nil)

	source, err := os.ReadFile(wasmPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading wasm binary: %v\n", err)
		exit(1)
	}

	cfg := wasmi.NewRuntimeConfig()
	if f.config != "" {
		if cfg, err = wasmi.LoadRuntimeConfigFile(f.config); err != nil {
			fmt.Fprintf(stdErr, "invalid config: %v\n", err)
			exit(1)
		}
	}
	if f.fuel {
		cfg = cfg.WithFuelMetering(true)
	}
	if f.workers > 0 {
		cfg = cfg.WithCompilationWorkers(f.workers)
	}
	if cache := maybeUseCacheDir(f.cacheDir, stdErr, exit); cache != nil {
		cfg = cfg.WithCache(cache)
	}

	funcs, err := wasmi.CompileBinary(context.Background(), cfg, source)
	if err != nil {
		fmt.Fprintf(stdErr, "error compiling wasm binary: %v\n", err)
		exit(1)
	}
	return funcs
}

func doCompile(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	funcs := compile("compile", args, stdErr, exit, printCompileUsage)

	var codeSize, cells int
	for _, f := range funcs {
		codeSize += len(f.Code)
		cells += int(f.MaxSlot)
	}
	fmt.Fprintf(stdOut, "%d functions, %d bytes of code, %d cells\n", len(funcs), codeSize, cells)
	exit(0)
}

func doDisasm(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	funcs := compile("disasm", args, stdErr, exit, printDisasmUsage)

	for i, f := range funcs {
		text, err := f.Disassemble()
		if err != nil {
			fmt.Fprintf(stdErr, "error disassembling function %d: %v\n", i, err)
			exit(1)
		}
		fmt.Fprintf(stdOut, "func %d: cells=%d locals=%d metered=%t\n", i, f.MaxSlot, f.LocalCells, f.Metered)
		fmt.Fprint(stdOut, text)
	}
	exit(0)
}

func maybeUseCacheDir(dir string, stdErr io.Writer, exit func(code int)) (cache wasmi.Cache) {
	if dir != "" {
		var err error
		cache, err = wasmi.NewCache(dir)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid cachedir: %v\n", err)
			exit(1)
		}
	}
	return
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "wasmi CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasmi <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  compile\tTranslates a WebAssembly binary and prints a summary")
	fmt.Fprintln(stdErr, "  disasm\tPrints the translated code of a WebAssembly binary")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of wasmi CLI")
}

func printCompileUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "wasmi CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasmi compile <options> <path to wasm file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printDisasmUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "wasmi CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  wasmi disasm <options> <path to wasm file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
