// =============================================================================
// StructGenie CLI
// =============================================================================
// Runs schema-driven structured generation from the command line.
//
// Usage:
//
//	structgenie run --template t.txt --inputs in.yaml        # print the YAML result
//	structgenie run --template t.txt --inputs in.yaml --votes 5
//	structgenie run --template chain.txt --chain              # templates split by %%%
//	structgenie compile --template t.txt [--inputs in.yaml]   # print the response schema
//	structgenie validate --template t.txt --output out.yaml   # print validation errors
//	structgenie history [--engine name] [--limit 20]          # list recorded runs
//	structgenie version
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// =============================================================================
// Version information (set at build time)
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute dispatches a command and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "run":
		err = runRun(ctx, args[1:], stdout)
	case "compile":
		err = runCompile(args[1:], stdout)
	case "validate":
		var ok bool
		ok, err = runValidate(args[1:], stdout)
		if err == nil && !ok {
			return 2
		}
	case "history":
		err = runHistory(ctx, args[1:], stdout)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// =============================================================================
// Version and help
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "StructGenie %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `StructGenie - schema-driven structured output from language models

Usage:
  structgenie <command> [options]

Commands:
  run        Run a template against inputs and print the YAML result
  compile    Print the compiled response schema of a template
  validate   Validate an output document against a template
  history    List recorded runs (requires history.enabled)
  version    Show version information
  help       Show this help message

Options:
  run:
    --config   Path to configuration file
    --template Path to the template document
    --inputs   YAML mapping, or a list of mappings for a batch run
    --votes    Run a majority vote over N generations
    --chain    Treat the template as a chain of templates split by %%%

  compile:
    --template Path to the template document
    --inputs   Optional YAML inputs for loop and placeholder expansion

  validate:
    --template Path to the template document
    --output   YAML output document to check
    --inputs   Optional YAML inputs

  history:
    --config   Path to configuration file
    --engine   Only runs of this engine
    --limit    Maximum number of runs (default 20)

Environment:
  Every setting can be overridden as STRUCTGENIE_<SECTION>_<KEY>,
  e.g. STRUCTGENIE_LLM_API_KEY. A .env file in the working directory
  is loaded first.

Examples:
  structgenie run --template summary.txt --inputs text.yaml
  structgenie compile --template family.txt
  structgenie version`)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
