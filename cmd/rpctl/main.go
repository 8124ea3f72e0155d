// rpctl is a Go-native driver for pkg/rasterpool, exercising the Dispatch
// Engine end to end against codec.Fake; building with the rasterpool_real
// tag does not change the provider it uses. It plays the role the teacher's cmd/sloty plays for
// pkg/slotcache: not the foreign binding itself, just a consumer that drives
// every public operation through a CLI.
//
// Usage:
//
//	rpctl info <uri> [-o option]...     Print geometry/metadata for a dataset
//	rpctl repl                          Interactive debug REPL
//	rpctl batch <job-file.hujson>       Run a batch of jobs, report results
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/relief-labs/rasterpool/pkg/codec"
	"github.com/relief-labs/rasterpool/pkg/rasterpool"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 1
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "info":
		return cmdInfo(rest)
	case "repl":
		return cmdRepl(rest)
	case "batch":
		return cmdBatch(rest)
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "rpctl: unknown command %q\n", cmd)
		printUsage(os.Stderr)

		return 1
	}
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, `rpctl - driver for pkg/rasterpool

Usage:
  rpctl info <uri> [-o option]...     Print geometry/metadata for a dataset
  rpctl repl                          Interactive debug REPL
  rpctl batch <job-file.hujson>       Run a batch of jobs, report results

Run 'rpctl <command> -h' for command-specific flags.`)
}

// newEngine wires a fresh Engine against the fixture-backed fake codec. It
// always uses codec.NewFake(), whatever build tags are set.
func newEngine() (*rasterpool.Engine, error) {
	return rasterpool.Init(rasterpool.ConfigFromEnv(), codec.NewFake())
}

func cmdInfo(args []string) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)

	var options []string

	fs.StringArrayVarP(&options, "option", "o", nil, "warp option, repeatable (e.g. -o -dstnodata -o 107)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rpctl info <uri> [-o option]...")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	uri := fs.Arg(0)

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer engine.Deinit()

	token := engine.GetToken(uri, options)

	printDatasetInfo(os.Stdout, engine, token)

	return 0
}

func printDatasetInfo(w *os.File, engine *rasterpool.Engine, token rasterpool.Token) {
	req := engine.DefaultRequest()

	for _, sel := range []rasterpool.Dataset{rasterpool.Source, rasterpool.Warped} {
		fmt.Fprintf(w, "[%s]\n", sel)

		width, height, n := engine.GetWidthHeight(token, req, sel)
		if n < 0 {
			fmt.Fprintf(w, "  error: %v\n", rasterpool.ResultError(n))
			continue
		}

		fmt.Fprintf(w, "  size: %dx%d\n", width, height)

		count, n := engine.GetBandCount(token, req, sel)
		if n < 0 {
			fmt.Fprintf(w, "  error: %v\n", rasterpool.ResultError(n))
			continue
		}

		fmt.Fprintf(w, "  bands: %d\n", count)

		proj4, n := engine.GetCRSProj4(token, req, sel)
		if n > 0 {
			fmt.Fprintf(w, "  proj4: %s\n", proj4)
		}

		for band := 1; band <= count; band++ {
			value, ok, n := engine.GetBandNodata(token, req, sel, band)
			if n > 0 && ok {
				fmt.Fprintf(w, "  band %d nodata: %v\n", band, value)
			}
		}
	}
}
