package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/relief-labs/rasterpool/pkg/codec"
	"github.com/relief-labs/rasterpool/pkg/rasterpool"
)

// replCommands lists the REPL's verbs, used for both dispatch and tab
// completion.
var replCommands = []string{
	"open", "nodata", "size", "bands", "proj4", "wkt", "pixel",
	"attempts", "copies", "help", "exit", "quit", "q",
}

// repl is the interactive debug loop: one open dataset at a time, driven
// entirely through the Dispatch Engine, mirroring the teacher's cmd/sloty
// REPL structure (one open cache, line-oriented verbs, liner history).
type repl struct {
	engine *rasterpool.Engine
	liner  *liner.State

	token   rasterpool.Token
	hasOpen bool

	req rasterpool.Request
}

func cmdRepl(args []string) int {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: rpctl repl")
		return 0
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer engine.Deinit()

	r := &repl{engine: engine, req: engine.DefaultRequest()}

	if err := r.run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	return 0
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".rpctl_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFilePath()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("rpctl - rasterpool debug REPL. Type 'help' for commands.")

	for {
		line, err := r.liner.Prompt("rpctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			fmt.Println("Bye!")
			break
		}

		r.dispatch(cmd, args)
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	path := historyFilePath()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *repl) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)

	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *repl) dispatch(cmd string, args []string) {
	switch cmd {
	case "help", "?":
		r.printHelp()
	case "open":
		r.cmdOpen(args)
	case "size":
		r.cmdSize(args)
	case "bands":
		r.cmdBands(args)
	case "nodata":
		r.cmdNodata(args)
	case "proj4":
		r.cmdProj4(args)
	case "wkt":
		r.cmdWKT(args)
	case "pixel":
		r.cmdPixel(args)
	case "attempts":
		r.cmdAttempts(args)
	case "copies":
		r.cmdCopies(args)
	default:
		fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  open <uri> [opt...]            Open a dataset, interning it for this session
  size [source|warped]           Print width/height (default: warped)
  bands [source|warped]          Print band count
  nodata <band> [source|warped]  Print band nodata value
  proj4 [source|warped]          Print the PROJ.4 string
  wkt [source|warped]            Print the CRS as WKT
  pixel <band> <xoff> <yoff> <xsize> <ysize> <dstw> <dsth>
                                  Read a pixel window and print raw bytes
  attempts <n>                   Set the Request.Attempts budget for this session
  copies <n>                     Set the Request.Copies target for this session
  help                           Show this help
  exit / quit / q                Exit`)
}

func (r *repl) cmdOpen(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: open <uri> [opt...]")
		return
	}

	r.token = r.engine.GetToken(args[0], args[1:])
	r.hasOpen = true

	fmt.Printf("OK: token=%d\n", r.token)
}

func (r *repl) selector(args []string, idx int) rasterpool.Dataset {
	if idx < len(args) && strings.EqualFold(args[idx], "source") {
		return rasterpool.Source
	}

	return rasterpool.Warped
}

func (r *repl) requireOpen() bool {
	if !r.hasOpen {
		fmt.Println("No dataset open. Use 'open <uri>' first.")
		return false
	}

	return true
}

func (r *repl) cmdSize(args []string) {
	if !r.requireOpen() {
		return
	}

	sel := r.selector(args, 0)

	width, height, n := r.engine.GetWidthHeight(r.token, r.req, sel)
	if n < 0 {
		fmt.Println("error:", rasterpool.ResultError(n))
		return
	}

	fmt.Printf("%dx%d (touched %d copies)\n", width, height, n)
}

func (r *repl) cmdBands(args []string) {
	if !r.requireOpen() {
		return
	}

	sel := r.selector(args, 0)

	count, n := r.engine.GetBandCount(r.token, r.req, sel)
	if n < 0 {
		fmt.Println("error:", rasterpool.ResultError(n))
		return
	}

	fmt.Println(count)
}

func (r *repl) cmdNodata(args []string) {
	if !r.requireOpen() {
		return
	}

	if len(args) < 1 {
		fmt.Println("Usage: nodata <band> [source|warped]")
		return
	}

	band, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("error: band must be an integer")
		return
	}

	sel := r.selector(args, 1)

	value, ok, n := r.engine.GetBandNodata(r.token, r.req, sel, band)
	if n < 0 {
		fmt.Println("error:", rasterpool.ResultError(n))
		return
	}

	if !ok {
		fmt.Println("(no nodata set)")
		return
	}

	fmt.Println(value)
}

func (r *repl) cmdProj4(args []string) {
	if !r.requireOpen() {
		return
	}

	sel := r.selector(args, 0)

	proj4, n := r.engine.GetCRSProj4(r.token, r.req, sel)
	if n < 0 {
		fmt.Println("error:", rasterpool.ResultError(n))
		return
	}

	fmt.Println(proj4)
}

func (r *repl) cmdWKT(args []string) {
	if !r.requireOpen() {
		return
	}

	sel := r.selector(args, 0)

	wkt, n := r.engine.GetCRSWKT(r.token, r.req, sel)
	if n < 0 {
		fmt.Println("error:", rasterpool.ResultError(n))
		return
	}

	fmt.Println(wkt)
}

func (r *repl) cmdPixel(args []string) {
	if !r.requireOpen() {
		return
	}

	if len(args) < 7 {
		fmt.Println("Usage: pixel <band> <xoff> <yoff> <xsize> <ysize> <dstw> <dsth>")
		return
	}

	nums := make([]int, 7)

	for i, a := range args[:7] {
		n, err := strconv.Atoi(a)
		if err != nil {
			fmt.Printf("error: %q is not an integer\n", a)
			return
		}

		nums[i] = n
	}

	band := nums[0]
	srcWin := [4]int{nums[1], nums[2], nums[3], nums[4]}
	dstWin := [2]int{nums[5], nums[6]}

	buf := make([]byte, dstWin[0]*dstWin[1])

	n := r.engine.GetPixels(r.token, r.req, rasterpool.Warped, band, srcWin, dstWin, codec.Byte, buf)
	if n < 0 {
		fmt.Println("error:", rasterpool.ResultError(n))
		return
	}

	fmt.Printf("% x\n", buf)
}

func (r *repl) cmdAttempts(args []string) {
	if len(args) < 1 {
		fmt.Println("attempts:", r.req.Attempts)
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("error: attempts must be an integer")
		return
	}

	r.req.Attempts = n
}

func (r *repl) cmdCopies(args []string) {
	if len(args) < 1 {
		fmt.Println("copies:", r.req.Copies)
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("error: copies must be an integer")
		return
	}

	r.req.Copies = n
}
