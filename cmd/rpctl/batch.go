package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	flag "github.com/spf13/pflag"

	"github.com/relief-labs/rasterpool/pkg/codec"
	"github.com/relief-labs/rasterpool/pkg/rasterpool"
)

// batchJob is one line item in a batch file: open uri with options, then run
// op against sel. Mirrors the (uri, options, op) triple spec.md §8's
// scenarios are built from.
type batchJob struct {
	URI     string   `json:"uri"`
	Options []string `json:"options,omitempty"`
	Op      string   `json:"op"`
	Band    int      `json:"band,omitempty"`
	Dataset string   `json:"dataset,omitempty"` // "source" or "warped", default "warped"
}

// batchFile is the top-level shape of a JSONC (hujson) batch-job file.
type batchFile struct {
	Jobs []batchJob `json:"jobs"`
}

// batchResult is one line of the report written at the end of a batch run.
type batchResult struct {
	URI     string `json:"uri"`
	Op      string `json:"op"`
	Result  int    `json:"result"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

func cmdBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)

	report := fs.String("report", "", "write a JSON report of every job's result to this path (atomic write)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rpctl batch [--report <path>] <job-file.hujson>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	jobs, err := loadBatchFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer engine.Deinit()

	results := runBatch(engine, jobs)

	exitCode := 0

	for _, res := range results {
		if res.Error != "" {
			fmt.Fprintf(os.Stderr, "FAIL %s %s: %s\n", res.URI, res.Op, res.Error)
			exitCode = 1
		} else {
			fmt.Printf("OK   %s %s = %d (%s)\n", res.URI, res.Op, res.Result, res.Elapsed)
		}
	}

	if *report != "" {
		if err := writeBatchReport(*report, results); err != nil {
			fmt.Fprintln(os.Stderr, "error writing report:", err)
			return 1
		}
	}

	return exitCode
}

// loadBatchFile reads and standardizes a JSONC batch-job description,
// allowing comments and trailing commas the way config.go's hujson usage
// does for .tk.json, then decodes the standardized JSON into batchFile.
func loadBatchFile(path string) ([]batchJob, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}

	var file batchFile

	if err := json.Unmarshal(standardized, &file); err != nil {
		return nil, fmt.Errorf("decoding batch file: %w", err)
	}

	return file.Jobs, nil
}

func runBatch(engine *rasterpool.Engine, jobs []batchJob) []batchResult {
	req := engine.DefaultRequest()
	results := make([]batchResult, 0, len(jobs))

	for _, job := range jobs {
		start := time.Now()

		token := engine.GetToken(job.URI, job.Options)
		sel := rasterpool.Warped

		if strings.EqualFold(job.Dataset, "source") {
			sel = rasterpool.Source
		}

		result := runJobOp(engine, token, req, sel, job)

		res := batchResult{
			URI:     job.URI,
			Op:      job.Op,
			Result:  result,
			Elapsed: time.Since(start).String(),
		}

		if result < 0 {
			res.Error = rasterpool.ResultError(result).Error()
		}

		results = append(results, res)
	}

	return results
}

func runJobOp(engine *rasterpool.Engine, token rasterpool.Token, req rasterpool.Request, sel rasterpool.Dataset, job batchJob) int {
	switch job.Op {
	case "width_height":
		_, _, n := engine.GetWidthHeight(token, req, sel)
		return n
	case "band_count":
		_, n := engine.GetBandCount(token, req, sel)
		return n
	case "nodata":
		_, _, n := engine.GetBandNodata(token, req, sel, job.Band)
		return n
	case "proj4":
		_, n := engine.GetCRSProj4(token, req, sel)
		return n
	case "wkt":
		_, n := engine.GetCRSWKT(token, req, sel)
		return n
	default:
		return -int(codec.CodeIllegalArg)
	}
}

// writeBatchReport writes results as indented JSON to path using an atomic
// rename, so a crash mid-write never leaves a truncated report on disk
// (the same durability concern the teacher applies to ticket files via
// atomic.WriteFile in lock.go's WithTicketLock).
func writeBatchReport(path string, results []batchResult) error {
	body, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	return atomic.WriteFile(path, strings.NewReader(string(body)))
}
