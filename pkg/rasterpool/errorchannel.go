package rasterpool

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relief-labs/rasterpool/internal/threadid"
	"github.com/relief-labs/rasterpool/pkg/codec"
)

// errorRecord is one Error Channel entry: the last codec error raised on a
// given OS thread, plus a total order (seq) so Handle operations can
// distinguish "this call raised a new error" from "this is a stale entry
// from a previous call on the same thread" (spec.md §3, §4.5, §9).
type errorRecord struct {
	code      codec.Code
	seq       uint64
	timestamp int64 // unix milliseconds, for the spec.md §3 Error Record shape
}

// errorChannelCapacity bounds the per-thread map (spec.md §3: "~2^20
// threads"). On overflow the map is bulk-cleared; a cleared thread simply
// starts a fresh error history, which only affects the "stale vs new error"
// distinction for the thread whose history was dropped, not correctness of
// any in-flight call on another thread.
const errorChannelCapacity = 1 << 20

// ErrorChannel bridges the codec's process-global, arbitrary-thread error
// callback back to the specific Handle operation that triggered it. It is
// keyed by OS thread id (internal/threadid) rather than any Go-level
// identity, because the callback may fire on a thread the Go runtime does
// not recognize as "the calling goroutine's" thread once control has
// crossed into (simulated) foreign code — see spec.md §9.
type ErrorChannel struct {
	mu      sync.Mutex
	entries map[threadid.ID]errorRecord
	seq     atomic.Uint64

	maxReports   int
	reported     atomic.Int64
	disableColor bool

	prevHandler codec.ErrorHandler
}

// NewErrorChannel constructs a channel. It does not install itself as the
// active codec error handler; call [ErrorChannel.Install] for that.
func NewErrorChannel(maxReports int, disableColor bool) *ErrorChannel {
	if maxReports <= 0 {
		maxReports = 1000
	}

	return &ErrorChannel{
		entries:      make(map[threadid.ID]errorRecord),
		maxReports:   maxReports,
		disableColor: disableColor,
	}
}

// Install registers the channel as the process-wide codec error handler,
// saving whatever handler was previously installed so a later [Uninstall]
// can restore it.
func (c *ErrorChannel) Install() {
	c.prevHandler = codec.SetErrorHandler(c.onError)
}

// Uninstall restores the handler that was active before [ErrorChannel.Install].
func (c *ErrorChannel) Uninstall() {
	codec.SetErrorHandler(c.prevHandler)
}

// onError is the codec.ErrorHandler. It may run on any goroutine, including
// one currently blocked inside a codec call made by a Handle operation.
func (c *ErrorChannel) onError(severity codec.Severity, code codec.Code, message string) {
	tid := threadid.Current()
	seq := c.seq.Add(1)

	c.mu.Lock()

	if len(c.entries) >= errorChannelCapacity {
		c.entries = make(map[threadid.ID]errorRecord)
	}

	c.entries[tid] = errorRecord{code: code, seq: seq, timestamp: time.Now().UnixMilli()}

	c.mu.Unlock()

	c.logBounded(severity, code, message)

	if severity == codec.SeverityFatal {
		fmt.Fprintf(os.Stderr, "rasterpool: fatal codec error %s: %s\n", code, message)
		os.Exit(1)
	}
}

// logBounded writes one line to stderr, subject to the CPL_MAX_ERROR_REPORTS
// cap (spec.md §6), mirroring the codec's own bounded error logging.
func (c *ErrorChannel) logBounded(severity codec.Severity, code codec.Code, message string) {
	n := c.reported.Add(1)
	if n > int64(c.maxReports) {
		return
	}

	if n == int64(c.maxReports) {
		fmt.Fprintln(os.Stderr, c.colorize("error", "rasterpool: further error reports suppressed (CPL_MAX_ERROR_REPORTS reached)"))
		return
	}

	fmt.Fprintln(os.Stderr, c.colorize(severity.String(), fmt.Sprintf("rasterpool: %s %s: %s", severity, code, message)))
}

// colorize wraps msg in an ANSI color escape unless POOL_NONANSI_MESSAGES
// disabled it (spec.md §6).
func (c *ErrorChannel) colorize(severity, msg string) string {
	if c.disableColor {
		return msg
	}

	color := "33" // yellow

	if severity == "failure" || severity == "fatal" {
		color = "31" // red
	}

	return "\x1b[" + color + "m" + msg + "\x1b[0m"
}

// peek returns the current error entry for tid, and whether one exists.
func (c *ErrorChannel) peek(tid threadid.ID) (errorRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[tid]

	return rec, ok
}
