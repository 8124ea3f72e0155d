package rasterpool

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/relief-labs/rasterpool/pkg/codec"
)

func nanosToDuration(n int64) time.Duration {
	if n <= 0 {
		return 0
	}

	return time.Duration(n)
}

// Config carries every tunable this package reads from the process
// environment (spec.md §6): there is no config file and no persisted state
// for the core, only env vars read once at [Init].
type Config struct {
	// TokenCapacity bounds the Token Registry (POOL_TOKEN_CAPACITY).
	TokenCapacity int
	// NumSlots sizes the Dataset Pool's flat slot array (POOL_NUM_DATASETS).
	NumSlots int
	// DefaultBudgetNanos is the default per-call attempt time budget in
	// nanoseconds (POOL_DEFAULT_NANOS). Zero disables the time budget,
	// leaving DefaultAttempts as the only bound.
	DefaultBudgetNanos int64
	// DefaultAttempts bounds how many outer-loop iterations a call makes
	// when it does not specify its own Request.Attempts. ≤0 means
	// unbounded (spec.md §8 property 11).
	DefaultAttempts int
	// DefaultCopies is the Request.Copies a call uses when it does not
	// specify its own (spec.md §4.3): positive grows hard, negative grows
	// softly by absolute value, 0 means one hard copy.
	DefaultCopies int
	// MaxErrorReports caps how many codec error messages the Error Channel
	// logs to stderr before suppressing further ones (CPL_MAX_ERROR_REPORTS).
	MaxErrorReports int
	// NonANSIMessages disables ANSI color in logged error messages
	// (POOL_NONANSI_MESSAGES).
	NonANSIMessages bool
	// SIGTERMDump, when set, escalates a received SIGTERM into a SIGSEGV
	// against the process itself so an attached debugger or core-dump
	// handler captures a stack at the moment of shutdown (POOL_SIGTERM_DUMP).
	// Mirrors a diagnostic mode real raster-serving daemons use in
	// production to catch "who is still sending requests during drain".
	SIGTERMDump bool
}

func envInt(env map[string]string, key string, fallback int) int {
	v, ok := env[key]
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

func envInt64(env map[string]string, key string, fallback int64) int64 {
	v, ok := env[key]
	if !ok {
		return fallback
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}

	return n
}

func envBool(env map[string]string, key string) bool {
	v, ok := env[key]
	if !ok {
		return false
	}

	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// DefaultConfig returns the configuration Init uses when no environment
// override is present for a given setting.
func DefaultConfig() Config {
	return Config{
		TokenCapacity:   1024,
		NumSlots:        8,
		DefaultAttempts: 32,
		DefaultCopies:   1,
		MaxErrorReports: 1000,
	}
}

// ConfigFromEnv reads Config from the current process environment.
func ConfigFromEnv() Config {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				env[e[:i]] = e[i+1:]
				break
			}
		}
	}

	cfg := DefaultConfig()
	cfg.TokenCapacity = envInt(env, "POOL_TOKEN_CAPACITY", cfg.TokenCapacity)
	cfg.NumSlots = envInt(env, "POOL_NUM_DATASETS", cfg.NumSlots)
	cfg.DefaultBudgetNanos = envInt64(env, "POOL_DEFAULT_NANOS", cfg.DefaultBudgetNanos)
	cfg.DefaultAttempts = envInt(env, "POOL_MAX_ATTEMPTS", cfg.DefaultAttempts)
	cfg.MaxErrorReports = envInt(env, "CPL_MAX_ERROR_REPORTS", cfg.MaxErrorReports)
	cfg.NonANSIMessages = envBool(env, "POOL_NONANSI_MESSAGES")
	cfg.SIGTERMDump = envBool(env, "POOL_SIGTERM_DUMP")

	// spec.md §6: POOL_SIGTERM_DUMP additionally sets a default 250ms time
	// budget, so a hung dump-triggering call doesn't block the watcher's
	// SIGSEGV escalation forever. An explicit POOL_DEFAULT_NANOS still wins.
	if cfg.SIGTERMDump {
		if _, explicit := env["POOL_DEFAULT_NANOS"]; !explicit {
			cfg.DefaultBudgetNanos = sigtermDumpDefaultBudgetNanos
		}
	}

	return cfg
}

// sigtermDumpDefaultBudgetNanos is the 250ms default time budget spec.md §6
// requires when POOL_SIGTERM_DUMP is set without an explicit POOL_DEFAULT_NANOS.
const sigtermDumpDefaultBudgetNanos = int64(250 * time.Millisecond)

// sigtermWatcher owns the goroutine and signal registration started when
// Config.SIGTERMDump is set. Stop deregisters it; it is safe to call Stop
// more than once.
type sigtermWatcher struct {
	stopOnce sync.Once
	sigCh    chan os.Signal
	done     chan struct{}
}

func startSIGTERMWatcher() *sigtermWatcher {
	w := &sigtermWatcher{
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}

	signal.Notify(w.sigCh, syscall.SIGTERM)

	go func() {
		select {
		case <-w.sigCh:
			fmt.Fprintln(os.Stderr, "rasterpool: SIGTERM received with POOL_SIGTERM_DUMP set, escalating to SIGSEGV for a core dump")
			_ = unix.Kill(os.Getpid(), unix.SIGSEGV)
		case <-w.done:
		}
	}()

	return w
}

func (w *sigtermWatcher) Stop() {
	w.stopOnce.Do(func() {
		signal.Stop(w.sigCh)
		close(w.done)
	})
}

// Init brings up an Engine against provider: a Token Registry, a Dataset
// Pool, and an Error Channel installed as the process-wide codec error
// handler. Only one Engine should be live per process at a time, since the
// Error Channel installation is process-global (spec.md §6, §9).
func Init(cfg Config, provider codec.Provider) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("rasterpool: Init: provider must not be nil")
	}

	errCh := NewErrorChannel(cfg.MaxErrorReports, cfg.NonANSIMessages)
	errCh.Install()

	engine := &Engine{
		tokens: NewTokenRegistry(cfg.TokenCapacity),
		pool:   NewPool(cfg.NumSlots, provider, errCh),
		errCh:  errCh,
		defaultRequest: Request{
			Attempts: cfg.DefaultAttempts,
			Copies:   cfg.DefaultCopies,
			Nanos:    nanosToDuration(cfg.DefaultBudgetNanos),
		},
	}

	if cfg.SIGTERMDump {
		engine.sigterm = startSIGTERMWatcher()
	}

	return engine, nil
}

// Deinit tears the Engine down: evicts and closes every resident handle that
// is not in use (see [Pool.Clear]), releases the Token Registry, and uninstalls the Error Channel so a later
// Init (in a test, say) does not inherit a stale handler.
func (e *Engine) Deinit() {
	if e.sigterm != nil {
		e.sigterm.Stop()
	}

	e.pool.Clear()
	e.tokens.Close()
	e.errCh.Uninstall()
}
