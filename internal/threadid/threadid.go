// Package threadid resolves the identifier of the OS thread the calling
// goroutine is currently running on.
//
// The Error Channel (see pkg/rasterpool/errorchannel.go) keys its per-caller
// error records by OS thread id rather than by any Go-level identity, because
// the codec's global error callback is documented to fire on arbitrary
// threads, including ones the foreign binding shim owns and that do not
// survive a round trip through goroutine-local storage. During a cgo call
// the calling goroutine is wired to its OS thread for the call's duration,
// which is exactly the window the Error Channel needs to correlate a
// callback invocation with the Go call that triggered it.
package threadid

// ID identifies an OS thread. It has no meaning beyond equality comparison
// within a single process's lifetime.
type ID int64

// Current returns the identifier of the OS thread backing the calling
// goroutine at the moment of the call.
//
// Callers that need this identifier to remain valid across the whole of a
// codec call must ensure the goroutine does not migrate threads mid-call;
// in practice this holds automatically for any goroutine blocked inside a
// cgo call (the intended caller here), and is documented as a best-effort
// approximation everywhere else.
func Current() ID {
	return currentThreadID()
}
