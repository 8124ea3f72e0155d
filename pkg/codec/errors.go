package codec

import "sync"

// handlerMu guards handler. The codec's error callback is process-global by
// design (spec.md §6, §9) — there is exactly one slot, not one per Provider,
// matching the real library's single CPLSetErrorHandler-style seam.
var (
	handlerMu sync.Mutex
	handler   ErrorHandler
)

// SetErrorHandler installs h as the process-global error handler and returns
// the previously installed handler (nil if none was installed).
func SetErrorHandler(h ErrorHandler) ErrorHandler {
	handlerMu.Lock()
	defer handlerMu.Unlock()

	prev := handler
	handler = h

	return prev
}

// Raise invokes the currently installed error handler, if any. Codec
// implementations call this instead of calling the handler directly so that
// handler installation stays centralized and nil-safe.
func Raise(severity Severity, code Code, message string) {
	handlerMu.Lock()
	h := handler
	handlerMu.Unlock()

	if h != nil {
		h(severity, code, message)
	}
}
