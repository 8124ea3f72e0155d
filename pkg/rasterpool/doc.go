// Package rasterpool is a thread-safe, process-wide facade around a
// thread-hostile external raster-I/O codec (pkg/codec). It interns
// (URI, options) pairs into opaque tokens, keeps a bounded multi-copy LRU
// pool of opened dataset handles, and dispatches each read operation through
// a retrying, time-budgeted engine so that many concurrent callers can share
// a handful of hot datasets without serializing on one codec handle's mutex.
//
// # Basic usage
//
//	provider := codec.NewFake() // or a real codec.Provider
//	rp, err := rasterpool.Init(rasterpool.ConfigFromEnv(), provider)
//	if err != nil {
//	    // handle startup failure
//	}
//	defer rp.Deinit()
//
//	token := rp.GetToken("fixture.tif", []string{"-r", "bilinear", "-t_srs", "epsg:3857"})
//
//	req := rasterpool.Request{Attempts: 42, Copies: -4}
//	value, ok, n := rp.GetBandNodata(token, req, rasterpool.Warped, 1)
//	if n < 0 {
//	    // n is a negative error code (see Errors)
//	}
//
// # Concurrency
//
// Every exported method on [Engine] (the facade returned by [Init]) is safe
// for concurrent use by many goroutines. A single logical dataset (the same
// token) may be served by several independently-mutexed copies at once; the
// engine grows copies on contention instead of making callers wait on one
// handle's lock.
//
// # Error handling
//
// Every data-returning operation returns a plain signed int: positive is the
// number of handle copies touched before success, negative is an error
// category (see errors.go). This mirrors the flat C-ABI the real foreign
// binding would marshal (spec-level operations are integers in, integers
// out) even though no cgo/JNI binding ships in this module.
package rasterpool
