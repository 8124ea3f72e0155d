package rasterpool

import (
	"time"

	"github.com/relief-labs/rasterpool/pkg/codec"
)

// Request bundles the three dials the Dispatch Engine pseudocode names on
// every call (spec.md §4.4): Attempts bounds outer-loop iterations (≤0
// means unbounded), Nanos bounds wall-clock time per call (0 means
// unbounded), and Copies is forwarded to the Dataset Pool unchanged —
// positive grows hard, negative grows softly by its absolute value, zero
// means one hard copy (spec.md §4.3).
type Request struct {
	Attempts int
	Copies   int
	Nanos    time.Duration
}

// Engine is the process-wide facade returned by [Init]. Every exported
// Get* method implements the spec.md §4.4 attempt loop: ask the pool for
// every resident copy of the token's key (growing toward Copies), try each
// returned Handle in turn until one succeeds, and retry the whole round
// until success, a real codec error surfaces, or Attempts/Nanos is spent.
type Engine struct {
	tokens *TokenRegistry
	pool   *Pool
	errCh  *ErrorChannel

	defaultRequest Request

	sigterm *sigtermWatcher
}

// DefaultRequest returns the Request this Engine was configured with
// (spec.md §6's POOL_MAX_ATTEMPTS / POOL_DEFAULT_NANOS env vars), as a
// starting point for callers that want to override just one field.
func (e *Engine) DefaultRequest() Request { return e.defaultRequest }

// GetToken interns (uri, options) and returns its token. Never fails: an
// unopenable URI simply fails lazily on the first operation against the
// token (spec.md §4.1).
func (e *Engine) GetToken(uri string, options []string) Token {
	return e.tokens.GetToken(uri, options)
}

// QueryToken reports the (uri, options) pair a token was issued for, if it
// is still live.
func (e *Engine) QueryToken(token Token) (uri string, options []string, ok bool) {
	key, ok := e.tokens.QueryToken(token)
	if !ok {
		return "", nil, false
	}

	return key.URI, key.Options, true
}

// dispatch is the spec.md §4.4 attempt loop, verbatim: query the token,
// then repeatedly ask the pool for every resident copy of the key and try
// each one in turn, until one attempt succeeds, a real codec error
// surfaces, or the attempt/time budget named by req is spent.
//
// Attempts ≤ 0 and Copies == 0 are boundary cases spec.md §8 properties 11
// and 12 name explicitly: Attempts ≤ 0 means unbounded (the loop then exits
// only via success, a real error, or the Nanos budget), and Copies == 0 is normalized to 1
// hard copy by [Pool.Get] itself.
func (e *Engine) dispatch(token Token, req Request, op func(h *Handle) int) int {
	key, ok := e.tokens.QueryToken(token)
	if !ok {
		return -int(codec.CodeOpenFailed)
	}

	start := time.Now()
	touched := 0
	lastStatus := -int(codec.CodeAppDefined)

	for i := 0; req.Attempts <= 0 || i < req.Attempts; i++ {
		if req.Nanos > 0 && time.Since(start) > req.Nanos {
			return -int(codec.CodeFileIO)
		}

		handles, err := e.pool.Get(key, req.Copies)
		if err != nil {
			return -int(codec.CodeOpenFailed)
		}

		if len(handles) == 0 {
			return -int(codec.CodeOpenFailed)
		}

		done := false

		for _, h := range handles {
			if !done {
				touched++

				status := op(h)
				lastStatus = status

				if status == AttemptSuccessful {
					done = true
				}
			}

			e.pool.Release(h)
		}

		if done {
			return touched
		}

		// A real codec error ends the call; only contention earns another
		// round.
		if lastStatus != DatasetLocked {
			return lastStatus
		}
	}

	if lastStatus == AttemptSuccessful || lastStatus == DatasetLocked {
		return -int(codec.CodeFileIO)
	}

	return lastStatus
}

// GetNoOp acquires and releases a handle without touching raster data,
// exercising the full dispatch/attempt path. Used by benchmarks and tests
// that want to measure or exercise pool contention in isolation from actual
// codec work (spec.md §4.2).
func (e *Engine) GetNoOp(token Token, req Request, sel Dataset) (result int) {
	return e.dispatch(token, req, func(h *Handle) int {
		return h.NoOp(sel)
	})
}

func (e *Engine) GetBandCount(token Token, req Request, sel Dataset) (count, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		count, status = h.BandCount(sel)
		return status
	})

	return count, result
}

func (e *Engine) GetWidthHeight(token Token, req Request, sel Dataset) (width, height, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		width, height, status = h.WidthHeight(sel)
		return status
	})

	return width, height, result
}

func (e *Engine) GetBlockSize(token Token, req Request, sel Dataset, band int) (width, height, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		width, height, status = h.BlockSize(sel, band)
		return status
	})

	return width, height, result
}

func (e *Engine) GetTransform(token Token, req Request, sel Dataset) (transform [6]float64, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		transform, status = h.Transform(sel)
		return status
	})

	return transform, result
}

func (e *Engine) GetOffset(token Token, req Request, sel Dataset, band int) (offset float64, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		offset, status = h.Offset(sel, band)
		return status
	})

	return offset, result
}

func (e *Engine) GetScale(token Token, req Request, sel Dataset, band int) (scale float64, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		scale, status = h.Scale(sel, band)
		return status
	})

	return scale, result
}

func (e *Engine) GetColorInterpretation(token Token, req Request, sel Dataset, band int) (interp string, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		interp, status = h.ColorInterpretation(sel, band)
		return status
	})

	return interp, result
}

func (e *Engine) GetBandDataType(token Token, req Request, sel Dataset, band int) (dtype codec.DataType, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		dtype, status = h.BandDataType(sel, band)
		return status
	})

	return dtype, result
}

// GetBandNodata reports the band's nodata value. ok is false when the band
// legitimately has no nodata set; result < 0 is the only signal of actual
// failure (spec.md §4.5, scenarios S1/S2).
func (e *Engine) GetBandNodata(token Token, req Request, sel Dataset, band int) (value float64, ok bool, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		value, ok, status = h.BandNodata(sel, band)
		return status
	})

	return value, ok, result
}

func (e *Engine) GetBandMaxMin(token Token, req Request, sel Dataset, band int, approxOK bool) (min, max float64, ok bool, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		min, max, ok, status = h.BandMaxMin(sel, band, approxOK)
		return status
	})

	return min, max, ok, result
}

func (e *Engine) GetHistogram(token Token, req Request, sel Dataset, band int, lower, upper float64, numBuckets int, includeOutOfRange, approxOK bool) (counts []int64, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		counts, status = h.Histogram(sel, band, lower, upper, numBuckets, includeOutOfRange, approxOK)
		return status
	})

	return counts, result
}

func (e *Engine) GetOverviewWidthsHeights(token Token, req Request, sel Dataset, band int) (widths, heights []int, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		widths, heights, status = h.OverviewWidthsHeights(sel, band)
		return status
	})

	return widths, heights, result
}

func (e *Engine) GetMetadataDomainList(token Token, req Request, sel Dataset) (domains []string, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		domains, status = h.MetadataDomainList(sel)
		return status
	})

	return domains, result
}

func (e *Engine) GetMetadata(token Token, req Request, sel Dataset, domain string) (md map[string]string, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		md, status = h.Metadata(sel, domain)
		return status
	})

	return md, result
}

func (e *Engine) GetMetadataItem(token Token, req Request, sel Dataset, key, domain string) (value string, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		value, status = h.MetadataItem(sel, key, domain)
		return status
	})

	return value, result
}

func (e *Engine) GetCRSProj4(token Token, req Request, sel Dataset) (proj4 string, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		proj4, status = h.CRSProj4(sel)
		return status
	})

	return proj4, result
}

func (e *Engine) GetCRSWKT(token Token, req Request, sel Dataset) (wkt string, result int) {
	result = e.dispatch(token, req, func(h *Handle) int {
		var status int
		wkt, status = h.CRSWKT(sel)
		return status
	})

	return wkt, result
}

// GetPixels fills buf with band's samples resampled from srcWin into
// dstWin, per dtype. result is the spec.md §7 raw ABI value: positive is
// the number of handle copies touched, negative is an error code.
func (e *Engine) GetPixels(token Token, req Request, sel Dataset, band int, srcWin [4]int, dstWin [2]int, dtype codec.DataType, buf []byte) (result int) {
	return e.dispatch(token, req, func(h *Handle) int {
		return h.Pixels(sel, band, srcWin, dstWin, dtype, buf)
	})
}

// Contains reports whether the dataset named by token currently has any
// resident handle copy in the pool.
func (e *Engine) Contains(token Token) bool {
	key, ok := e.tokens.QueryToken(token)
	if !ok {
		return false
	}

	return e.pool.Contains(key)
}

// CopyCount reports how many resident handle copies currently back token.
func (e *Engine) CopyCount(token Token) int {
	key, ok := e.tokens.QueryToken(token)
	if !ok {
		return 0
	}

	return e.pool.Count(key)
}
