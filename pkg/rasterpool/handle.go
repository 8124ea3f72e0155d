package rasterpool

import (
	"sync"
	"sync/atomic"

	"github.com/relief-labs/rasterpool/internal/threadid"
	"github.com/relief-labs/rasterpool/pkg/codec"
)

// warpSuffix is appended to every Warp call's option vector at open time
// (spec.md §6): the warped dataset is always an in-memory virtual-format
// product, never written to disk.
var warpSuffix = []string{"-of", "VRT"}

// Handle Wrapper: owns one codec source dataset and its derived warped
// dataset, serialized behind a single non-blocking mutex (spec.md §3, §9).
// A Handle never blocks a caller: [Handle.attempt] uses [sync.Mutex.TryLock],
// so a caller finding the handle busy reports DatasetLocked and lets the
// Dispatch Engine retry against a different copy instead of waiting.
type Handle struct {
	mu sync.Mutex

	key    Key
	source codec.Dataset
	warped codec.Dataset

	uses  atomic.Int64
	errCh *ErrorChannel
}

// openHandle opens source and warped datasets for key via provider. The
// returned Handle has a use count of zero.
func openHandle(key Key, provider codec.Provider, errCh *ErrorChannel) (*Handle, error) {
	source, err := provider.OpenSource(key.URI)
	if err != nil {
		return nil, err
	}

	options := append(append([]string(nil), key.Options...), warpSuffix...)

	warped, err := provider.Warp(source, options)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	return &Handle{key: key, source: source, warped: warped, errCh: errCh}, nil
}

// close releases both native datasets. Must only be called when no other
// goroutine can still reach the handle: either the caller holds h.mu via
// [Handle.lockForDeletion], or the handle was never placed in a pool slot.
// Go has no destructors, so the pool closes handles explicitly: on eviction,
// in [Pool.Clear], and in [Pool.Get] for a fresh copy that found no slot.
func (h *Handle) close() {
	if h.warped != nil {
		_ = h.warped.Close()
	}

	if h.source != nil {
		_ = h.source.Close()
	}
}

// inc records one new logical user of this handle copy. Called by the pool
// while it still holds the handle pinned, before handing the copy to a
// caller.
func (h *Handle) inc() { h.uses.Add(1) }

// dec releases one logical use.
func (h *Handle) dec() { h.uses.Add(-1) }

// lockForDeletion attempts to acquire h.mu without blocking and verifies the
// use count is zero. On success the caller holds h.mu and decides the
// handle's fate: it either calls [Handle.close] before unlocking, or simply
// unlocks to leave the handle in service. On failure h.mu is not held.
func (h *Handle) lockForDeletion() bool {
	if !h.mu.TryLock() {
		return false
	}

	if h.uses.Load() != 0 {
		h.mu.Unlock()
		return false
	}

	return true
}

func (h *Handle) dataset(sel Dataset) codec.Dataset {
	if sel == Warped {
		return h.warped
	}

	return h.source
}

// attempt serializes one codec call behind h.mu's try-lock and translates
// its outcome into the spec.md §4.2 status convention: AttemptSuccessful on
// a nil error, DatasetLocked if the mutex was already held, or the negated
// codec error code recovered from the Error Channel otherwise.
//
// The codec call's Go error return is deliberately not inspected for its
// code: the real binding this models reports failure out-of-band through a
// process-global last-error slot (CPLGetLastErrorNo), not through a
// structured Go error, so the Error Channel — keyed by OS thread id, not by
// the error value — is the channel of record. [codec.CodeOf] is consulted
// only as a fallback for a codec implementation that never called
// [codec.Raise] at all.
func (h *Handle) attempt(fn func() error) int {
	if !h.mu.TryLock() {
		return DatasetLocked
	}
	defer h.mu.Unlock()

	tid := threadid.Current()

	before, hadBefore := h.errCh.peek(tid)

	err := fn()
	if err == nil {
		return AttemptSuccessful
	}

	after, hadAfter := h.errCh.peek(tid)
	if hadAfter && (!hadBefore || after.seq != before.seq) {
		return -int(after.code)
	}

	if code, ok := codec.CodeOf(err); ok {
		return -int(code)
	}

	return -int(codec.CodeObjectNull)
}

// NoOp acquires the handle's lock, calls the codec's no-op, and releases it,
// exercising the attempt/dispatch machinery without touching raster data.
func (h *Handle) NoOp(sel Dataset) (status int) {
	return h.attempt(func() error {
		return h.dataset(sel).NoOp()
	})
}

func (h *Handle) BandCount(sel Dataset) (count, status int) {
	status = h.attempt(func() error {
		var err error
		count, err = h.dataset(sel).BandCount()
		return err
	})

	return count, status
}

func (h *Handle) WidthHeight(sel Dataset) (width, height, status int) {
	status = h.attempt(func() error {
		var err error
		width, height, err = h.dataset(sel).WidthHeight()
		return err
	})

	return width, height, status
}

func (h *Handle) BlockSize(sel Dataset, band int) (width, height, status int) {
	status = h.attempt(func() error {
		var err error
		width, height, err = h.dataset(sel).BlockSize(band)
		return err
	})

	return width, height, status
}

func (h *Handle) Transform(sel Dataset) (transform [6]float64, status int) {
	status = h.attempt(func() error {
		var err error
		transform, err = h.dataset(sel).Transform()
		return err
	})

	return transform, status
}

func (h *Handle) Offset(sel Dataset, band int) (offset float64, status int) {
	status = h.attempt(func() error {
		var err error
		offset, err = h.dataset(sel).Offset(band)
		return err
	})

	return offset, status
}

func (h *Handle) Scale(sel Dataset, band int) (scale float64, status int) {
	status = h.attempt(func() error {
		var err error
		scale, err = h.dataset(sel).Scale(band)
		return err
	})

	return scale, status
}

func (h *Handle) ColorInterpretation(sel Dataset, band int) (interp string, status int) {
	status = h.attempt(func() error {
		var err error
		interp, err = h.dataset(sel).ColorInterpretation(band)
		return err
	})

	return interp, status
}

func (h *Handle) BandDataType(sel Dataset, band int) (dtype codec.DataType, status int) {
	status = h.attempt(func() error {
		var err error
		dtype, err = h.dataset(sel).BandDataType(band)
		return err
	})

	return dtype, status
}

func (h *Handle) BandNodata(sel Dataset, band int) (value float64, ok bool, status int) {
	status = h.attempt(func() error {
		var err error
		value, ok, err = h.dataset(sel).BandNodata(band)
		return err
	})

	return value, ok, status
}

func (h *Handle) BandMaxMin(sel Dataset, band int, approxOK bool) (min, max float64, ok bool, status int) {
	status = h.attempt(func() error {
		var err error
		min, max, ok, err = h.dataset(sel).BandMaxMin(band, approxOK)
		return err
	})

	return min, max, ok, status
}

func (h *Handle) Histogram(sel Dataset, band int, lower, upper float64, numBuckets int, includeOutOfRange, approxOK bool) (counts []int64, status int) {
	status = h.attempt(func() error {
		var err error
		counts, err = h.dataset(sel).Histogram(band, lower, upper, numBuckets, includeOutOfRange, approxOK)
		return err
	})

	return counts, status
}

func (h *Handle) OverviewWidthsHeights(sel Dataset, band int) (widths, heights []int, status int) {
	status = h.attempt(func() error {
		var err error
		widths, heights, err = h.dataset(sel).OverviewWidthsHeights(band)
		return err
	})

	return widths, heights, status
}

func (h *Handle) MetadataDomainList(sel Dataset) (domains []string, status int) {
	status = h.attempt(func() error {
		var err error
		domains, err = h.dataset(sel).MetadataDomainList()
		return err
	})

	return domains, status
}

func (h *Handle) Metadata(sel Dataset, domain string) (md map[string]string, status int) {
	status = h.attempt(func() error {
		var err error
		md, err = h.dataset(sel).Metadata(domain)
		return err
	})

	return md, status
}

func (h *Handle) MetadataItem(sel Dataset, key, domain string) (value string, status int) {
	status = h.attempt(func() error {
		var err error
		value, err = h.dataset(sel).MetadataItem(key, domain)
		return err
	})

	return value, status
}

func (h *Handle) CRSProj4(sel Dataset) (proj4 string, status int) {
	status = h.attempt(func() error {
		var err error
		proj4, err = h.dataset(sel).CRSProj4()
		return err
	})

	return proj4, status
}

func (h *Handle) CRSWKT(sel Dataset) (wkt string, status int) {
	status = h.attempt(func() error {
		var err error
		wkt, err = h.dataset(sel).CRSWKT()
		return err
	})

	return wkt, status
}

func (h *Handle) Pixels(sel Dataset, band int, srcWin [4]int, dstWin [2]int, dtype codec.DataType, buf []byte) (status int) {
	return h.attempt(func() error {
		return h.dataset(sel).Pixels(band, srcWin, dstWin, dtype, buf)
	})
}
