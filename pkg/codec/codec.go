// Package codec abstracts the external raster-I/O library that the rest of
// this module treats as an opaque, thread-hostile capability provider (see
// spec.md §1, §6). Nothing in this package is safe for concurrent use by
// itself on a single Dataset; serializing access to a Dataset is the job of
// pkg/rasterpool's Handle Wrapper, not this package.
//
// Two implementations exist: [Real], a build-tag-gated stub whose contract
// is fully specified but whose body is intentionally unimplemented (the cgo
// binding shim that would back it is explicitly out of scope, see spec.md
// §1 and §6), and [Fake], a deterministic in-memory stand-in used by the
// whole test suite and by cmd/rpctl's demo mode.
package codec

import "fmt"

// Severity mirrors the raster library's error-severity classes.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityDebug
	SeverityWarning
	SeverityFailure
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityFailure:
		return "failure"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Code is a codec-originated error number. Values and meanings mirror the
// small non-negative error-code space the downstream library defines (see
// spec.md §6); the core negates these before returning them to callers.
type Code int

const (
	CodeNone            Code = 0
	CodeAppDefined      Code = 1
	CodeOutOfMemory     Code = 2
	CodeFileIO          Code = 3
	CodeOpenFailed      Code = 4
	CodeIllegalArg      Code = 5
	CodeNotSupported    Code = 6
	CodeAssertionFailed Code = 7
	CodeNoWriteAccess   Code = 8
	CodeUserInterrupt   Code = 9
	CodeObjectNull      Code = 10
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "None"
	case CodeAppDefined:
		return "AppDefined"
	case CodeOutOfMemory:
		return "OutOfMemory"
	case CodeFileIO:
		return "FileIO"
	case CodeOpenFailed:
		return "OpenFailed"
	case CodeIllegalArg:
		return "IllegalArg"
	case CodeNotSupported:
		return "NotSupported"
	case CodeAssertionFailed:
		return "AssertionFailed"
	case CodeNoWriteAccess:
		return "NoWriteAccess"
	case CodeUserInterrupt:
		return "UserInterrupt"
	case CodeObjectNull:
		return "ObjectNull"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// DataType enumerates the pixel types the codec can marshal to a caller
// buffer in [Dataset.Pixels].
type DataType int

const (
	Byte DataType = iota
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

// Size returns the width in bytes of one sample of this type.
func (t DataType) Size() int {
	switch t {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Provider opens datasets from a URI. It is the entry point for every
// codec capability the rest of the module needs; a single process-wide
// Provider is installed at rasterpool.Init.
type Provider interface {
	// OpenSource opens uri read-only and returns the raw source dataset.
	OpenSource(uri string) (Dataset, error)

	// Warp derives an in-memory, virtual-format dataset from source by
	// applying the given app-option vector (already carrying the fixed
	// "-of VRT" suffix the core appends at open time, see spec.md §6).
	Warp(source Dataset, options []string) (Dataset, error)
}

// Dataset is one opened native raster handle. Every method may block on
// codec-internal I/O and is NOT safe for concurrent use — callers (the
// Handle Wrapper) must serialize access with their own mutex.
//
// The operation set is exhaustive per spec.md §4.2.
type Dataset interface {
	Close() error

	// NoOp does nothing but acquire and release the dataset, exercising the
	// same lock/attempt machinery as every other operation without touching
	// the underlying raster. Never fails once the dataset is open.
	NoOp() error

	BandCount() (int, error)
	WidthHeight() (width, height int, err error)
	BlockSize(band int) (width, height int, err error)
	Transform() ([6]float64, error)

	Offset(band int) (float64, error)
	Scale(band int) (float64, error)
	ColorInterpretation(band int) (string, error)
	BandDataType(band int) (DataType, error)
	BandNodata(band int) (value float64, ok bool, err error)
	BandMaxMin(band int, approxOK bool) (min, max float64, ok bool, err error)
	Histogram(band int, lower, upper float64, numBuckets int, includeOutOfRange, approxOK bool) ([]int64, error)
	OverviewWidthsHeights(band int) (widths, heights []int, err error)

	MetadataDomainList() ([]string, error)
	Metadata(domain string) (map[string]string, error)
	MetadataItem(key, domain string) (string, error)

	CRSProj4() (string, error)
	CRSWKT() (string, error)

	Pixels(band int, srcWin [4]int, dstWin [2]int, dtype DataType, buf []byte) error
}

// ErrorHandler receives every error/warning/debug message the codec raises,
// on whatever goroutine happens to be inside the triggering call. This
// mirrors the downstream library's single process-global error callback
// (spec.md §6, §9); installing a new handler replaces the previous one,
// exactly like the real CPLSetErrorHandler it is modeled on.
type ErrorHandler func(severity Severity, code Code, message string)
