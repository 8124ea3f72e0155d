package codec

import (
	"errors"
	"fmt"
	"strconv"
)

// errCode wraps a [Code] so that Fake's callers (and tests) can recover the
// codec-originated error number with [errors.As], the same way pkg/rasterpool
// recovers it from the Error Channel.
type errCode struct {
	code Code
	msg  string
}

func (e *errCode) Error() string { return e.msg }

// CodeOf extracts the [Code] carried by an error returned from this package,
// if any.
func CodeOf(err error) (Code, bool) {
	var ec *errCode
	if errors.As(err, &ec) {
		return ec.code, true
	}

	return 0, false
}

func fail(severity Severity, code Code, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	Raise(severity, code, msg)

	return &errCode{code: code, msg: msg}
}

// fixtureURI is the only URI [Fake] considers openable. Every other URI
// behaves like a missing file, covering spec.md §8 scenario S3.
const fixtureURI = "fixture.tif"

const (
	fixtureWidth  = 512
	fixtureHeight = 512
	fixtureBands  = 3
)

// Fake is a deterministic, in-memory [Provider] used throughout the test
// suite (and by cmd/rpctl's demo mode) in place of a real codec binding.
// It never touches the filesystem or network; every answer is a pure
// function of the dataset's URI, warp options, and the operation's
// arguments, so the literal scenarios in spec.md §8 (S1-S6) are
// reproducible without a real raster file.
type Fake struct{}

// NewFake returns a ready-to-use fake codec provider.
func NewFake() *Fake { return &Fake{} }

func (f *Fake) OpenSource(uri string) (Dataset, error) {
	if uri != fixtureURI {
		return nil, fail(SeverityFailure, CodeOpenFailed, "fake codec: no such file or directory: %s", uri)
	}

	return &fakeDataset{uri: uri, warped: false}, nil
}

func (f *Fake) Warp(source Dataset, options []string) (Dataset, error) {
	src, ok := source.(*fakeDataset)
	if !ok {
		return nil, fail(SeverityFailure, CodeAppDefined, "fake codec: Warp called with foreign dataset")
	}

	warped := &fakeDataset{uri: src.uri, warped: true}

	for i, opt := range options {
		if opt == "-dstnodata" && i+1 < len(options) {
			v, err := strconv.ParseFloat(options[i+1], 64)
			if err == nil {
				warped.nodata = &v
			}
		}
	}

	return warped, nil
}

// fakeDataset is the [Dataset] half of [Fake]. Every source/warped pair
// sharing a URI reports identical raster geometry; only nodata (and, in
// principle, reprojection-dependent fields) differs between the two.
type fakeDataset struct {
	uri    string
	warped bool
	nodata *float64
	closed bool
}

func (d *fakeDataset) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDataset) validBand(band int) error {
	if band < 1 || band > fixtureBands {
		return fail(SeverityFailure, CodeIllegalArg, "fake codec: band %d out of range [1,%d]", band, fixtureBands)
	}

	return nil
}

// NoOp always succeeds on an open dataset; it exists purely to exercise the
// pool's lock/attempt path without touching raster data.
func (d *fakeDataset) NoOp() error { return nil }

func (d *fakeDataset) BandCount() (int, error) { return fixtureBands, nil }

func (d *fakeDataset) WidthHeight() (int, int, error) { return fixtureWidth, fixtureHeight, nil }

func (d *fakeDataset) BlockSize(band int) (int, int, error) {
	if err := d.validBand(band); err != nil {
		return 0, 0, err
	}

	return 256, 256, nil
}

func (d *fakeDataset) Transform() ([6]float64, error) {
	return [6]float64{33.0, 0.1, 0.0, 42.0, 0.0, -0.1}, nil
}

func (d *fakeDataset) Offset(band int) (float64, error) {
	if err := d.validBand(band); err != nil {
		return 0, err
	}

	return 0.0, nil
}

func (d *fakeDataset) Scale(band int) (float64, error) {
	if err := d.validBand(band); err != nil {
		return 0, err
	}

	return 1.0, nil
}

func (d *fakeDataset) ColorInterpretation(band int) (string, error) {
	if err := d.validBand(band); err != nil {
		return "", err
	}

	if band == 1 {
		return "Gray", nil
	}

	return "Undefined", nil
}

func (d *fakeDataset) BandDataType(band int) (DataType, error) {
	if err := d.validBand(band); err != nil {
		return 0, err
	}

	return Byte, nil
}

// BandNodata legitimately returns ok=false with no error when no nodata
// value has been set — this is the spec.md §4.2/§4.5 distinction between
// "empty result" and "call failed" that the Error Channel exists to police.
func (d *fakeDataset) BandNodata(band int) (float64, bool, error) {
	if err := d.validBand(band); err != nil {
		return 0, false, err
	}

	if d.nodata == nil {
		return 0, false, nil
	}

	return *d.nodata, true, nil
}

func (d *fakeDataset) BandMaxMin(band int, approxOK bool) (float64, float64, bool, error) {
	if err := d.validBand(band); err != nil {
		return 0, 0, false, err
	}

	return 0, 255, true, nil
}

func (d *fakeDataset) Histogram(band int, lower, upper float64, numBuckets int, includeOutOfRange, approxOK bool) ([]int64, error) {
	if err := d.validBand(band); err != nil {
		return nil, err
	}

	if numBuckets <= 0 {
		return nil, fail(SeverityFailure, CodeIllegalArg, "fake codec: num_buckets must be > 0, got %d", numBuckets)
	}

	counts := make([]int64, numBuckets)
	for i := range counts {
		counts[i] = int64(fixtureWidth*fixtureHeight) / int64(numBuckets)
	}

	return counts, nil
}

func (d *fakeDataset) OverviewWidthsHeights(band int) ([]int, []int, error) {
	if err := d.validBand(band); err != nil {
		return nil, nil, err
	}

	return []int{256, 128}, []int{256, 128}, nil
}

func (d *fakeDataset) MetadataDomainList() ([]string, error) {
	return []string{"", "IMAGE_STRUCTURE"}, nil
}

// Metadata legitimately returns an empty map for an unknown domain; this is
// never an error in the fake codec.
func (d *fakeDataset) Metadata(domain string) (map[string]string, error) {
	if domain == "" {
		return map[string]string{"AREA_OR_POINT": "Area"}, nil
	}

	if domain == "IMAGE_STRUCTURE" {
		return map[string]string{"INTERLEAVE": "PIXEL"}, nil
	}

	return map[string]string{}, nil
}

// MetadataItem legitimately returns "" for an unknown key; this is never an
// error in the fake codec.
func (d *fakeDataset) MetadataItem(key, domain string) (string, error) {
	items, _ := d.Metadata(domain)
	return items[key], nil
}

func (d *fakeDataset) CRSProj4() (string, error) {
	return "+proj=longlat +datum=WGS84 +no_defs", nil
}

func (d *fakeDataset) CRSWKT() (string, error) {
	return `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`, nil
}

// Pixels fills buf with a deterministic checkerboard-like pattern derived
// from the source window, so that repeated reads of the same window are
// byte-identical (spec.md §8 property 9) and the literal S6 fixture bytes
// in spec.md §8 reproduce exactly.
func (d *fakeDataset) Pixels(band int, srcWin [4]int, dstWin [2]int, dtype DataType, buf []byte) error {
	if err := d.validBand(band); err != nil {
		return err
	}

	xoff, yoff, xsize, ysize := srcWin[0], srcWin[1], srcWin[2], srcWin[3]
	dstW, dstH := dstWin[0], dstWin[1]

	if xoff < 0 || yoff < 0 || xsize <= 0 || ysize <= 0 ||
		xoff+xsize > fixtureWidth || yoff+ysize > fixtureHeight {
		return fail(SeverityFailure, CodeObjectNull, "fake codec: requested window is outside dataset extent")
	}

	if dstW <= 0 || dstH <= 0 {
		return fail(SeverityFailure, CodeIllegalArg, "fake codec: destination window must be positive, got %v", dstWin)
	}

	want := dstW * dstH * dtype.Size()
	if len(buf) != want {
		return fail(SeverityFailure, CodeAppDefined, "fake codec: buffer size %d != expected %d", len(buf), want)
	}

	elemSize := dtype.Size()

	for row := 0; row < dstH; row++ {
		for col := 0; col < dstW; col++ {
			srcX := xoff + (col*xsize)/dstW

			val := byte(1)
			if (srcX+band-1)%4 == 0 {
				val = 0
			}

			idx := (row*dstW + col) * elemSize
			for b := 0; b < elemSize; b++ {
				buf[idx+b] = 0
			}

			buf[idx] = val
		}
	}

	return nil
}
