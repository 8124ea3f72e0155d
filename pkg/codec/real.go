//go:build rasterpool_real

package codec

import "errors"

// errRealUnimplemented is returned by every [Real] method. The cgo/JNI
// binding shim that would marshal calls into the actual raster library is
// explicitly out of scope for this module (spec.md §1); Real exists so the
// contract it must satisfy is pinned down in one place ([Provider],
// [Dataset]) rather than left implicit. Wiring a true implementation is a
// matter of replacing the bodies below, not redesigning pkg/rasterpool.
var errRealUnimplemented = errors.New("codec: real binding not built into this module")

// Real is the production [Provider], intended to be backed by cgo calls into
// the downstream raster library. It is gated behind the rasterpool_real
// build tag so that a default build of this module never needs a C
// toolchain or the library's headers.
type Real struct{}

// NewReal returns the production codec provider.
func NewReal() *Real { return &Real{} }

func (r *Real) OpenSource(uri string) (Dataset, error)              { return nil, errRealUnimplemented }
func (r *Real) Warp(source Dataset, options []string) (Dataset, error) {
	return nil, errRealUnimplemented
}
