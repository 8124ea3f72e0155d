package rasterpool_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/relief-labs/rasterpool/pkg/codec"
	"github.com/relief-labs/rasterpool/pkg/rasterpool"
)

// Test_ResultError_Maps_Known_Codes boundary: the convenience error wrapper
// recognizes every sentinel-bearing code and falls back to a wrapped
// generic error for anything else.
func Test_ResultError_Maps_Known_Codes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		result int
		target error
	}{
		{"Success", 3, nil},
		{"OpenFailed", -int(codec.CodeOpenFailed), rasterpool.ErrOpenFailed},
		{"FileIO", -int(codec.CodeFileIO), rasterpool.ErrFileIO},
		{"AttemptsExceeded", -int(rasterpool.AttemptsExceeded), rasterpool.ErrAttemptsExceeded},
		{"OtherCodecError", -int(codec.CodeIllegalArg), rasterpool.ErrCodec},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := rasterpool.ResultError(tc.result)

			if tc.target == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tc.target)
		})
	}
}

// Test_Engine_GetWidthHeight_Is_Idempotent round-trip: repeated calls
// against the same token return identical geometry (spec.md §8 property 9).
func Test_Engine_GetWidthHeight_Is_Idempotent(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	w1, h1, n1 := engine.GetWidthHeight(token, rasterpool.Request{}, rasterpool.Source)
	require.Greater(t, n1, 0)

	w2, h2, n2 := engine.GetWidthHeight(token, rasterpool.Request{}, rasterpool.Source)
	require.Greater(t, n2, 0)

	require.Equal(t, w1, w2)
	require.Equal(t, h1, h2)
}

// Test_Engine_GetPixels_Is_Deterministic round-trip: the same window read
// twice produces byte-identical output.
func Test_Engine_GetPixels_Is_Deterministic(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	buf1 := make([]byte, 8)
	n1 := engine.GetPixels(token, rasterpool.Request{}, rasterpool.Warped, 1, [4]int{33, 42, 100, 100}, [2]int{4, 2}, codec.Byte, buf1)
	require.Greater(t, n1, 0)

	buf2 := make([]byte, 8)
	n2 := engine.GetPixels(token, rasterpool.Request{}, rasterpool.Warped, 1, [4]int{33, 42, 100, 100}, [2]int{4, 2}, codec.Byte, buf2)
	require.Greater(t, n2, 0)

	require.Equal(t, buf1, buf2)
}

// Test_Engine_Contains_Reflects_Pool_Residency boundary: Contains/CopyCount
// are false/zero before the first call touches a token.
func Test_Engine_Contains_Reflects_Pool_Residency(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	require.False(t, engine.Contains(token))
	require.Equal(t, 0, engine.CopyCount(token))

	_, _, n := engine.GetWidthHeight(token, rasterpool.Request{}, rasterpool.Source)
	require.Greater(t, n, 0)

	require.True(t, engine.Contains(token))
	require.Equal(t, 1, engine.CopyCount(token))
}

// Test_Engine_Contains_False_For_Unknown_Token boundary: an unknown token
// never reports residency, even after other tokens have been used.
func Test_Engine_Contains_False_For_Unknown_Token(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	_ = engine.GetToken("fixture.tif", nil)

	require.False(t, engine.Contains(rasterpool.Token(0xabad1dea)))
}

// Test_Engine_ZeroAttempts_And_NegativeAttempts_Both_Mean_Unbounded
// boundary (spec.md §8 property 11): Attempts == 0 and Attempts < 0 must
// behave identically — both let the call run to success or a real error
// without an artificial attempt ceiling.
func Test_Engine_ZeroAttempts_And_NegativeAttempts_Both_Mean_Unbounded(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	_, _, nZero := engine.GetWidthHeight(token, rasterpool.Request{Attempts: 0}, rasterpool.Source)
	_, _, nNeg := engine.GetWidthHeight(token, rasterpool.Request{Attempts: -7}, rasterpool.Source)

	require.Greater(t, nZero, 0)
	require.Greater(t, nNeg, 0)
}

// Test_Engine_ZeroCopies_Behaves_As_One boundary (spec.md §8 property 12):
// Copies == 0 is equivalent to Copies == 1.
func Test_Engine_ZeroCopies_Behaves_As_One(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	_, _, n := engine.GetWidthHeight(token, rasterpool.Request{Copies: 0}, rasterpool.Source)
	require.Greater(t, n, 0)

	require.Equal(t, 1, engine.CopyCount(token))
}

// Test_Engine_GetTransform_And_Histogram_Are_Stable_Across_Copies round-trip
// (spec.md §8 property 9): two fresh copies of the same key opened under
// Copies > 1 must report byte-identical geometry, since every copy opens
// the same URI with the same options.
func Test_Engine_GetTransform_And_Histogram_Are_Stable_Across_Copies(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	req := rasterpool.Request{Copies: 3}

	transform1, n1 := engine.GetTransform(token, req, rasterpool.Warped)
	require.Greater(t, n1, 0)

	transform2, n2 := engine.GetTransform(token, req, rasterpool.Warped)
	require.Greater(t, n2, 0)

	if diff := cmp.Diff(transform1, transform2); diff != "" {
		t.Errorf("transform differs across copies (-first +second):\n%s", diff)
	}

	counts1, n3 := engine.GetHistogram(token, req, rasterpool.Warped, 1, 0, 255, 4, false, true)
	require.Greater(t, n3, 0)

	counts2, n4 := engine.GetHistogram(token, req, rasterpool.Warped, 1, 0, 255, 4, false, true)
	require.Greater(t, n4, 0)

	if diff := cmp.Diff(counts1, counts2); diff != "" {
		t.Errorf("histogram differs across copies (-first +second):\n%s", diff)
	}
}

// Test_Engine_GetNoOp_Succeeds_Without_Touching_Data property (spec.md §4.2):
// noop acquires and releases a handle like any other operation, reporting a
// positive touched-copy count, without needing any raster data to back it.
func Test_Engine_GetNoOp_Succeeds_Without_Touching_Data(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	n := engine.GetNoOp(token, rasterpool.Request{}, rasterpool.Source)
	require.Greater(t, n, 0)
}

// Test_Engine_Every_Operation_Reports_Attempted_Copies_On_Success property:
// every successful data call returns a strictly positive attempt count, per
// the spec.md §7 raw ABI convention.
func Test_Engine_Every_Operation_Reports_Attempted_Copies_On_Success(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	token := engine.GetToken("fixture.tif", nil)

	_, n1 := engine.GetBandCount(token, rasterpool.Request{}, rasterpool.Source)
	require.Greater(t, n1, 0)

	_, _, n2 := engine.GetBlockSize(token, rasterpool.Request{}, rasterpool.Source, 1)
	require.Greater(t, n2, 0)

	_, n3 := engine.GetCRSProj4(token, rasterpool.Request{}, rasterpool.Warped)
	require.Greater(t, n3, 0)

	domains, n4 := engine.GetMetadataDomainList(token, rasterpool.Request{}, rasterpool.Source)
	require.Greater(t, n4, 0)
	require.NotEmpty(t, domains)
}
