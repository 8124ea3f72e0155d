package codec

import "testing"

func Test_OpenSource_Rejects_Unknown_URI(t *testing.T) {
	f := NewFake()

	if _, err := f.OpenSource("no-such-file.tif"); err == nil {
		t.Fatalf("expected error opening unknown URI")
	}
}

func Test_OpenSource_Accepts_Fixture_URI(t *testing.T) {
	f := NewFake()

	ds, err := f.OpenSource(fixtureURI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	width, height, err := ds.WidthHeight()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if width != fixtureWidth || height != fixtureHeight {
		t.Fatalf("got %dx%d, want %dx%d", width, height, fixtureWidth, fixtureHeight)
	}
}

func Test_Warp_Carries_DstNodata_Option_Onto_Warped_Dataset_Only(t *testing.T) {
	f := NewFake()

	source, err := f.OpenSource(fixtureURI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	warped, err := f.Warp(source, []string{"-r", "bilinear", "-dstnodata", "107", "-of", "VRT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, ok, err := warped.(*fakeDataset).BandNodata(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok || value != 107 {
		t.Fatalf("got (%v, %v), want (107, true)", value, ok)
	}

	_, ok, err = source.(*fakeDataset).BandNodata(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok {
		t.Fatalf("source dataset should never see the warp-time nodata override")
	}
}

func Test_Warp_Rejects_Foreign_Dataset(t *testing.T) {
	f := NewFake()

	if _, err := f.Warp(&fakeDataset{}, nil); err != nil {
		t.Fatalf("fakeDataset warping another fakeDataset should succeed: %v", err)
	}

	type foreignDataset struct{ Dataset }

	if _, err := f.Warp(foreignDataset{}, nil); err == nil {
		t.Fatalf("expected error warping a foreign Dataset implementation")
	}
}

func Test_Pixels_Rejects_Band_Out_Of_Range(t *testing.T) {
	f := NewFake()

	ds, _ := f.OpenSource(fixtureURI)

	buf := make([]byte, 8)
	err := ds.Pixels(42, [4]int{0, 0, 4, 2}, [2]int{4, 2}, Byte, buf)

	code, ok := CodeOf(err)
	if !ok || code != CodeIllegalArg {
		t.Fatalf("got (%v, %v), want (%v, true)", code, ok, CodeIllegalArg)
	}
}

func Test_Pixels_Rejects_Window_Outside_Extent(t *testing.T) {
	f := NewFake()

	ds, _ := f.OpenSource(fixtureURI)

	buf := make([]byte, 8)
	err := ds.Pixels(1, [4]int{500, 500, 100, 100}, [2]int{4, 2}, Byte, buf)

	code, ok := CodeOf(err)
	if !ok || code != CodeObjectNull {
		t.Fatalf("got (%v, %v), want (%v, true)", code, ok, CodeObjectNull)
	}
}

func Test_Pixels_Rejects_Wrong_Buffer_Size(t *testing.T) {
	f := NewFake()

	ds, _ := f.OpenSource(fixtureURI)

	buf := make([]byte, 3)
	err := ds.Pixels(1, [4]int{0, 0, 4, 2}, [2]int{4, 2}, Byte, buf)

	code, ok := CodeOf(err)
	if !ok || code != CodeAppDefined {
		t.Fatalf("got (%v, %v), want (%v, true)", code, ok, CodeAppDefined)
	}
}

func Test_Pixels_Checkerboard_Matches_Literal_Fixture_Bytes(t *testing.T) {
	f := NewFake()

	source, _ := f.OpenSource(fixtureURI)
	warped, err := f.Warp(source, []string{"-of", "VRT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]byte, 8)

	if err := warped.Pixels(1, [4]int{33, 42, 100, 100}, [2]int{4, 2}, Byte, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{0x01, 0x01, 0x01, 0x00, 0x01, 0x01, 0x01, 0x00}

	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x (full: % x)", i, buf[i], want[i], buf)
			break
		}
	}
}

func Test_SetErrorHandler_Receives_Raised_Errors(t *testing.T) {
	var got Code

	prev := SetErrorHandler(func(severity Severity, code Code, message string) {
		got = code
	})
	defer SetErrorHandler(prev)

	f := NewFake()

	if _, err := f.OpenSource("missing.tif"); err == nil {
		t.Fatalf("expected error")
	}

	if got != CodeOpenFailed {
		t.Fatalf("error handler saw code %v, want %v", got, CodeOpenFailed)
	}
}
