package software

import (
	"errors"
	"testing"

	"github.com/gogpu/fluid/internal/field"
	"github.com/gogpu/fluid/internal/kernel"
)

func TestRunFillAndRead(t *testing.T) {
	e := New(Config{Format: field.Float32})
	defer e.Close()

	f, err := e.Alloc("f", 3, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(kernel.Fill, f, kernel.Uniforms{"value": kernel.Vec4(1, 2, 3, 4)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := e.ReadField(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3*2*4 {
		t.Fatalf("len = %d, want 24", len(got))
	}
	for i := 0; i < len(got); i += 4 {
		if got[i] != 1 || got[i+1] != 2 || got[i+2] != 3 || got[i+3] != 4 {
			t.Fatalf("texel %d = %v", i/4, got[i:i+4])
		}
	}
}

func TestRunMasksChannels(t *testing.T) {
	e := New(Config{Format: field.Float32})
	defer e.Close()

	f, _ := e.Alloc("velocity", 2, 2, 2)
	if err := e.Run(kernel.Fill, f, kernel.Uniforms{"value": kernel.Vec4(5, 6, 7, 8)}); err != nil {
		t.Fatal(err)
	}
	got, _ := e.ReadField(f)
	if got[0] != 5 || got[1] != 6 || got[2] != 0 || got[3] != 1 {
		t.Errorf("two-channel texel = %v, want (5, 6, 0, 1)", got[:4])
	}
}

func TestRunQuantizesToFormat(t *testing.T) {
	e := New(Config{Format: field.Float16})
	defer e.Close()

	f, _ := e.Alloc("f", 1, 1, 4)
	if err := e.Run(kernel.Fill, f, kernel.Uniforms{"value": kernel.Vec4(0.1, 0, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	got, _ := e.ReadField(f)
	want := field.Quantize(field.Float16, field.Texel{0.1})
	if got[0] != want[0] || got[0] == 0.1 {
		t.Errorf("stored %v, want half-precision %v", got[0], want[0])
	}
}

func TestStorageLimitDegradesFormat(t *testing.T) {
	// 4x4 float32 needs 256 bytes; float16 needs 128.
	e := New(Config{Format: field.Float32, StorageLimit: 128})
	defer e.Close()

	f, err := e.Alloc("f", 4, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if f.Format() != field.Float16 {
		t.Errorf("format = %v, want float16", f.Format())
	}
	_, err = e.Alloc("big", 64, 64, 4)
	if !errors.Is(err, field.ErrFieldTooLarge) {
		t.Errorf("err = %v, want ErrFieldTooLarge", err)
	}
}

func TestRunErrors(t *testing.T) {
	e := New(Config{Format: field.Float32})
	defer e.Close()
	other := New(Config{Format: field.Float32})
	defer other.Close()

	mine, _ := e.Alloc("mine", 2, 2, 1)
	theirs, _ := other.Alloc("theirs", 2, 2, 1)

	err := e.Run(kernel.Scale, mine, kernel.Uniforms{"uTexture": kernel.Tex(theirs), "value": kernel.Float(1)})
	if !errors.Is(err, kernel.ErrForeignField) {
		t.Errorf("foreign input: err = %v", err)
	}
	err = e.Run(kernel.Fill, nil, kernel.Uniforms{"value": kernel.Vec4(0, 0, 0, 0)})
	if !errors.Is(err, kernel.ErrNoSurface) {
		t.Errorf("no surface: err = %v", err)
	}
	mine.Release()
	if _, err := e.ReadField(mine); !errors.Is(err, kernel.ErrReleased) {
		t.Errorf("released read: err = %v", err)
	}
}

func TestSurfaceReadPixels(t *testing.T) {
	e := New(Config{Format: field.Float32})
	defer e.Close()

	if err := e.ResizeSurface(2, 2); err != nil {
		t.Fatal(err)
	}
	dye, _ := e.Alloc("dye", 2, 2, 4)
	if err := e.WriteField(dye, []float32{
		1, 0, 0, 0, 1, 0, 0, 0, // row 0
		0, 0, 1, 0, 0, 0, 1, 0, // row 1
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(kernel.Display, nil, kernel.Uniforms{"uTexture": kernel.Tex(dye)}); err != nil {
		t.Fatal(err)
	}
	pix := make([]byte, 16)
	if err := e.ReadPixels(pix); err != nil {
		t.Fatal(err)
	}
	// Dye row 1 (blue) is presented first.
	want := []byte{0, 0, 255, 255, 0, 0, 255, 255, 255, 0, 0, 255, 255, 0, 0, 255}
	for i := range want {
		if pix[i] != want[i] {
			t.Fatalf("pixels = %v, want %v", pix, want)
		}
	}
	if err := e.ReadPixels(make([]byte, 4)); err == nil {
		t.Error("short buffer should fail")
	}
}

func TestResizeSurfaceKeepsSameSize(t *testing.T) {
	e := New(Config{})
	defer e.Close()

	if err := e.ResizeSurface(4, 3); err != nil {
		t.Fatal(err)
	}
	s := e.Surface()
	if err := e.ResizeSurface(4, 3); err != nil {
		t.Fatal(err)
	}
	if e.Surface() != s {
		t.Error("same-size resize should keep the surface")
	}
	if err := e.ResizeSurface(5, 3); err != nil {
		t.Fatal(err)
	}
	if !s.Released() || e.Surface().Width() != 5 {
		t.Error("resize should replace and release the old surface")
	}
	if err := e.ResizeSurface(0, 3); !errors.Is(err, field.ErrInvalidSize) {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

func TestClosedExecutor(t *testing.T) {
	e := New(Config{})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := e.Alloc("f", 1, 1, 1); err == nil {
		t.Error("Alloc after Close should fail")
	}
}

func TestRunBandsMatchSingleWorker(t *testing.T) {
	const w, h = 160, 96
	values := make([]float32, w*h*4)
	for i := range values {
		values[i] = float32((i*7919)%997)/997 - 0.5
	}

	curl := func(workers int) []float32 {
		t.Helper()
		e := New(Config{Format: field.Float32, Workers: workers})
		defer e.Close()
		v, _ := e.Alloc("velocity", w, h, 2)
		c, _ := e.Alloc("curl", w, h, 1)
		if err := e.WriteField(v, values); err != nil {
			t.Fatal(err)
		}
		if err := e.Run(kernel.Curl, c, kernel.Uniforms{"uVelocity": kernel.Tex(v)}); err != nil {
			t.Fatal(err)
		}
		got, err := e.ReadField(c)
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	serial, banded := curl(1), curl(4)
	for i := range serial {
		if serial[i] != banded[i] {
			t.Fatalf("value %d: 1 worker = %v, 4 workers = %v", i, serial[i], banded[i])
		}
	}
}

func TestDefaultStorageLimit(t *testing.T) {
	e := New(Config{Format: field.Float32})
	defer e.Close()

	// 65536^2 texels cannot be stored even as unorm8 under the WebGPU
	// default binding limit; Alloc must refuse before allocating.
	if _, err := e.Alloc("dye", 1<<16, 1<<16, 4); !errors.Is(err, field.ErrFieldTooLarge) {
		t.Errorf("Alloc(65536x65536) = %v, want ErrFieldTooLarge", err)
	}
	if err := e.ResizeSurface(1<<16, 1<<16); !errors.Is(err, field.ErrFieldTooLarge) {
		t.Errorf("ResizeSurface(65536x65536) = %v, want ErrFieldTooLarge", err)
	}

	f, err := e.Alloc("dye", 2048, 2048, 4)
	if err != nil {
		t.Fatalf("Alloc(2048x2048) = %v", err)
	}
	if f.Format() != field.Float32 {
		t.Errorf("2048x2048 format = %v, want float32 within the default limit", f.Format())
	}
}
