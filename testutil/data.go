package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
)

// NewImage returns a w x h RGB image filled with a gradient.
func NewImage(name string, w, h int) *payload.Image {
	img := payload.New(name, w, h, 3)
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	return img
}

// WritePNGs writes n small PNG files named img-<i>.png into dir and returns
// their paths.
func WritePNGs(t testing.TB, dir string, n int) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", dir, err)
	}

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				src.Set(x, y, color.NRGBA{R: uint8(i * 10), G: uint8(x * 40), B: uint8(y * 60), A: 255})
			}
		}

		p := filepath.Join(dir, fmt.Sprintf("img-%d.png", i))
		f, err := os.Create(p)
		if err != nil {
			t.Fatalf("create %s: %v", p, err)
		}
		if err := png.Encode(f, src); err != nil {
			t.Fatalf("encode %s: %v", p, err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close %s: %v", p, err)
		}
		paths = append(paths, p)
	}
	return paths
}

// FakeDecoder serves images from memory. Names listed in Fail return a load error.
type FakeDecoder struct {
	mu     sync.Mutex
	Images map[string]*payload.Image
	Fail   map[string]bool
	calls  int
}

// NewFakeDecoder creates a decoder producing a fresh 2x2 image for any name.
func NewFakeDecoder() *FakeDecoder {
	return &FakeDecoder{Images: map[string]*payload.Image{}, Fail: map[string]bool{}}
}

// Decode returns a clone of the registered image or a generated one.
func (d *FakeDecoder) Decode(path string) (*payload.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.Fail[path] {
		return nil, errors.WrapInvalid(errors.ErrLoadFailed, "FakeDecoder", "Decode", path)
	}
	if img, ok := d.Images[path]; ok {
		return img.Clone(), nil
	}
	return NewImage(path, 2, 2), nil
}

// Calls returns how many decodes were attempted.
func (d *FakeDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
