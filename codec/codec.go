// Package codec converts between image files and payload.Image rasters.
package codec

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register gif decoder
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/payload"
)

// DefaultJPEGQuality matches the output quality of the original tool.
const DefaultJPEGQuality = 90

// Format is an output encoding.
type Format int

const (
	// PNG is lossless and the fallback for unknown extensions.
	PNG Format = iota
	// JPEG is lossy.
	JPEG
	// BMP is uncompressed.
	BMP
	// TIFF is lossless.
	TIFF
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// FormatFor picks the output format from name's extension, case-insensitive.
// Unknown or missing extensions fall back to PNG.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return JPEG
	case ".bmp":
		return BMP
	case ".tif", ".tiff":
		return TIFF
	default:
		return PNG
	}
}

// Decoder loads an image by path.
type Decoder interface {
	Decode(path string) (*payload.Image, error)
}

// Encoder writes an image in the given format.
type Encoder interface {
	Encode(w io.Writer, img *payload.Image, format Format) error
}

// Codec is the file-backed Decoder and Encoder.
type Codec struct {
	JPEGQuality int
}

var (
	_ Decoder = (*Codec)(nil)
	_ Encoder = (*Codec)(nil)
)

// New returns a Codec with the default JPEG quality.
func New() *Codec {
	return &Codec{JPEGQuality: DefaultJPEGQuality}
}

// Decode reads the file at path and returns a 3-channel RGB image named path.
// Any failure is reported as errors.ErrLoadFailed.
func (c *Codec) Decode(path string) (*payload.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(errors.Join(errors.ErrLoadFailed, err), "Codec", "Decode", "open file")
	}
	defer f.Close()

	return c.DecodeReader(bufio.NewReader(f), path)
}

// DecodeReader decodes any registered format from r.
func (c *Codec) DecodeReader(r io.Reader, name string) (*payload.Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.WrapInvalid(errors.Join(errors.ErrLoadFailed, err), "Codec", "Decode",
			fmt.Sprintf("decode %s", filepath.Base(name)))
	}
	return FromImage(src, name), nil
}

// FromImage flattens src into a 3-channel RGB payload. Alpha is dropped.
func FromImage(src image.Image, name string) *payload.Image {
	b := src.Bounds()
	img := payload.New(name, b.Dx(), b.Dy(), 3)

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}
	return img
}

// ToImage builds a standard library image from a 1 to 4 channel payload.
// One channel maps to gray, two to gray plus alpha, three to RGB and four to RGBA.
func ToImage(img *payload.Image) (image.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	ch := img.Channels

	switch ch {
	case 1:
		gray := image.NewGray(rect)
		copy(gray.Pix, img.Pix)
		return gray, nil
	case 2, 3, 4:
		out := image.NewNRGBA(rect)
		n := img.Width * img.Height
		for i := 0; i < n; i++ {
			src := img.Pix[i*ch : i*ch+ch]
			dst := out.Pix[i*4 : i*4+4]
			switch ch {
			case 2:
				dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], src[1]
			case 3:
				dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 255
			case 4:
				copy(dst, src)
			}
		}
		return out, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d channels", errors.ErrInvalidPayload, ch),
			"Codec", "ToImage", "channel check")
	}
}

// Encode writes img to w. Any failure is reported as errors.ErrEncodeFailed.
func (c *Codec) Encode(w io.Writer, img *payload.Image, format Format) error {
	src, err := ToImage(img)
	if err != nil {
		return errors.Wrap(errors.Join(errors.ErrEncodeFailed, err), "Codec", "Encode", "convert payload")
	}

	switch format {
	case JPEG:
		quality := c.JPEGQuality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(w, src, &jpeg.Options{Quality: quality})
	case BMP:
		err = bmp.Encode(w, src)
	case TIFF:
		err = tiff.Encode(w, src, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(w, src)
	}
	if err != nil {
		return errors.WrapInvalid(errors.Join(errors.ErrEncodeFailed, err), "Codec", "Encode", format.String())
	}
	return nil
}
