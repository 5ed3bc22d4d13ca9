// Package payload defines the image record carried through the pipeline.
package payload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/c360/pixelflow/errors"
)

// Image is a decoded raster with interleaved 8-bit channels.
// Pix holds Height rows of Width pixels, each pixel Channels bytes long.
type Image struct {
	ID         uuid.UUID
	Name       string
	Width      int
	Height     int
	Channels   int
	Pix        []byte
	ProducerID int
}

// New allocates an image with a zeroed pixel buffer.
func New(name string, width, height, channels int) *Image {
	return &Image{
		ID:       uuid.New(),
		Name:     name,
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (img *Image) Validate() error {
	if img == nil {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Image", "Validate", "nil image")
	}
	if img.Pix == nil {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Image", "Validate", "missing pixel data")
	}
	if img.Width <= 0 || img.Height <= 0 || img.Channels <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %dx%dx%d", errors.ErrInvalidPayload, img.Width, img.Height, img.Channels),
			"Image", "Validate", "dimension check")
	}
	if len(img.Pix) != img.Size() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: have %d bytes, want %d", errors.ErrInvalidPayload, len(img.Pix), img.Size()),
			"Image", "Validate", "buffer length check")
	}
	return nil
}

// Size returns Width*Height*Channels.
func (img *Image) Size() int {
	return img.Width * img.Height * img.Channels
}

// Clone returns a deep copy. The copy shares no memory with img.
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	c := *img
	if img.Pix != nil {
		c.Pix = make([]byte, len(img.Pix))
		copy(c.Pix, img.Pix)
	}
	return &c
}

// BaseName returns the final path element of Name.
func (img *Image) BaseName() string {
	return filepath.Base(img.Name)
}

// Ext returns the lower-cased extension of Name, including the dot.
func (img *Image) Ext() string {
	return strings.ToLower(filepath.Ext(img.Name))
}

// String implements fmt.Stringer.
func (img *Image) String() string {
	return fmt.Sprintf("%s (%dx%dx%d)", img.BaseName(), img.Width, img.Height, img.Channels)
}
