// Package transform holds the in-place pixel operations applied by consumers.
package transform

import (
	"fmt"

	"github.com/c360/pixelflow/payload"
)

// Factors used by the consumer pipeline unless configured otherwise.
const (
	DefaultBrightness = 1.2
	DefaultContrast   = 1.3
)

// Func modifies an image in place.
type Func func(img *payload.Image)

// Step is a named transform.
type Step struct {
	Name  string
	Apply Func
}

// Pipeline applies its steps in order.
type Pipeline []Step

// Apply runs every step on img. A nil image or one without pixels is left alone.
func (p Pipeline) Apply(img *payload.Image) {
	if img == nil || img.Pix == nil {
		return
	}
	for _, s := range p {
		s.Apply(img)
	}
}

// Names returns the step names in order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}

// Default returns grayscale, invert, brightness and contrast in that order.
func Default(brightness, contrast float64) Pipeline {
	return Pipeline{
		{Name: "grayscale", Apply: Grayscale},
		{Name: "invert", Apply: Invert},
		{Name: fmt.Sprintf("brightness x%.2g", brightness), Apply: Brightness(brightness)},
		{Name: fmt.Sprintf("contrast x%.2g", contrast), Apply: Contrast(contrast)},
	}
}

// Grayscale replaces R, G and B of every pixel with 0.299R + 0.587G + 0.114B.
// Images with fewer than 3 channels are left unchanged. Extra channels such
// as alpha are kept.
func Grayscale(img *payload.Image) {
	if img == nil || img.Pix == nil || img.Channels < 3 {
		return
	}
	n := img.Width * img.Height
	for i := 0; i < n; i++ {
		px := img.Pix[i*img.Channels : i*img.Channels+3]
		gray := byte(0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2]))
		px[0], px[1], px[2] = gray, gray, gray
	}
}

// Invert replaces every byte v with 255 - v.
func Invert(img *payload.Image) {
	if img == nil {
		return
	}
	for i, v := range img.Pix {
		img.Pix[i] = 255 - v
	}
}

// Brightness scales every byte by factor, clamped to [0, 255].
func Brightness(factor float64) Func {
	return func(img *payload.Image) {
		if img == nil {
			return
		}
		for i, v := range img.Pix {
			img.Pix[i] = clamp(int(float64(v) * factor))
		}
	}
}

// Contrast stretches every byte around 128 by factor, clamped to [0, 255].
func Contrast(factor float64) Func {
	return func(img *payload.Image) {
		if img == nil {
			return
		}
		for i, v := range img.Pix {
			img.Pix[i] = clamp(int((float64(v)-128)*factor + 128))
		}
	}
}

func clamp(v int) byte {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return byte(v)
}
