package output

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// labelMargin is the distance of a caption from the image corner in pixels.
const labelMargin = 4

// Labeler draws a one-line caption onto output images. The caption is
// measured with HarfBuzz shaping so it can be right-aligned, and drawn with
// the Go Regular face.
//
// A Labeler is not safe for concurrent use.
type Labeler struct {
	size   float64
	face   font.Face
	shape  *gotext.Face
	shaper shaping.HarfbuzzShaper
}

// NewLabeler returns a labeler drawing captions of the given point size.
func NewLabeler(size float64) (*Labeler, error) {
	otf, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label face: %w", err)
	}
	shape, err := gotext.ParseTTF(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font for shaping: %w", err)
	}
	return &Labeler{size: size, face: face, shape: shape}, nil
}

// Measure returns the advance width of text in 26.6 fixed point.
func (l *Labeler) Measure(text string) fixed.Int26_6 {
	if text == "" {
		return 0
	}
	runes := []rune(text)
	out := l.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      l.shape,
		Size:      fixed.Int26_6(l.size * 64),
		Script:    language.Latin,
		Language:  language.NewLanguage("en"),
	})
	return out.Advance
}

// Draw writes text right-aligned at the bottom of dst.
func (l *Labeler) Draw(dst draw.Image, text string, c color.Color) {
	b := dst.Bounds()
	x := fixed.I(b.Max.X-labelMargin) - l.Measure(text)
	if x < fixed.I(b.Min.X) {
		x = fixed.I(b.Min.X)
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: l.face,
		Dot:  fixed.Point26_6{X: x, Y: fixed.I(b.Max.Y - labelMargin)},
	}
	d.DrawString(text)
}
