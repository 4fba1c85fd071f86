package insitu

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/gogpu/gputypes"
)

// FarDepth is the depth value of the far plane. Pixels at this depth
// carry no geometry and count as background.
const FarDepth float32 = 1.0

// FrameBuffer is a color and depth raster produced by one render call.
//
// Color is RGBA8, 4 bytes per pixel. Depth is one float32 per pixel in
// [0, 1] where 1 is the far plane. Rows are stored top to bottom.
type FrameBuffer struct {
	Width  int
	Height int
	Color  []uint8
	Depth  []float32
}

// NewFrameBuffer creates a frame buffer cleared to transparent black at the
// far plane.
func NewFrameBuffer(width, height int) *FrameBuffer {
	fb := &FrameBuffer{
		Width:  width,
		Height: height,
		Color:  make([]uint8, width*height*4),
		Depth:  make([]float32, width*height),
	}
	for i := range fb.Depth {
		fb.Depth[i] = FarDepth
	}
	return fb
}

// Validate reports whether the buffer lengths agree with its dimensions.
func (fb *FrameBuffer) Validate() error {
	if fb.Width < 0 || fb.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrFrameBufferSize, fb.Width, fb.Height)
	}
	n := fb.Width * fb.Height
	if len(fb.Color) != 4*n || len(fb.Depth) != n {
		return fmt.Errorf("%w: %dx%d with %d color bytes and %d depth values",
			ErrFrameBufferSize, fb.Width, fb.Height, len(fb.Color), len(fb.Depth))
	}
	return nil
}

// Format returns the color attachment format of the buffer.
func (fb *FrameBuffer) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// DepthFormat returns the depth attachment format of the buffer.
func (fb *FrameBuffer) DepthFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatDepth32Float
}

// Extent returns the buffer size as a 2D texture extent.
func (fb *FrameBuffer) Extent() gputypes.Extent3D {
	return gputypes.NewExtent2D(uint32(fb.Width), uint32(fb.Height)) //nolint:gosec // sizes are non-negative
}

// Clear fills the color plane with c and resets depth to the far plane.
func (fb *FrameBuffer) Clear(c gputypes.Color) {
	r := toByte(c.R)
	g := toByte(c.G)
	b := toByte(c.B)
	a := toByte(c.A)

	for i := 0; i < len(fb.Color); i += 4 {
		fb.Color[i+0] = r
		fb.Color[i+1] = g
		fb.Color[i+2] = b
		fb.Color[i+3] = a
	}
	for i := range fb.Depth {
		fb.Depth[i] = FarDepth
	}
}

// SetPixel writes a color and depth sample if the coordinates are in bounds.
func (fb *FrameBuffer) SetPixel(x, y int, c color.RGBA, depth float32) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	i := y*fb.Width + x
	fb.Color[4*i+0] = c.R
	fb.Color[4*i+1] = c.G
	fb.Color[4*i+2] = c.B
	fb.Color[4*i+3] = c.A
	fb.Depth[i] = depth
}

// DepthAt returns the depth at (x, y), or FarDepth out of bounds.
func (fb *FrameBuffer) DepthAt(x, y int) float32 {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return FarDepth
	}
	return fb.Depth[y*fb.Width+x]
}

// Crop copies the rectangle (x, y, w, h) into a new buffer. The rectangle is
// clipped to the buffer bounds; an empty intersection yields a 0x0 buffer.
func (fb *FrameBuffer) Crop(x, y, w, h int) *FrameBuffer {
	r := image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, fb.Width, fb.Height))
	out := &FrameBuffer{
		Width:  r.Dx(),
		Height: r.Dy(),
		Color:  make([]uint8, r.Dx()*r.Dy()*4),
		Depth:  make([]float32, r.Dx()*r.Dy()),
	}
	for row := 0; row < out.Height; row++ {
		src := (r.Min.Y+row)*fb.Width + r.Min.X
		dst := row * out.Width
		copy(out.Color[4*dst:4*(dst+out.Width)], fb.Color[4*src:4*(src+out.Width)])
		copy(out.Depth[dst:dst+out.Width], fb.Depth[src:src+out.Width])
	}
	return out
}

// Clone returns a deep copy of the buffer.
func (fb *FrameBuffer) Clone() *FrameBuffer {
	return fb.Crop(0, 0, fb.Width, fb.Height)
}

// Foreground returns the number of pixels in front of the far plane.
func (fb *FrameBuffer) Foreground() int {
	n := 0
	for _, d := range fb.Depth {
		if d < FarDepth {
			n++
		}
	}
	return n
}

// ToImage converts the color plane to an image.RGBA.
func (fb *FrameBuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	copy(img.Pix, fb.Color)
	return img
}

// FromImage creates a frame buffer from an image. Every pixel whose alpha is
// non-zero gets depth 0, the rest stay on the far plane.
func FromImage(img image.Image) *FrameBuffer {
	bounds := img.Bounds()
	fb := NewFrameBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < fb.Height; y++ {
		for x := 0; x < fb.Width; x++ {
			c := color.RGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA)
			if c.A == 0 {
				continue
			}
			fb.SetPixel(x, y, c, 0)
		}
	}
	return fb
}

// DepthImage converts the depth plane to a grayscale image where near is
// dark and the far plane is white.
func (fb *FrameBuffer) DepthImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, fb.Width, fb.Height))
	for i, d := range fb.Depth {
		img.Pix[i] = toByte(float64(d))
	}
	return img
}

// SavePNG saves the color plane to a PNG file.
func (fb *FrameBuffer) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return png.Encode(f, fb.ToImage())
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
