// Package output writes the images emitted by the controller to disk.
//
// File names are built from the fields of an insitu.EmittedImage:
//
//	<base>_<step>_<candidate>_<level>_<route>_<space>.<ext>
//
// with every field zero-padded to six digits, so a lexical sort of a
// directory orders images by step first.
package output

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/insitu"
)

// Format is an image encoding.
type Format string

// Supported formats.
const (
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case PNG, BMP, TIFF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: output format %q", insitu.ErrConfig, s)
	}
}

// Encode writes img to w in format f.
func (f Format) Encode(w io.Writer, img image.Image) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return fmt.Errorf("%w: output format %q", insitu.ErrConfig, string(f))
	}
}

// Filename returns the file name of img.
func Filename(base string, img insitu.EmittedImage, f Format) string {
	return fmt.Sprintf("%s_%06d_%06d_%06d_%06d_%06d.%s",
		base, img.Step, img.Candidate, img.Level, img.Route, img.Space, f)
}

// Options configures a Writer.
type Options struct {
	Dir    string
	Base   string
	Format Format
	// Label draws a caption with the step, candidate and entropy.
	Label bool
	// Depth also writes the depth plane as a grayscale image.
	Depth bool
}

// Writer is an insitu.ImageSink that encodes images into a directory.
type Writer struct {
	opts    Options
	labeler *Labeler
	written int

	extent      gputypes.Extent3D
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
}

var _ insitu.ImageSink = (*Writer)(nil)

// NewWriter creates the output directory and returns a writer.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Format == "" {
		opts.Format = PNG
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.Base == "" {
		opts.Base = "output"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	w := &Writer{opts: opts}
	if opts.Label {
		l, err := NewLabeler(12)
		if err != nil {
			return nil, err
		}
		w.labeler = l
	}
	return w, nil
}

// Written returns the number of color images written.
func (w *Writer) Written() int { return w.written }

// Layout returns the extent and attachment formats of the images written.
// ok is false before the first image.
func (w *Writer) Layout() (extent gputypes.Extent3D, colorFormat, depthFormat gputypes.TextureFormat, ok bool) {
	return w.extent, w.colorFormat, w.depthFormat, w.written > 0
}

// Emit encodes one image, and its depth plane when enabled.
func (w *Writer) Emit(img insitu.EmittedImage) error {
	if img.Frame == nil {
		return nil
	}
	if err := img.Frame.Validate(); err != nil {
		return err
	}
	extent := img.Frame.Extent()
	if w.written > 0 && extent != w.extent {
		return fmt.Errorf("%w: %dx%d image in a %dx%d run",
			insitu.ErrFrameBufferSize, extent.Width, extent.Height, w.extent.Width, w.extent.Height)
	}

	rgba := img.Frame.ToImage()
	if w.labeler != nil {
		w.labeler.Draw(rgba, caption(img), color.White)
	}
	name := Filename(w.opts.Base, img, w.opts.Format)
	if err := w.save(name, rgba); err != nil {
		return err
	}
	if w.written == 0 {
		w.extent = extent
		w.colorFormat = img.Frame.Format()
		w.depthFormat = img.Frame.DepthFormat()
	}
	w.written++

	if w.opts.Depth {
		depthName := Filename(w.opts.Base+"_depth", img, w.opts.Format)
		if err := w.save(depthName, img.Frame.DepthImage()); err != nil {
			return err
		}
	}
	insitu.Logger().Debug("image written", "file", name)
	return nil
}

func (w *Writer) save(name string, img image.Image) error {
	path := filepath.Join(w.opts.Dir, name)
	f, err := os.Create(path) //nolint:gosec // path is built from configured output dir
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := w.opts.Format.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return f.Close()
}

func caption(img insitu.EmittedImage) string {
	if img.Candidate == insitu.PlaybackCandidate {
		return fmt.Sprintf("step %d  route %d", img.Step, img.Route)
	}
	return fmt.Sprintf("step %d  candidate %d  level %d  H=%.3f", img.Step, img.Candidate, img.Level, img.Entropy)
}
