package main

import (
	"fmt"
	"image"
	_ "image/png" // register decoder
	"io"
	"os"

	"github.com/urfave/cli"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/insitu"
)

func entropyAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("entropy: no image files given", 2)
	}
	fn, err := insitu.EntropyByName(c.String("measure"))
	if err != nil {
		return err
	}
	return printEntropies(os.Stdout, fn, c.Args())
}

// printEntropies writes one line per image: path, size and entropy.
func printEntropies(w io.Writer, fn insitu.EntropyFunc, paths []string) error {
	p := message.NewPrinter(language.English)
	for _, path := range paths {
		fb, err := loadImage(path)
		if err != nil {
			return err
		}
		_, _ = p.Fprintf(w, "%s\t%dx%d\t%d px\t%.4f\n", path, fb.Width, fb.Height, fb.Foreground(), fn(fb))
	}
	return nil
}

func loadImage(path string) (*insitu.FrameBuffer, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return insitu.FromImage(img), nil
}
