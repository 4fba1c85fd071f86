// Package composite implements sort-last depth compositing of the partial
// frame buffers rendered by each rank.
//
// Every rank encodes its buffer and sends it to root, which keeps, per
// pixel, the sample nearest to the camera. Ties go to the lower rank.
package composite

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/insitu"
	"github.com/gogpu/insitu/comm"
)

// wireBuffer is the transmitted form of a frame buffer.
type wireBuffer struct {
	Width  int       `msgpack:"w"`
	Height int       `msgpack:"h"`
	Color  []uint8   `msgpack:"color"`
	Depth  []float32 `msgpack:"depth"`
}

// Depth composites by minimum depth over a process group.
type Depth struct {
	comm comm.Comm
}

var _ insitu.Compositor = (*Depth)(nil)

// New returns a depth compositor over c.
func New(c comm.Comm) *Depth {
	return &Depth{comm: c}
}

// Composite gathers every rank's buffer on root and merges them. Root
// receives the merged buffer; other ranks receive nil.
func (d *Depth) Composite(ctx context.Context, local *insitu.FrameBuffer) (*insitu.FrameBuffer, error) {
	if err := local.Validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(&wireBuffer{
		Width:  local.Width,
		Height: local.Height,
		Color:  local.Color,
		Depth:  local.Depth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame buffer: %w", err)
	}

	parts, err := d.comm.Gather(ctx, insitu.Root, data)
	if err != nil {
		return nil, err
	}
	if d.comm.Rank() != insitu.Root {
		return nil, nil
	}

	out := local.Clone()
	for rank, p := range parts {
		if rank == insitu.Root {
			continue
		}
		var w wireBuffer
		if err := msgpack.Unmarshal(p, &w); err != nil {
			return nil, fmt.Errorf("%w: buffer of rank %d: %w", insitu.ErrProtocol, rank, err)
		}
		fb := &insitu.FrameBuffer{Width: w.Width, Height: w.Height, Color: w.Color, Depth: w.Depth}
		if err := Merge(out, fb); err != nil {
			return nil, fmt.Errorf("rank %d: %w", rank, err)
		}
	}
	insitu.Logger().Debug("composited", "ranks", len(parts), "foreground", out.Foreground())
	return out, nil
}

// Merge folds src into dst, keeping the nearer sample of each pixel.
// A sample of equal depth does not replace dst.
func Merge(dst, src *insitu.FrameBuffer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if dst.Width != src.Width || dst.Height != src.Height {
		return fmt.Errorf("%w: %dx%d into %dx%d",
			insitu.ErrFrameBufferSize, src.Width, src.Height, dst.Width, dst.Height)
	}
	for i, z := range src.Depth {
		if z < dst.Depth[i] {
			dst.Depth[i] = z
			copy(dst.Color[4*i:4*i+4], src.Color[4*i:4*i+4])
		}
	}
	return nil
}
