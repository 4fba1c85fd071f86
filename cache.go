package insitu

import "fmt"

// FrameCache is a bounded FIFO of simulation frames held between keyframes.
// Len never exceeds Cap.
type FrameCache struct {
	frames []Frame
	size   int
}

// NewFrameCache returns an empty cache holding at most size frames.
func NewFrameCache(size int) *FrameCache {
	if size < 0 {
		size = 0
	}
	return &FrameCache{
		frames: make([]Frame, 0, size),
		size:   size,
	}
}

// Push appends a frame. It fails with ErrCacheFull when the cache is full.
func (c *FrameCache) Push(f Frame) error {
	if len(c.frames) >= c.size {
		return fmt.Errorf("%w: capacity %d", ErrCacheFull, c.size)
	}
	c.frames = append(c.frames, f)
	return nil
}

// Pop removes and returns the oldest frame.
func (c *FrameCache) Pop() (Frame, bool) {
	if len(c.frames) == 0 {
		return nil, false
	}
	f := c.frames[0]
	n := copy(c.frames, c.frames[1:])
	c.frames[n] = nil
	c.frames = c.frames[:n]
	return f, true
}

// Requeue puts a popped frame back at the tail, preserving FIFO order
// across a full rotation of the cache.
func (c *FrameCache) Requeue(f Frame) error {
	return c.Push(f)
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int { return len(c.frames) }

// Cap returns the cache capacity.
func (c *FrameCache) Cap() int { return c.size }

// Full reports whether the next Push would fail.
func (c *FrameCache) Full() bool { return len(c.frames) >= c.size }

// Reset drops every cached frame.
func (c *FrameCache) Reset() {
	clear(c.frames)
	c.frames = c.frames[:0]
}
