package insitu

import (
	"errors"
	"testing"
)

type stepFrame int

func (s stepFrame) Step() int { return int(s) }

func TestFrameCacheFIFO(t *testing.T) {
	c := NewFrameCache(3)
	for i := 1; i <= 3; i++ {
		if err := c.Push(stepFrame(i)); err != nil {
			t.Fatalf("Push(%d) = %v", i, err)
		}
	}
	if !c.Full() {
		t.Error("Full() = false, want true")
	}
	if err := c.Push(stepFrame(4)); !errors.Is(err, ErrCacheFull) {
		t.Errorf("Push on full cache = %v, want ErrCacheFull", err)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}

	for want := 1; want <= 3; want++ {
		f, ok := c.Pop()
		if !ok || f.Step() != want {
			t.Errorf("Pop() = %v, %v, want %d", f, ok, want)
		}
	}
	if _, ok := c.Pop(); ok {
		t.Error("Pop() on empty cache ok = true")
	}
}

func TestFrameCacheRequeueRotates(t *testing.T) {
	c := NewFrameCache(4)
	for i := range 4 {
		_ = c.Push(stepFrame(i))
	}

	// Three full rotations keep the order intact.
	for round := range 3 {
		for want := range 4 {
			f, _ := c.Pop()
			if f.Step() != want {
				t.Fatalf("round %d: Pop() = %d, want %d", round, f.Step(), want)
			}
			if err := c.Requeue(f); err != nil {
				t.Fatalf("Requeue() = %v", err)
			}
			if c.Len() > c.Cap() {
				t.Fatalf("Len() = %d exceeds Cap() = %d", c.Len(), c.Cap())
			}
		}
	}
}

func TestFrameCacheZeroCapacity(t *testing.T) {
	c := NewFrameCache(0)
	if !c.Full() {
		t.Error("zero-capacity cache not full")
	}
	if err := c.Push(stepFrame(1)); !errors.Is(err, ErrCacheFull) {
		t.Errorf("Push() = %v, want ErrCacheFull", err)
	}
}

func TestFrameCacheReset(t *testing.T) {
	c := NewFrameCache(2)
	_ = c.Push(stepFrame(1))
	_ = c.Push(stepFrame(2))
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", c.Len())
	}
	if err := c.Push(stepFrame(3)); err != nil {
		t.Errorf("Push() after Reset = %v", err)
	}
}
