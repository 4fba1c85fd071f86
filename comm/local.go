package comm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// linkBuffer is the per-pair channel capacity. Root may run this many
// broadcasts ahead of a slow rank before it blocks.
const linkBuffer = 64

// Group is an in-process process group. Each rank is driven by its own
// goroutine through the Local returned by Comm.
type Group struct {
	size  int
	links [][]chan envelope // links[from][to]
	done  chan struct{}
	once  sync.Once
}

// NewGroup creates a group of size ranks.
func NewGroup(size int) *Group {
	if size < 1 {
		size = 1
	}
	links := make([][]chan envelope, size)
	for from := range links {
		links[from] = make([]chan envelope, size)
		for to := range links[from] {
			if from != to {
				links[from][to] = make(chan envelope, linkBuffer)
			}
		}
	}
	return &Group{size: size, links: links, done: make(chan struct{})}
}

// Size returns the number of ranks.
func (g *Group) Size() int { return g.size }

// Comm returns the communicator of the given rank.
func (g *Group) Comm(rank int) (*Local, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("%w: %d of %d", ErrRank, rank, g.size)
	}
	return &Local{g: g, rank: rank}, nil
}

// Close shuts the group down; blocked calls on every rank return ErrClosed.
func (g *Group) Close() error {
	g.once.Do(func() { close(g.done) })
	return nil
}

// Local is one rank of a Group.
type Local struct {
	g      *Group
	rank   int
	seq    uint64
	closed atomic.Bool
}

var _ Comm = (*Local)(nil)

// Rank returns the rank.
func (l *Local) Rank() int { return l.rank }

// Size returns the group size.
func (l *Local) Size() int { return l.g.size }

// Close detaches this rank. The group stays open for the other ranks.
func (l *Local) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *Local) send(ctx context.Context, to int, e envelope) error {
	select {
	case l.g.links[l.rank][to] <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("comm: send to rank %d: %w", to, ctx.Err())
	case <-l.g.done:
		return ErrClosed
	}
}

func (l *Local) recv(ctx context.Context, from int, seq uint64, kind Kind) ([]byte, error) {
	select {
	case e := <-l.g.links[from][l.rank]:
		if err := e.check(seq, kind); err != nil {
			return nil, err
		}
		return e.Payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("comm: receive from rank %d: %w", from, ctx.Err())
	case <-l.g.done:
		return nil, ErrClosed
	}
}

func (l *Local) begin(root int) (uint64, error) {
	if l.closed.Load() {
		return 0, ErrClosed
	}
	if err := checkRoot(root, l.g.size); err != nil {
		return 0, err
	}
	l.seq++
	return l.seq, nil
}

// Bcast implements Comm.
func (l *Local) Bcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	seq, err := l.begin(root)
	if err != nil {
		return nil, err
	}
	if l.rank != root {
		return l.recv(ctx, root, seq, KindBcast)
	}
	for to := range l.g.size {
		if to == root {
			continue
		}
		e := envelope{Seq: seq, Kind: KindBcast, Rank: l.rank, Payload: clone(data)}
		if err := l.send(ctx, to, e); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Gather implements Comm.
func (l *Local) Gather(ctx context.Context, root int, data []byte) ([][]byte, error) {
	seq, err := l.begin(root)
	if err != nil {
		return nil, err
	}
	if l.rank != root {
		e := envelope{Seq: seq, Kind: KindGather, Rank: l.rank, Payload: clone(data)}
		return nil, l.send(ctx, root, e)
	}
	out := make([][]byte, l.g.size)
	out[root] = data
	for from := range l.g.size {
		if from == root {
			continue
		}
		p, err := l.recv(ctx, from, seq, KindGather)
		if err != nil {
			return nil, err
		}
		out[from] = p
	}
	return out, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
