// Package comm provides the process group the in-situ controller runs on.
//
// A group has Size ranks; rank 0 is root. Every collective call (Bcast,
// Gather) must be made by every rank in the same order. Each call carries a
// sequence number and a kind tag, so ranks that fall out of step fail with
// ErrProtocol instead of exchanging the wrong payloads.
//
// Two implementations are provided:
//
//   - Group / Local: ranks are goroutines of one process joined by
//     buffered channels.
//   - Listener / TCP: ranks are processes joined to root in a star over TCP,
//     with length-prefixed msgpack frames.
package comm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProtocol reports a collective call whose sequence number or kind
	// does not match the peer's.
	ErrProtocol = errors.New("comm: protocol mismatch")

	// ErrClosed is returned by calls on a closed communicator.
	ErrClosed = errors.New("comm: closed")

	// ErrRank reports a rank outside [0, Size) or a duplicate rank.
	ErrRank = errors.New("comm: invalid rank")
)

// Comm is one rank's handle on a process group.
// A Comm is not safe for concurrent use.
type Comm interface {
	// Rank returns this process's rank.
	Rank() int

	// Size returns the number of ranks in the group.
	Size() int

	// Bcast sends data from root to every rank and returns it on all of
	// them. The data argument is ignored on non-root ranks.
	Bcast(ctx context.Context, root int, data []byte) ([]byte, error)

	// Gather collects data from every rank on root, indexed by rank.
	// Non-root ranks receive nil.
	Gather(ctx context.Context, root int, data []byte) ([][]byte, error)

	// Close releases the communicator.
	Close() error
}

// Kind tags the collective call an envelope belongs to.
type Kind uint8

const (
	KindHello Kind = iota + 1
	KindBcast
	KindGather
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindBcast:
		return "bcast"
	case KindGather:
		return "gather"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// envelope is the unit exchanged between ranks.
type envelope struct {
	Seq     uint64 `msgpack:"seq"`
	Kind    Kind   `msgpack:"kind"`
	Rank    int    `msgpack:"rank"`
	Payload []byte `msgpack:"payload"`
}

// check verifies that e belongs to the collective call (seq, kind).
func (e envelope) check(seq uint64, kind Kind) error {
	if e.Seq != seq || e.Kind != kind {
		return fmt.Errorf("%w: got %s #%d from rank %d, want %s #%d",
			ErrProtocol, e.Kind, e.Seq, e.Rank, kind, seq)
	}
	return nil
}

func checkRoot(root, size int) error {
	if root < 0 || root >= size {
		return fmt.Errorf("%w: root %d of %d", ErrRank, root, size)
	}
	return nil
}
