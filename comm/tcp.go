package comm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds a single frame on the wire.
const maxFrameSize = 256 << 20

// hello is the payload a worker sends when it joins.
type hello struct {
	Size int `msgpack:"size"`
}

// writeFrame writes e as a 4-byte big-endian length followed by the
// msgpack encoding.
func writeFrame(w io.Writer, e envelope) error {
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data))) //nolint:gosec // bounded by maxFrameSize on read
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// readFrame reads one frame written by writeFrame.
func readFrame(r io.Reader) (envelope, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return envelope{}, fmt.Errorf("failed to read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lengthBuf[:])
	if n > maxFrameSize {
		return envelope{}, fmt.Errorf("%w: frame of %d bytes", ErrProtocol, n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return envelope{}, fmt.Errorf("failed to read frame: %w", err)
	}
	var e envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return envelope{}, fmt.Errorf("%w: failed to unmarshal envelope: %v", ErrProtocol, err)
	}
	return e, nil
}

// Listener accepts the workers of a TCP group on root.
type Listener struct {
	ln   net.Listener
	size int
}

// Listen opens the root's listening socket for a group of size ranks.
func Listen(addr string, size int) (*Listener, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: group size %d", ErrRank, size)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("comm: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, size: size}, nil
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close closes the listening socket. Accepted connections stay open.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept waits until every worker rank has joined and returns root's
// communicator. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (*TCP, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	conns := make([]net.Conn, l.size)
	fail := func(err error) (*TCP, error) {
		for _, c := range conns {
			if c != nil {
				_ = c.Close()
			}
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("comm: accept: %w", ctx.Err())
		}
		return nil, err
	}

	for joined := 1; joined < l.size; {
		conn, err := l.ln.Accept()
		if err != nil {
			return fail(fmt.Errorf("comm: accept: %w", err))
		}
		rank, err := l.handshake(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return fail(err)
		}
		if conns[rank] != nil {
			_ = conn.Close()
			return fail(fmt.Errorf("%w: rank %d joined twice", ErrRank, rank))
		}
		conns[rank] = conn
		joined++
	}
	return &TCP{rank: 0, size: l.size, conns: conns}, nil
}

func (l *Listener) handshake(ctx context.Context, conn net.Conn) (int, error) {
	stop := watch(ctx, conn)
	defer stop()

	e, err := readFrame(conn)
	if err != nil {
		return 0, err
	}
	if err := e.check(0, KindHello); err != nil {
		return 0, err
	}
	var h hello
	if err := msgpack.Unmarshal(e.Payload, &h); err != nil {
		return 0, fmt.Errorf("%w: bad hello: %v", ErrProtocol, err)
	}
	if h.Size != l.size {
		return 0, fmt.Errorf("%w: rank %d expects %d ranks, root has %d", ErrProtocol, e.Rank, h.Size, l.size)
	}
	if e.Rank < 1 || e.Rank >= l.size {
		return 0, fmt.Errorf("%w: %d of %d", ErrRank, e.Rank, l.size)
	}
	return e.Rank, nil
}

// Dial joins a TCP group as a worker rank.
func Dial(ctx context.Context, addr string, rank, size int) (*TCP, error) {
	if rank < 1 || rank >= size {
		return nil, fmt.Errorf("%w: worker rank %d of %d", ErrRank, rank, size)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("comm: dial %s: %w", addr, err)
	}
	payload, err := msgpack.Marshal(&hello{Size: size})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to marshal hello: %w", err)
	}
	stop := watch(ctx, conn)
	err = writeFrame(conn, envelope{Kind: KindHello, Rank: rank, Payload: payload})
	stop()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	conns := make([]net.Conn, size)
	conns[0] = conn
	return &TCP{rank: rank, size: size, conns: conns}, nil
}

// TCP is one rank of a star-connected TCP group. Root holds a connection
// to every worker; workers hold one connection to root. Only rank 0 may
// act as the root of a collective call.
type TCP struct {
	rank   int
	size   int
	conns  []net.Conn
	seq    uint64
	closed bool
}

var _ Comm = (*TCP)(nil)

// Rank returns the rank.
func (t *TCP) Rank() int { return t.rank }

// Size returns the group size.
func (t *TCP) Size() int { return t.size }

// Close closes every connection of this rank.
func (t *TCP) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var errs []error
	for _, c := range t.conns {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func (t *TCP) begin(root int) (uint64, error) {
	if t.closed {
		return 0, ErrClosed
	}
	if root != 0 {
		return 0, fmt.Errorf("%w: tcp group root must be 0, got %d", ErrRank, root)
	}
	t.seq++
	return t.seq, nil
}

func (t *TCP) send(ctx context.Context, to int, e envelope) error {
	conn := t.conns[to]
	stop := watch(ctx, conn)
	defer stop()
	if err := writeFrame(conn, e); err != nil {
		return t.wrap(ctx, to, err)
	}
	return nil
}

func (t *TCP) recv(ctx context.Context, from int, seq uint64, kind Kind) ([]byte, error) {
	conn := t.conns[from]
	stop := watch(ctx, conn)
	defer stop()
	e, err := readFrame(conn)
	if err != nil {
		return nil, t.wrap(ctx, from, err)
	}
	if err := e.check(seq, kind); err != nil {
		return nil, err
	}
	return e.Payload, nil
}

func (t *TCP) wrap(ctx context.Context, peer int, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("comm: rank %d: %w", peer, ctx.Err())
	}
	return fmt.Errorf("comm: rank %d: %w", peer, err)
}

// Bcast implements Comm.
func (t *TCP) Bcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	seq, err := t.begin(root)
	if err != nil {
		return nil, err
	}
	if t.rank != root {
		return t.recv(ctx, root, seq, KindBcast)
	}
	for to := 1; to < t.size; to++ {
		if err := t.send(ctx, to, envelope{Seq: seq, Kind: KindBcast, Rank: t.rank, Payload: data}); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Gather implements Comm.
func (t *TCP) Gather(ctx context.Context, root int, data []byte) ([][]byte, error) {
	seq, err := t.begin(root)
	if err != nil {
		return nil, err
	}
	if t.rank != root {
		return nil, t.send(ctx, root, envelope{Seq: seq, Kind: KindGather, Rank: t.rank, Payload: data})
	}
	out := make([][]byte, t.size)
	out[root] = data
	for from := 1; from < t.size; from++ {
		p, err := t.recv(ctx, from, seq, KindGather)
		if err != nil {
			return nil, err
		}
		out[from] = p
	}
	return out, nil
}

// watch applies the context deadline to conn and interrupts blocked I/O
// when ctx is cancelled. The returned function detaches the watch.
func watch(ctx context.Context, conn net.Conn) func() bool {
	if d, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(d)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
}
