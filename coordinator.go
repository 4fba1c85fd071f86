package insitu

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/insitu/comm"
)

// Root is the rank that evaluates entropy and makes every decision.
const Root = 0

// Coordinator runs the controller's collective operations over a process
// group. Every method is collective: all ranks must call it in the same
// order.
type Coordinator struct {
	comm comm.Comm
}

// NewCoordinator wraps c. If size is positive the group must have exactly
// that many ranks.
func NewCoordinator(c comm.Comm, size int) (*Coordinator, error) {
	if size > 0 && c.Size() != size {
		return nil, fmt.Errorf("%w: group has %d ranks, configured for %d", ErrProtocol, c.Size(), size)
	}
	return &Coordinator{comm: c}, nil
}

// Rank returns this process's rank.
func (c *Coordinator) Rank() int { return c.comm.Rank() }

// Size returns the group size.
func (c *Coordinator) Size() int { return c.comm.Size() }

// IsRoot reports whether this process is root.
func (c *Coordinator) IsRoot() bool { return c.comm.Rank() == Root }

// Comm returns the underlying communicator.
func (c *Coordinator) Comm() comm.Comm { return c.comm }

// decision is the broadcast form of a root-computed value.
type decision[T any] struct {
	Value    T      `msgpack:"value"`
	Failed   bool   `msgpack:"failed"`
	Protocol bool   `msgpack:"protocol"`
	Message  string `msgpack:"message"`
}

// Decide runs compute on root and delivers its result to every rank.
// Non-root ranks never call compute. If compute fails on root, root
// returns the error and every other rank returns ErrDecision (or
// ErrProtocol when root's error was a protocol violation).
func Decide[T any](ctx context.Context, c *Coordinator, compute func() (T, error)) (T, error) {
	var zero T
	if !c.IsRoot() {
		data, err := c.comm.Bcast(ctx, Root, nil)
		if err != nil {
			return zero, wrapComm(err)
		}
		var d decision[T]
		if err := msgpack.Unmarshal(data, &d); err != nil {
			return zero, fmt.Errorf("%w: failed to unmarshal decision: %w", ErrProtocol, err)
		}
		if d.Failed {
			if d.Protocol {
				return zero, fmt.Errorf("%w: on root: %s", ErrProtocol, d.Message)
			}
			return zero, fmt.Errorf("%w: %s", ErrDecision, d.Message)
		}
		return d.Value, nil
	}

	value, cerr := compute()
	d := decision[T]{Value: value}
	if cerr != nil {
		d = decision[T]{Failed: true, Protocol: errors.Is(cerr, ErrProtocol), Message: cerr.Error()}
	}
	data, err := msgpack.Marshal(&d)
	if err != nil {
		cerr = fmt.Errorf("failed to marshal decision: %w", err)
		data, _ = msgpack.Marshal(&decision[T]{Failed: true, Message: cerr.Error()})
	}
	if _, err := c.comm.Bcast(ctx, Root, data); err != nil {
		return zero, wrapComm(err)
	}
	if cerr != nil {
		return zero, cerr
	}
	return value, nil
}

// ReduceMax returns the element-wise maximum of values across ranks on
// root; other ranks receive nil. Every rank must pass the same length.
func (c *Coordinator) ReduceMax(ctx context.Context, values []float64) ([]float64, error) {
	data, err := msgpack.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal values: %w", err)
	}
	all, err := c.comm.Gather(ctx, Root, data)
	if err != nil {
		return nil, wrapComm(err)
	}
	if !c.IsRoot() {
		return nil, nil
	}
	out := append([]float64(nil), values...)
	for rank, p := range all {
		if rank == Root {
			continue
		}
		var v []float64
		if err := msgpack.Unmarshal(p, &v); err != nil {
			return nil, fmt.Errorf("%w: rank %d: %w", ErrProtocol, rank, err)
		}
		if len(v) != len(out) {
			return nil, fmt.Errorf("%w: rank %d sent %d values, want %d", ErrProtocol, rank, len(v), len(out))
		}
		for i := range out {
			out[i] = max(out[i], v[i])
		}
	}
	return out, nil
}

// wrapComm marks transport protocol failures as controller protocol errors.
func wrapComm(err error) error {
	if errors.Is(err, comm.ErrProtocol) {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return err
}
