package insitu

import "errors"

// Sentinel errors returned by the controller. Callers match them with
// errors.Is; the returned errors wrap them with step or rank context.
var (
	// ErrProtocol reports a collective-call mismatch or a process group
	// whose composition disagrees with the configured grid. It is fatal for
	// every rank.
	ErrProtocol = errors.New("insitu: protocol violation")

	// ErrInvariant reports a broken internal invariant: a push onto a full
	// frame cache, an endpoint window of the wrong length, or a path whose
	// length disagrees with the cached frames.
	ErrInvariant = errors.New("insitu: invariant violated")

	// ErrCacheFull is returned by FrameCache.Push when the cache is at capacity.
	ErrCacheFull = errors.New("insitu: frame cache full")

	// ErrDecision is returned on non-root ranks when root failed to compute
	// a collective decision.
	ErrDecision = errors.New("insitu: root decision failed")

	// ErrConfig reports an invalid configuration.
	ErrConfig = errors.New("insitu: invalid config")

	// ErrFrameBufferSize reports buffers whose dimensions disagree.
	ErrFrameBufferSize = errors.New("insitu: frame buffer size mismatch")
)
