package barrier

import (
	"fmt"

	"github.com/pkg/errors"

	"go.streamcore.dev/engine/ids"
)

// ErrUnknownEpoch is returned by PopCompletedEpoch when no BarrierState
// exists for the requested prevEpoch. Unlike the invariant violations
// below, this is a recoverable condition: local state may have been
// cleared during coordinator-driven recovery, so the caller gets an error
// rather than a panic (spec.md §7, "Completion-lookup failure").
var ErrUnknownEpoch = errors.New("barrier: no state for requested epoch")

// ErrDuplicateSubscription and ErrAbsentSubscription name the
// add/remove-subscription logic errors. PartialGraphState.AddSubscriptions
// and RemoveSubscriptions do not return them: they panic with an
// InvariantViolation on a duplicate add or an absent remove.
var (
	ErrDuplicateSubscription = errors.New("barrier: duplicate subscription")
	ErrAbsentSubscription    = errors.New("barrier: removal of absent subscription")
)

// SendError reports that pushing a barrier into an actor's channel failed
// because the actor's receive side has gone away. It names the actor and
// barrier so the coordinator can target recovery (spec.md §7,
// "Barrier-send failure").
type SendError struct {
	ActorID ids.ActorID
	Epoch   ids.EpochPair
	Cause   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("barrier send to actor %d failed at epoch %s: %v", e.ActorID, e.Epoch, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *SendError) Unwrap() error { return e.Cause }

// InvariantViolation is the panic value raised for programming-error
// conditions the spec says must abort rather than silently recover:
// reissuing a collected barrier, issuing into a stopping actor, missing
// actor on collect, and similar state-machine corruption (spec.md §7).
type InvariantViolation struct {
	Message string
}

func (v InvariantViolation) Error() string { return v.Message }

// invariantf panics with an InvariantViolation built from the formatted
// message. Every caller site names the specific guarantee it is enforcing.
func invariantf(format string, args ...interface{}) {
	panic(InvariantViolation{Message: fmt.Sprintf(format, args...)})
}
