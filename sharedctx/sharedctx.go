// Package sharedctx defines the collaborator the barrier manager notifies
// when a barrier's all-stop set finishes draining, so the host process can
// finalize teardown of those actors outside the manager's own state.
package sharedctx

import "go.streamcore.dev/engine/ids"

// Context is the shared-context collaborator described in spec.md §3 and
// §4.4: a narrow notification surface, not a god-object. The barrier
// manager calls DropActors exactly once per all-stop barrier, after that
// barrier's epoch has been reported complete.
type Context interface {
	// DropActors finalizes teardown of actorIDs, all of which have just
	// collected their final (all-stop) barrier.
	DropActors(actorIDs ids.ActorSet)
}

// NoopContext implements Context with no-ops, for tests and for partial
// graphs that never schedule all-stop actors.
type NoopContext struct{}

// DropActors implements Context.
func (NoopContext) DropActors(ids.ActorSet) {}
