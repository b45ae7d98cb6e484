package barrier

import (
	"go.streamcore.dev/engine/actor"
	"go.streamcore.dev/engine/ids"
)

// Kind classifies what additional work a Barrier triggers beyond ordering.
type Kind int

const (
	// KindInitial appears exactly once per partial-graph lifetime.
	KindInitial Kind = iota
	// KindBarrier carries no storage work.
	KindBarrier
	// KindCheckpoint additionally triggers a durable state-store sync.
	KindCheckpoint
)

// String implements fmt.Stringer for use in log fields and panics.
func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "Initial"
	case KindBarrier:
		return "Barrier"
	case KindCheckpoint:
		return "Checkpoint"
	default:
		return "Unknown"
	}
}

// Mutation is an immutable reconfiguration payload attached to a barrier.
// Recipients may read it but must never modify it, since it may be shared
// across every actor a barrier is issued to.
type Mutation interface{}

// Barrier is a totally-ordered epoch marker injected through the dataflow.
type Barrier struct {
	Epoch ids.EpochPair
	Kind  Kind
	// Mutation is nil when the barrier carries no reconfiguration.
	Mutation Mutation
	// AllStopActors is nil unless this barrier schedules actor teardown.
	AllStopActors ids.ActorSet
}

// isAllStop reports whether actorID is scheduled to terminate at b.
func (b Barrier) isAllStop(actorID ids.ActorID) bool {
	if b.AllStopActors == nil {
		return false
	}
	_, ok := b.AllStopActors[actorID]
	return ok
}

// InjectBarrierRequest is the argument to Manager.InjectBarrier, carrying
// everything needed to advance one partial graph by one barrier.
type InjectBarrierRequest struct {
	PartialGraphID    ids.PartialGraphID
	ActorIDsToCollect ids.ActorSet
	ActorsToBuild     []actor.Descriptor
	TableIDsToSync    ids.TableSet
	// SubscriptionsToAdd/Remove map a table id to the subscriber ids
	// gaining or losing a dependency on its materialized view.
	SubscriptionsToAdd    map[ids.TableID][]ids.SubscriberID
	SubscriptionsToRemove map[ids.TableID][]ids.SubscriberID
	Barrier               Barrier
}
