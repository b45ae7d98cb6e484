// Package ids defines the opaque identifier and epoch types shared across
// the barrier-manager subsystem. None of these types carry behavior beyond
// equality and ordering; they exist so that actor, table, partial-graph and
// subscriber identities can't be confused with one another at compile time.
package ids

import "fmt"

// ActorID identifies a single running operator instance.
type ActorID int64

// PartialGraphID identifies a coordinated subset of actors sharing one
// barrier epoch timeline.
type PartialGraphID int64

// TableID identifies a storage-layer table scoped by checkpoint syncs.
type TableID uint32

// SubscriberID identifies a subscriber of a materialized-view's table in
// the refcounted subscription map.
type SubscriberID uint32

// EpochPair brackets the range spanned by a single barrier: Prev is the
// epoch the graph was at before the barrier, Curr is the epoch it advances
// to. Both are monotonically increasing within a partial graph, and
// Prev < Curr always holds.
type EpochPair struct {
	Prev uint64
	Curr uint64
}

// String renders the pair as "prev->curr", used in log fields and panics.
func (e EpochPair) String() string {
	return fmt.Sprintf("%d->%d", e.Prev, e.Curr)
}

// Valid reports whether the pair satisfies the engine's ordering invariant.
func (e EpochPair) Valid() bool {
	return e.Prev < e.Curr
}

// TableSet is a small set of TableIDs, used for checkpoint scoping and
// equality comparisons between consecutive barriers.
type TableSet map[TableID]struct{}

// NewTableSet builds a TableSet from a slice, deduplicating as it goes.
func NewTableSet(ids ...TableID) TableSet {
	var s = make(TableSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Equal reports whether two TableSets contain exactly the same elements.
func (s TableSet) Equal(other TableSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Slice returns the set's members in no particular order.
func (s TableSet) Slice() []TableID {
	var out = make([]TableID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// ActorSet is a small set of ActorIDs.
type ActorSet map[ActorID]struct{}

// NewActorSet builds an ActorSet from a slice, deduplicating as it goes.
func NewActorSet(ids ...ActorID) ActorSet {
	var s = make(ActorSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Slice returns the set's members in no particular order.
func (s ActorSet) Slice() []ActorID {
	var out = make([]ActorID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
