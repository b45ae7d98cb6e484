// Package statestore defines the checkpoint-sync capability the barrier
// manager's completion pipeline consumes. Modeled as an optional handle
// rather than a dynamic-dispatch plugin: when a node runs without a
// configured state store, NoopStore supplies the absent-case default the
// spec calls for (spec.md §9, "Polymorphic state store").
package statestore

import (
	"context"
	"time"

	"go.streamcore.dev/engine/ids"
)

// SyncOutcome is the result of a successful checkpoint sync: the set of
// table ids that were actually flushed and the wall-clock duration spent
// doing it.
type SyncOutcome struct {
	TableIDs ids.TableSet
	Elapsed  time.Duration
}

// Store is the checkpoint capability a partial graph's completion future
// drives at a Checkpoint barrier.
type Store interface {
	// StartEpoch notifies the store that a new epoch has begun and which
	// tables are currently in scope for it. Called synchronously from
	// PartialGraphState.TransformToIssued, never from a completion future.
	StartEpoch(ctx context.Context, currEpoch uint64, tableIDs ids.TableSet) error
	// Sync durably persists the writes accumulated for prevEpoch across
	// tableIDs, returning the outcome or an error. Sync errors are
	// reported as the completion result, not escalated.
	Sync(ctx context.Context, prevEpoch uint64, tableIDs ids.TableSet) (SyncOutcome, error)
}

// NoopStore is the absent-state-store default: StartEpoch is a no-op and
// Sync immediately reports success over the requested table set, matching
// spec.md §9's "sync returns a default success" guidance.
type NoopStore struct{}

// StartEpoch implements Store.
func (NoopStore) StartEpoch(context.Context, uint64, ids.TableSet) error { return nil }

// Sync implements Store.
func (NoopStore) Sync(_ context.Context, _ uint64, tableIDs ids.TableSet) (SyncOutcome, error) {
	return SyncOutcome{TableIDs: tableIDs}, nil
}
