package barrier

import (
	"context"
	"sync"

	"go.streamcore.dev/engine/actor"
	"go.streamcore.dev/engine/ids"
	"go.streamcore.dev/engine/statestore"
)

// syncCall records one invocation of fakeStore.Sync, for asserting which
// epoch and table-id scope a checkpoint actually synced.
type syncCall struct {
	prevEpoch uint64
	tableIDs  ids.TableSet
}

// fakeStore is a statestore.Store that records every Sync call instead of
// doing real storage work, letting tests assert on checkpoint scoping
// (spec.md §8, Scenario D) without a real storage engine.
type fakeStore struct {
	mu         sync.Mutex
	syncs      []syncCall
	startCalls []uint64
	syncErr    error
}

func (f *fakeStore) StartEpoch(_ context.Context, currEpoch uint64, _ ids.TableSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, currEpoch)
	return nil
}

func (f *fakeStore) Sync(_ context.Context, prevEpoch uint64, tableIDs ids.TableSet) (statestore.SyncOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs = append(f.syncs, syncCall{prevEpoch: prevEpoch, tableIDs: tableIDs})
	if f.syncErr != nil {
		return statestore.SyncOutcome{}, f.syncErr
	}
	return statestore.SyncOutcome{TableIDs: tableIDs}, nil
}

func (f *fakeStore) recordedSyncs() []syncCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out = make([]syncCall, len(f.syncs))
	copy(out, f.syncs)
	return out
}

// fakeSharedContext records every DropActors call.
type fakeSharedContext struct {
	mu      sync.Mutex
	dropped []ids.ActorSet
}

func (f *fakeSharedContext) DropActors(actorIDs ids.ActorSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, actorIDs)
}

func (f *fakeSharedContext) droppedSets() []ids.ActorSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out = make([]ids.ActorSet, len(f.dropped))
	copy(out, f.dropped)
	return out
}

// buildActors returns an ActorsToBuild slice for the given ids, used when
// an inject request must introduce brand new actors.
func buildActors(actorIDs ...ids.ActorID) []actor.Descriptor {
	var out = make([]actor.Descriptor, len(actorIDs))
	for i, a := range actorIDs {
		out[i] = actor.Descriptor{ActorID: a}
	}
	return out
}
