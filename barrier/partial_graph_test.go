package barrier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.streamcore.dev/engine/ids"
)

func waitForCompletion(t *testing.T, g *PartialGraphState, want uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		prevEpoch, ready := g.PollNextCompletedBarrier()
		return ready && prevEpoch == want
	}, time.Second, time.Millisecond)
}

func TestPartialGraphState_InitialThenBarrier_ScopeCarriesForward(t *testing.T) {
	var store = &fakeStore{}
	var g = NewPartialGraphState(1, store, nil, nil)

	var tables = ids.NewTableSet(1, 2)
	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.NewActorSet(10), tables))
	require.NoError(t, g.Collect(context.Background(), 10, epoch(0, 1)))
	waitForCompletion(t, g, 0)

	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, ids.NewActorSet(10), tables))
	require.NoError(t, g.Collect(context.Background(), 10, epoch(1, 2)))
	waitForCompletion(t, g, 1)

	assert.Empty(t, store.recordedSyncs(), "plain barriers never sync")
}

func TestPartialGraphState_BarrierChangingScope_Panics(t *testing.T) {
	var store = &fakeStore{}
	var g = NewPartialGraphState(1, store, nil, nil)
	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.NewActorSet(10), ids.NewTableSet(1)))

	assert.Panics(t, func() {
		_ = g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, ids.NewActorSet(10), ids.NewTableSet(2))
	})
}

func TestPartialGraphState_Checkpoint_SyncsCarriedScope(t *testing.T) {
	var store = &fakeStore{}
	var g = NewPartialGraphState(1, store, nil, nil)

	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.NewActorSet(10), ids.NewTableSet(1, 2)))
	require.NoError(t, g.Collect(context.Background(), 10, epoch(0, 1)))
	waitForCompletion(t, g, 0)

	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, ids.NewActorSet(10), ids.NewTableSet(1, 2)))
	require.NoError(t, g.Collect(context.Background(), 10, epoch(1, 2)))
	waitForCompletion(t, g, 1)

	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(2, 3), Kind: KindCheckpoint}, ids.NewActorSet(10), ids.NewTableSet(3)))
	require.NoError(t, g.Collect(context.Background(), 10, epoch(2, 3)))
	waitForCompletion(t, g, 2)

	var syncs = store.recordedSyncs()
	require.Len(t, syncs, 1)
	assert.Equal(t, uint64(2), syncs[0].prevEpoch)
	assert.True(t, syncs[0].tableIDs.Equal(ids.NewTableSet(1, 2)), "checkpoint syncs the scope accumulated since the last checkpoint, not its own")
}

func TestPartialGraphState_ZeroActorsToCollect_CompletesImmediately(t *testing.T) {
	var store = &fakeStore{}
	var g = NewPartialGraphState(1, store, nil, nil)

	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.ActorSet{}, ids.TableSet{}))
	waitForCompletion(t, g, 0)
}

func TestPartialGraphState_Collect_UnknownEpoch_Panics(t *testing.T) {
	var g = NewPartialGraphState(1, &fakeStore{}, nil, nil)
	assert.Panics(t, func() {
		_ = g.Collect(context.Background(), 1, epoch(5, 6))
	})
}

func TestPartialGraphState_Collect_UnawaitedActor_Panics(t *testing.T) {
	var g = NewPartialGraphState(1, &fakeStore{}, nil, nil)
	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.NewActorSet(10), ids.TableSet{}))
	assert.Panics(t, func() {
		_ = g.Collect(context.Background(), 99, epoch(0, 1))
	})
}

func TestPartialGraphState_CompletionOrdering_IsEnqueueOrderNotReadyOrder(t *testing.T) {
	var store = &fakeStore{}
	var g = NewPartialGraphState(1, store, nil, nil)

	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.NewActorSet(10, 11), ids.TableSet{}))

	// Actor 11 collects first, but epoch 0 can't complete until actor 10
	// does too -- the queue must still report epoch 0 before anything
	// issued after it, regardless of which actor races ahead.
	require.NoError(t, g.Collect(context.Background(), 11, epoch(0, 1)))

	// Epoch 1 is fully collected before epoch 0 is.
	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, ids.NewActorSet(11), ids.TableSet{}))
	require.NoError(t, g.Collect(context.Background(), 11, epoch(1, 2)))

	_, ready := g.PollNextCompletedBarrier()
	assert.False(t, ready)

	require.NoError(t, g.Collect(context.Background(), 10, epoch(0, 1)))
	waitForCompletion(t, g, 0)
	waitForCompletion(t, g, 1)
}

func TestPartialGraphState_PopCompletedEpoch(t *testing.T) {
	var g = NewPartialGraphState(1, &fakeStore{}, nil, nil)
	require.NoError(t, g.TransformToIssued(context.Background(), Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, ids.NewActorSet(10), ids.TableSet{}))

	var result, found, err = g.PopCompletedEpoch(0)
	require.NoError(t, err)
	assert.False(t, found, "not completed yet")
	assert.Nil(t, result)

	require.NoError(t, g.Collect(context.Background(), 10, epoch(0, 1)))
	waitForCompletion(t, g, 0)

	result, found, err = g.PopCompletedEpoch(0)
	require.NoError(t, err)
	assert.True(t, found)
	require.NotNil(t, result)

	_, _, err = g.PopCompletedEpoch(0)
	assert.Equal(t, ErrUnknownEpoch, err, "popped epoch is forgotten")
}

func TestPartialGraphState_Subscriptions_DuplicateAddPanics(t *testing.T) {
	var g = NewPartialGraphState(1, &fakeStore{}, nil, nil)
	g.AddSubscriptions(7, []ids.SubscriberID{1})
	assert.Panics(t, func() {
		g.AddSubscriptions(7, []ids.SubscriberID{1})
	})
}

func TestPartialGraphState_Subscriptions_RemoveAbsentPanics(t *testing.T) {
	var g = NewPartialGraphState(1, &fakeStore{}, nil, nil)
	assert.Panics(t, func() {
		g.RemoveSubscriptions(7, []ids.SubscriberID{1})
	})
}

func TestPartialGraphState_Subscriptions_SnapshotReflectsAddsAndRemoves(t *testing.T) {
	var g = NewPartialGraphState(1, &fakeStore{}, nil, nil)
	g.AddSubscriptions(7, []ids.SubscriberID{1, 2})
	g.RemoveSubscriptions(7, []ids.SubscriberID{1})

	var snap = g.subscriptionSnapshot()
	assert.Equal(t, []ids.SubscriberID{2}, snap[7])
}
