package barrier

import (
	"hash/fnv"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.streamcore.dev/engine/ids"
)

// seedFromName derives a deterministic seed from t.Name() so a failing
// randomized run is reproducible from its test name alone, without
// printing a separate seed value.
func seedFromName(t *testing.T) int64 {
	var h = fnv.New64a()
	_, _ = h.Write([]byte(t.Name()))
	return int64(h.Sum64())
}

// genIncreasingEpochs returns n strictly increasing EpochPairs starting
// above start, with gaps of random size, for exercising the monotonicity
// invariant against something other than one hand-picked sequence.
func genIncreasingEpochs(rng *rand.Rand, start uint64, n int) []ids.EpochPair {
	var out = make([]ids.EpochPair, 0, n)
	var prev = start
	for i := 0; i < n; i++ {
		var curr = prev + 1 + uint64(rng.Intn(5))
		out = append(out, epoch(prev, curr))
		prev = curr
	}
	return out
}

// TestActorState_IssueBarrier_RandomizedMonotonicity drives many random
// strictly increasing epoch sequences through IssueBarrier,
// asserting they're always accepted in order, and that replaying any
// earlier epoch from the same sequence out of order always panics.
func TestActorState_IssueBarrier_RandomizedMonotonicity(t *testing.T) {
	var rng = rand.New(rand.NewSource(seedFromName(t)))

	for trial := 0; trial < 50; trial++ {
		var n = 2 + rng.Intn(8)
		var seq = genIncreasingEpochs(rng, 0, n)

		var state = StartActorState(1, 10, Barrier{Epoch: seq[0], Kind: KindInitial}, nil)
		for _, e := range seq[1:] {
			require.NoError(t, state.IssueBarrier(10, Barrier{Epoch: e, Kind: KindBarrier}, false))
		}

		var replayIdx = rng.Intn(len(seq))
		assert.Panics(t, func() {
			_ = state.IssueBarrier(10, Barrier{Epoch: seq[replayIdx], Kind: KindBarrier}, false)
		}, "replaying epoch %s out of order must panic", seq[replayIdx])
	}
}

func epoch(prev, curr uint64) ids.EpochPair { return ids.EpochPair{Prev: prev, Curr: curr} }

func TestActorState_StartSeedsIssuedFirst(t *testing.T) {
	var initial = Barrier{Epoch: epoch(0, 1), Kind: KindInitial}
	var state = StartActorState(1, 10, initial, nil)

	assert.Equal(t, statusIssuedFirst, state.status.kind)
	assert.False(t, state.Finished())
}

func TestActorState_IssueBarrier_RejectsNonMonotonicEpoch(t *testing.T) {
	var state = StartActorState(1, 10, Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, nil)

	assert.Panics(t, func() {
		_ = state.IssueBarrier(10, Barrier{Epoch: epoch(0, 1), Kind: KindBarrier}, false)
	})
}

func TestActorState_IssueBarrier_RejectsOnceStopping(t *testing.T) {
	var state = StartActorState(1, 10, Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, nil)
	require.NoError(t, state.IssueBarrier(10, Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, true))

	assert.Panics(t, func() {
		_ = state.IssueBarrier(10, Barrier{Epoch: epoch(2, 3), Kind: KindBarrier}, false)
	})
}

func TestActorState_Collect_TransitionsIssuedFirstToRunning(t *testing.T) {
	var state = StartActorState(1, 10, Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, nil)
	require.NoError(t, state.IssueBarrier(10, Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, false))

	var graph, finished = state.Collect(epoch(0, 1))
	assert.Equal(t, ids.PartialGraphID(10), graph)
	assert.False(t, finished)
	assert.Equal(t, statusRunning, state.status.kind)
	assert.Equal(t, uint64(1), state.status.maxIssuedPrevEpoch)

	graph, finished = state.Collect(epoch(1, 2))
	assert.Equal(t, ids.PartialGraphID(10), graph)
	assert.False(t, finished)
}

func TestActorState_Collect_RejectsWrongEpoch(t *testing.T) {
	var state = StartActorState(1, 10, Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, nil)
	assert.Panics(t, func() {
		state.Collect(epoch(5, 6))
	})
}

func TestActorState_Finished_OnlyAfterAllStopCollected(t *testing.T) {
	var state = StartActorState(1, 10, Barrier{
		Epoch:         epoch(0, 1),
		Kind:          KindInitial,
		AllStopActors: ids.NewActorSet(1),
	}, nil)

	assert.True(t, state.isStopping)
	assert.False(t, state.Finished(), "not finished until the all-stop barrier is collected")

	var _, finished = state.Collect(epoch(0, 1))
	assert.True(t, finished)
}

func TestActorState_RegisterBarrierSender_ReplaysPendingThenLocks(t *testing.T) {
	var initial = Barrier{Epoch: epoch(0, 1), Kind: KindInitial}
	var state = StartActorState(1, 10, initial, nil)
	require.NoError(t, state.IssueBarrier(10, Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, false))

	var ch = make(chan Barrier, 4)
	require.NoError(t, state.RegisterBarrierSender(BarrierSender{C: ch, Done: make(chan struct{})}))

	require.Len(t, ch, 2)
	assert.Equal(t, initial.Epoch, (<-ch).Epoch)
	assert.Equal(t, epoch(1, 2), (<-ch).Epoch)

	state.Collect(epoch(0, 1))
	assert.Panics(t, func() {
		_ = state.RegisterBarrierSender(BarrierSender{C: ch, Done: make(chan struct{})})
	}, "registering a sender after the first collect is a programming error")
}

func TestActorState_IssueBarrier_SendFailureIsAnError(t *testing.T) {
	var state = StartActorState(1, 10, Barrier{Epoch: epoch(0, 1), Kind: KindInitial}, nil)

	var done = make(chan struct{})
	// The buffer absorbs the replayed initial barrier; closing done then
	// simulates the receiver going away before the next barrier is issued.
	require.NoError(t, state.RegisterBarrierSender(BarrierSender{C: make(chan Barrier, 1), Done: done}))
	close(done)

	var err = state.IssueBarrier(10, Barrier{Epoch: epoch(1, 2), Kind: KindBarrier}, false)
	require.Error(t, err)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, ids.ActorID(1), sendErr.ActorID)
}
