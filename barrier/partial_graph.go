package barrier

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"go.streamcore.dev/engine/actor"
	"go.streamcore.dev/engine/ids"
	"go.streamcore.dev/engine/metrics"
	"go.streamcore.dev/engine/statestore"
)

type barrierStateKind int

const (
	innerIssued barrierStateKind = iota
	innerAllCollected
	innerCompleted
)

// BarrierState is the per-(partial-graph, prevEpoch) record described in
// spec.md §3. It moves strictly Issued -> AllCollected -> Completed and
// never backward.
type BarrierState struct {
	Barrier Barrier

	state barrierStateKind

	// Valid only while state == innerIssued.
	remainingActors ids.ActorSet
	tableIDs        ids.TableSet // nil unless Barrier.Kind == KindCheckpoint
	issuedAt        time.Time

	// Set once state has advanced past innerIssued.
	future *completionFuture
	result completionResult
}

// prevTableRecord is the Option<(EpochPair, Set<TableID>)> the spec calls
// prev_barrier_table_ids: the invariant scoping of the non-checkpoint
// range since the last checkpoint (or Initial) barrier.
type prevTableRecord struct {
	epoch    ids.EpochPair
	tableIDs ids.TableSet
}

// PartialGraphState is the per-partial-graph bookkeeping described in
// spec.md §3 as PartialGraphManagedBarrierState: outstanding barriers for
// this graph, its ordered completion queue, table-id scoping, and
// materialized-view progress reports.
type PartialGraphState struct {
	id      ids.PartialGraphID
	store   statestore.Store
	metrics *metrics.Set
	notify  func()

	epochStates map[uint64]*BarrierState
	sortedEpoch []uint64 // ascending; append-only on insert, spliced on pop

	prevTables *prevTableRecord

	mvSubscriptions map[ids.TableID]map[ids.SubscriberID]struct{}
	mviewProgress   map[uint64]map[ids.ActorID]ProgressState

	completions completionFIFO
}

// NewPartialGraphState constructs an empty partial-graph state, ready for
// its first (Initial) barrier. store may be statestore.NoopStore{} if the
// node runs without a configured state store. notify is invoked (possibly
// concurrently, from a completion future's goroutine) whenever a
// completion becomes ready, so Manager.NextCompletedEpoch can wake without
// busy-polling; it may be nil.
func NewPartialGraphState(id ids.PartialGraphID, store statestore.Store, metricsSet *metrics.Set, notify func()) *PartialGraphState {
	return &PartialGraphState{
		id:              id,
		store:           store,
		metrics:         metricsSet,
		notify:          notify,
		epochStates:     make(map[uint64]*BarrierState),
		mvSubscriptions: make(map[ids.TableID]map[ids.SubscriberID]struct{}),
		mviewProgress:   make(map[uint64]map[ids.ActorID]ProgressState),
	}
}

// TransformToIssued records barrier as newly Issued across
// actorIDsToCollect, updates the table-id scoping per barrier.Kind, and
// immediately checks for the degenerate zero-actor case (spec.md §4.2,
// §8 Scenario F).
func (g *PartialGraphState) TransformToIssued(ctx context.Context, barrier Barrier, actorIDsToCollect ids.ActorSet, tableIDs ids.TableSet) error {
	var issuedAt = time.Now()

	if err := g.store.StartEpoch(ctx, barrier.Epoch.Curr, tableIDs); err != nil {
		return errors.Wrapf(err, "partial graph %d: state store start_epoch at epoch %s", g.id, barrier.Epoch)
	}

	var scopedTableIDs ids.TableSet
	switch barrier.Kind {
	case KindInitial:
		if g.prevTables != nil {
			invariantf("partial graph %d: Initial barrier observed more than once", g.id)
		}
		g.prevTables = &prevTableRecord{epoch: barrier.Epoch, tableIDs: tableIDs}
		scopedTableIDs = nil

	case KindBarrier:
		if g.prevTables == nil || g.prevTables.epoch.Curr != barrier.Epoch.Prev {
			invariantf("partial graph %d: barrier %s does not continue the prior epoch range", g.id, barrier.Epoch)
		}
		if !g.prevTables.tableIDs.Equal(tableIDs) {
			invariantf("partial graph %d: barrier %s changes table scope outside a checkpoint", g.id, barrier.Epoch)
		}
		g.prevTables.epoch = barrier.Epoch
		scopedTableIDs = nil

	case KindCheckpoint:
		var carried ids.TableSet
		if g.prevTables != nil && g.prevTables.epoch.Curr == barrier.Epoch.Prev {
			carried = g.prevTables.tableIDs
		} else {
			carried = ids.TableSet{}
		}
		g.prevTables = &prevTableRecord{epoch: barrier.Epoch, tableIDs: tableIDs}
		scopedTableIDs = carried

	default:
		invariantf("partial graph %d: unknown barrier kind %d", g.id, int(barrier.Kind))
	}

	if _, exists := g.epochStates[barrier.Epoch.Prev]; exists {
		invariantf("partial graph %d: barrier state already exists for epoch prev=%d", g.id, barrier.Epoch.Prev)
	}

	var remaining = make(ids.ActorSet, len(actorIDsToCollect))
	for a := range actorIDsToCollect {
		remaining[a] = struct{}{}
	}

	var st = &BarrierState{
		Barrier:         barrier,
		state:           innerIssued,
		remainingActors: remaining,
		tableIDs:        scopedTableIDs,
		issuedAt:        issuedAt,
	}
	g.epochStates[barrier.Epoch.Prev] = st
	g.sortedEpoch = append(g.sortedEpoch, barrier.Epoch.Prev)

	g.mayHaveCollectedAll(ctx, barrier.Epoch.Prev)
	return nil
}

// Collect records that actorID has collected the barrier at epoch.Prev
// within this partial graph.
func (g *PartialGraphState) Collect(ctx context.Context, actorID ids.ActorID, epoch ids.EpochPair) error {
	var st, ok = g.epochStates[epoch.Prev]
	if !ok {
		invariantf("partial graph %d: collect(actor=%d, %s) for unknown epoch", g.id, actorID, epoch)
	}
	if st.state != innerIssued {
		invariantf("partial graph %d: collect(actor=%d, %s) but epoch is not Issued", g.id, actorID, epoch)
	}
	if _, present := st.remainingActors[actorID]; !present {
		invariantf("partial graph %d: actor %d not awaited for epoch %s", g.id, actorID, epoch)
	}
	delete(st.remainingActors, actorID)
	if st.Barrier.Epoch.Curr != epoch.Curr {
		invariantf("partial graph %d: collect(actor=%d, %s) curr mismatch with issued %s", g.id, actorID, epoch, st.Barrier.Epoch)
	}

	g.mayHaveCollectedAll(ctx, epoch.Prev)
	return nil
}

// mayHaveCollectedAll walks epochStates in ascending prevEpoch order,
// transitioning every Issued entry with an empty remaining set to
// AllCollected and enqueuing its completion future, until it hits an
// entry that is still blocked. Because the walk always starts from the
// beginning and halts at the first blocked Issued entry, completions are
// enqueued in strictly epoch-ascending order (spec.md §4.2).
func (g *PartialGraphState) mayHaveCollectedAll(ctx context.Context, _ uint64) {
	for _, key := range g.sortedEpoch {
		var st = g.epochStates[key]
		switch st.state {
		case innerAllCollected, innerCompleted:
			continue
		case innerIssued:
			if len(st.remainingActors) > 0 {
				return
			}

			var elapsed = time.Since(st.issuedAt)
			if g.metrics != nil {
				var label = fmt.Sprint(g.id)
				g.metrics.InflightLatency.WithLabelValues(label).Observe(elapsed.Seconds())
				g.metrics.Progress.WithLabelValues(label).Inc()
			}

			var progress = g.mviewProgress[st.Barrier.Epoch.Curr]
			delete(g.mviewProgress, st.Barrier.Epoch.Curr)

			st.state = innerAllCollected
			st.future = scheduleCompletion(ctx, g.store, g.metrics, g.id, st.Barrier, st.tableIDs, progress, g.notify)
			g.completions.pushBack(st.future)
		}
	}
}

// PollNextCompletedBarrier checks whether the queue's head future is
// ready. If so, it transitions that epoch's BarrierState to Completed,
// pops the queue, and returns the epoch. It never blocks.
func (g *PartialGraphState) PollNextCompletedBarrier() (prevEpoch uint64, ready bool) {
	var front, ok = g.completions.front()
	if !ok {
		return 0, false
	}
	var result, resultReady = front.poll()
	if !resultReady {
		return 0, false
	}

	var st = g.epochStates[front.prevEpoch]
	if st == nil || st.state != innerAllCollected {
		invariantf("partial graph %d: completion ready for epoch %d not in AllCollected state", g.id, front.prevEpoch)
	}
	st.state = innerCompleted
	st.result = result
	g.completions.popFront()
	return front.prevEpoch, true
}

// PopResult is what PopCompletedEpoch returns for a Completed epoch: the
// checkpoint sync outcome (nil for non-checkpoint barriers) and any sync
// error, which is the completion's own result, not a call failure.
type PopResult struct {
	Outcome *statestore.SyncOutcome
	SyncErr error
}

// PopCompletedEpoch removes and returns the Completed result for
// prevEpoch. It returns ErrUnknownEpoch if no state exists at all (the
// local state may have been cleared during recovery), and (nil, false,
// nil) if the epoch exists but hasn't completed yet.
func (g *PartialGraphState) PopCompletedEpoch(prevEpoch uint64) (*PopResult, bool, error) {
	var st, ok = g.epochStates[prevEpoch]
	if !ok {
		return nil, false, ErrUnknownEpoch
	}
	if st.state != innerCompleted {
		return nil, false, nil
	}
	delete(g.epochStates, prevEpoch)
	g.removeSortedEpoch(prevEpoch)
	return &PopResult{Outcome: st.result.Outcome, SyncErr: st.result.Err}, true, nil
}

func (g *PartialGraphState) removeSortedEpoch(key uint64) {
	for i, k := range g.sortedEpoch {
		if k == key {
			g.sortedEpoch = append(g.sortedEpoch[:i], g.sortedEpoch[i+1:]...)
			return
		}
	}
}

// AddSubscriptions records that each of subscribers now depends on
// tableID's materialized view.
func (g *PartialGraphState) AddSubscriptions(tableID ids.TableID, subscribers []ids.SubscriberID) {
	for _, sub := range subscribers {
		var set = g.mvSubscriptions[tableID]
		if set == nil {
			set = make(map[ids.SubscriberID]struct{})
			g.mvSubscriptions[tableID] = set
		}
		if _, exists := set[sub]; exists {
			invariantf("partial graph %d: duplicate subscription (table=%d, subscriber=%d)", g.id, tableID, sub)
		}
		set[sub] = struct{}{}
	}
}

// RemoveSubscriptions drops each of subscribers' dependency on tableID's
// materialized view, removing the table entry entirely once its
// subscriber set empties.
func (g *PartialGraphState) RemoveSubscriptions(tableID ids.TableID, subscribers []ids.SubscriberID) {
	for _, sub := range subscribers {
		var set = g.mvSubscriptions[tableID]
		if set == nil {
			invariantf("partial graph %d: removal of absent subscription (table=%d, subscriber=%d)", g.id, tableID, sub)
		}
		if _, exists := set[sub]; !exists {
			invariantf("partial graph %d: removal of absent subscription (table=%d, subscriber=%d)", g.id, tableID, sub)
		}
		delete(set, sub)
		if len(set) == 0 {
			delete(g.mvSubscriptions, tableID)
		}
	}
}

// subscriptionSnapshot returns the current mv_depended_subscriptions view,
// handed to a newly spawned actor so it can seed its own materialized-view
// bookkeeping consistently with the graph it is joining.
func (g *PartialGraphState) subscriptionSnapshot() actor.SubscriptionSnapshot {
	var snap = make(actor.SubscriptionSnapshot, len(g.mvSubscriptions))
	for table, subs := range g.mvSubscriptions {
		var list = make([]ids.SubscriberID, 0, len(subs))
		for sub := range subs {
			list = append(list, sub)
		}
		snap[table] = list
	}
	return snap
}

// RecordMviewProgress attaches progress to currEpoch, to be popped and
// attached to the completion result when that epoch's barrier transitions
// to AllCollected.
func (g *PartialGraphState) RecordMviewProgress(currEpoch uint64, actorID ids.ActorID, progress ProgressState) {
	var m = g.mviewProgress[currEpoch]
	if m == nil {
		m = make(map[ids.ActorID]ProgressState)
		g.mviewProgress[currEpoch] = m
	}
	m[actorID] = progress
}
