package barrier

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.streamcore.dev/engine/actor"
	"go.streamcore.dev/engine/ids"
	"go.streamcore.dev/engine/metrics"
	"go.streamcore.dev/engine/sharedctx"
	"go.streamcore.dev/engine/statestore"
)

// Manager is the root of the barrier-manager subsystem (spec.md §3,
// ManagedBarrierState): it owns every actor and partial-graph state,
// dispatches inject requests, drives actor spawns, aggregates completion
// events, and exposes the four hot operations to the transport.
//
// The Manager itself is not safe for concurrent use -- spec.md §5 models
// it as driven by a single cooperative loop. Callers that need concurrent
// access (e.g. a gRPC service with multiple in-flight handlers) should
// serialize calls with their own mutex, as grpcapi.Server does.
type Manager struct {
	actorManager actor.Manager
	sharedCtx    sharedctx.Context
	store        statestore.Store
	metrics      *metrics.Set
	testingMode  bool

	actorStates map[ids.ActorID]*ActorState
	graphStates map[ids.PartialGraphID]*PartialGraphState

	wake chan struct{}
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithTestingMode causes every actor spawn to go through actor.IdleManager
// instead of the configured actor.Manager, so tests can exercise barrier
// sequencing without a real operator runtime.
func WithTestingMode() Option {
	return func(m *Manager) { m.testingMode = true }
}

// New constructs a Manager with one empty PartialGraphState per id in
// initialPartialGraphs, each seeded with an empty subscription set.
func New(actorManager actor.Manager, shared sharedctx.Context, store statestore.Store, metricsSet *metrics.Set, initialPartialGraphs []ids.PartialGraphID, opts ...Option) *Manager {
	if store == nil {
		store = statestore.NoopStore{}
	}
	if shared == nil {
		shared = sharedctx.NoopContext{}
	}

	var m = &Manager{
		actorManager: actorManager,
		sharedCtx:    shared,
		store:        store,
		metrics:      metricsSet,
		actorStates:  make(map[ids.ActorID]*ActorState),
		graphStates:  make(map[ids.PartialGraphID]*PartialGraphState),
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, id := range initialPartialGraphs {
		m.graphStates[id] = NewPartialGraphState(id, m.store, m.metrics, m.signalWake)
	}
	return m
}

func (m *Manager) signalWake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// InjectBarrier advances one partial graph by one barrier: it applies
// subscription deltas, transforms the graph's state to Issued (which may
// itself synchronously complete the epoch if it names zero actors to
// collect), spawns any newly-built actors, then issues the barrier to
// every pre-existing actor named in the request. The graph transition
// always happens before any actor is notified (spec.md §4.4).
func (m *Manager) InjectBarrier(ctx context.Context, req InjectBarrierRequest) error {
	var graph, ok = m.graphStates[req.PartialGraphID]
	if !ok {
		invariantf("inject_barrier: unknown partial graph %d", req.PartialGraphID)
	}

	for tableID, subs := range req.SubscriptionsToAdd {
		graph.AddSubscriptions(tableID, subs)
	}
	for tableID, subs := range req.SubscriptionsToRemove {
		graph.RemoveSubscriptions(tableID, subs)
	}

	if err := graph.TransformToIssued(ctx, req.Barrier, req.ActorIDsToCollect, req.TableIDsToSync); err != nil {
		return err
	}

	var subsSnapshot = graph.subscriptionSnapshot()
	var justSpawned = make(ids.ActorSet, len(req.ActorsToBuild))

	for _, desc := range req.ActorsToBuild {
		if req.Barrier.isAllStop(desc.ActorID) {
			invariantf("inject_barrier: actor %d cannot be built and all-stopped by the same barrier", desc.ActorID)
		}
		if _, wanted := req.ActorIDsToCollect[desc.ActorID]; !wanted {
			invariantf("inject_barrier: actor %d scheduled to build but absent from actors_to_collect", desc.ActorID)
		}

		var handle, err = m.spawnActor(ctx, desc, subsSnapshot)
		if err != nil {
			return errors.Wrapf(err, "inject_barrier: spawning actor %d", desc.ActorID)
		}

		m.actorStates[desc.ActorID] = StartActorState(desc.ActorID, req.PartialGraphID, req.Barrier, handle)
		justSpawned[desc.ActorID] = struct{}{}
	}

	for actorID := range req.ActorIDsToCollect {
		if _, spawned := justSpawned[actorID]; spawned {
			continue
		}
		if _, known := m.actorStates[actorID]; known {
			continue
		}
		if !m.testingMode {
			invariantf("inject_barrier: actor %d scheduled to collect has no recorded state", actorID)
		}

		// Testing mode fills actors the caller never explicitly listed in
		// ActorsToBuild with idle placeholder tasks, treating them as
		// freshly started under this barrier rather than issuing into a
		// (nonexistent) prior state -- the same cfg!(test) auto-spawn the
		// original manager applies.
		var handle, err = actor.IdleManager{}.SpawnActor(ctx, actor.Descriptor{ActorID: actorID}, subsSnapshot, m.sharedCtx)
		if err != nil {
			return errors.Wrapf(err, "inject_barrier: idle-spawning actor %d", actorID)
		}
		m.actorStates[actorID] = StartActorState(actorID, req.PartialGraphID, req.Barrier, handle)
		justSpawned[actorID] = struct{}{}
	}

	for actorID := range req.ActorIDsToCollect {
		if _, spawned := justSpawned[actorID]; spawned {
			continue
		}
		var state = m.actorStates[actorID]
		if err := state.IssueBarrier(req.PartialGraphID, req.Barrier, req.Barrier.isAllStop(actorID)); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) spawnActor(ctx context.Context, desc actor.Descriptor, subs actor.SubscriptionSnapshot) (*actor.Handle, error) {
	var mgr = m.actorManager
	if m.testingMode || mgr == nil {
		mgr = actor.IdleManager{}
	}
	return mgr.SpawnActor(ctx, desc, subs, m.sharedCtx)
}

// Collect records that actorID has observed the barrier at epoch within
// its partial graph. If this was the actor's last outstanding barrier and
// it was marked all-stop, the actor is removed from actorStates and its
// monitor task (if any) is stopped; its main task is left to exit on its
// own terms.
func (m *Manager) Collect(ctx context.Context, actorID ids.ActorID, epoch ids.EpochPair) error {
	var state, ok = m.actorStates[actorID]
	if !ok {
		invariantf("collect: actor %d has no recorded state", actorID)
	}

	var graphID, finished = state.Collect(epoch)

	var graph, graphOK = m.graphStates[graphID]
	if !graphOK {
		invariantf("collect: partial graph %d (for actor %d) not found", graphID, actorID)
	}
	if err := graph.Collect(ctx, actorID, epoch); err != nil {
		return err
	}

	if finished {
		delete(m.actorStates, actorID)
		if h := state.Handle(); h != nil {
			if err := h.StopMonitor(); err != nil {
				log.WithFields(log.Fields{"actor_id": actorID, "epoch": epoch.String()}).
					WithError(err).Warn("actor monitor task reported an error while stopping")
			}
		}
	}
	return nil
}

// RegisterBarrierSender attaches sender to actorID's state, replaying any
// barriers already issued but not yet collected.
func (m *Manager) RegisterBarrierSender(actorID ids.ActorID, sender BarrierSender) error {
	var state, ok = m.actorStates[actorID]
	if !ok {
		invariantf("register_barrier_sender: actor %d has no recorded state", actorID)
	}
	return state.RegisterBarrierSender(sender)
}

// NextCompletedEpoch cooperatively polls every partial graph's head
// completion until one is ready, or ctx is cancelled. It is cancellation-
// safe: dropping a pending call and calling again observes the same
// eventual result for any graph whose completion was already computed.
// When the reported barrier carries an all-stop set, the shared context is
// notified to finalize those actors' teardown.
func (m *Manager) NextCompletedEpoch(ctx context.Context) (ids.PartialGraphID, uint64, error) {
	for {
		if graphID, prevEpoch, found := m.pollGraphs(); found {
			return graphID, prevEpoch, nil
		}
		select {
		case <-m.wake:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}
}

// pollGraphs scans graphStates in a deterministic (id-sorted) order so
// that tests see reproducible behavior across runs with multiple ready
// graphs; the spec makes no cross-graph ordering promise (spec.md §5).
func (m *Manager) pollGraphs() (ids.PartialGraphID, uint64, bool) {
	var graphIDs = make([]ids.PartialGraphID, 0, len(m.graphStates))
	for id := range m.graphStates {
		graphIDs = append(graphIDs, id)
	}
	sort.Slice(graphIDs, func(i, j int) bool { return graphIDs[i] < graphIDs[j] })

	for _, id := range graphIDs {
		var graph = m.graphStates[id]
		if prevEpoch, ready := graph.PollNextCompletedBarrier(); ready {
			m.onEpochCompleted(id, prevEpoch)
			return id, prevEpoch, true
		}
	}
	return 0, 0, false
}

func (m *Manager) onEpochCompleted(graphID ids.PartialGraphID, prevEpoch uint64) {
	var graph = m.graphStates[graphID]
	var st = graph.epochStates[prevEpoch]
	if st == nil || st.Barrier.AllStopActors == nil || len(st.Barrier.AllStopActors) == 0 {
		return
	}
	m.sharedCtx.DropActors(st.Barrier.AllStopActors)
}

// PopCompletedEpoch removes and returns the Completed result for
// (partialGraphID, prevEpoch).
func (m *Manager) PopCompletedEpoch(partialGraphID ids.PartialGraphID, prevEpoch uint64) (*PopResult, bool, error) {
	var graph, ok = m.graphStates[partialGraphID]
	if !ok {
		return nil, false, ErrUnknownEpoch
	}
	return graph.PopCompletedEpoch(prevEpoch)
}

// AbortActors force-aborts every actor's task handle concurrently and
// waits for all to finish, tolerating cancellation errors. It is the only
// forced-cancellation path in the manager.
func (m *Manager) AbortActors() error {
	var group errgroup.Group
	for _, state := range m.actorStates {
		var handle = state.Handle()
		if handle == nil {
			continue
		}
		group.Go(handle.Abort)
	}
	return group.Wait()
}

// DebugString renders a delta-compressed snapshot of every graph's
// barrier state, per spec.md §7.
func (m *Manager) DebugString() string {
	return debugString(m)
}
