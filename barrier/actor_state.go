package barrier

import (
	"go.streamcore.dev/engine/actor"
	"go.streamcore.dev/engine/ids"
)

// BarrierSender pushes barriers into a single actor task. It mirrors
// gazette's own pattern of selecting between a send and a cancellation
// signal (see append_fsm.go's recv-chunk loop): a send only succeeds if
// the actor is still listening by the time it's attempted.
type BarrierSender struct {
	C    chan<- Barrier
	Done <-chan struct{}
}

// send pushes b on C, or reports failure if Done fires first.
func (s BarrierSender) send(b Barrier) error {
	select {
	case s.C <- b:
		return nil
	case <-s.Done:
		return errSenderClosed
	}
}

var errSenderClosed = errSenderClosedType{}

type errSenderClosedType struct{}

func (errSenderClosedType) Error() string { return "barrier sender's receiver has gone away" }

type actorStatusKind int

const (
	statusIssuedFirst actorStatusKind = iota
	statusRunning
)

// actorStatus is either IssuedFirst(pending) -- the actor has received
// barriers but not yet collected its first -- or Running(maxIssuedPrev).
// Once an actor has collected once it can never regress to IssuedFirst.
type actorStatus struct {
	kind               actorStatusKind
	pending            []Barrier
	maxIssuedPrevEpoch uint64
}

func (s actorStatus) maxIssued() uint64 {
	switch s.kind {
	case statusRunning:
		return s.maxIssuedPrevEpoch
	default:
		if len(s.pending) == 0 {
			return 0
		}
		return s.pending[len(s.pending)-1].Epoch.Prev
	}
}

// inflightEntry is one outstanding barrier an actor has been issued but
// not yet collected, named by the partial graph it belongs to.
type inflightEntry struct {
	prevEpoch uint64
	graph     ids.PartialGraphID
}

// inflightQueue is the ordered map the spec calls inflight_barriers.
// Entries are always appended in strictly increasing prevEpoch order (an
// invariant IssueBarrier enforces before pushing), so a plain append-only
// slice with front-popping suffices; there is no need for a balanced tree
// or a separate index.
type inflightQueue struct {
	entries []inflightEntry
}

func (q *inflightQueue) push(prevEpoch uint64, graph ids.PartialGraphID) {
	if n := len(q.entries); n > 0 && q.entries[n-1].prevEpoch >= prevEpoch {
		invariantf("inflight barriers must be strictly increasing: last=%d new=%d", q.entries[n-1].prevEpoch, prevEpoch)
	}
	q.entries = append(q.entries, inflightEntry{prevEpoch: prevEpoch, graph: graph})
}

func (q *inflightQueue) popFront() (inflightEntry, bool) {
	if len(q.entries) == 0 {
		return inflightEntry{}, false
	}
	var e = q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

func (q *inflightQueue) empty() bool { return len(q.entries) == 0 }

// ActorState is the per-actor bookkeeping described in spec.md §3 as
// InflightActorState: which barriers it still owes a collect for, the
// channels it's pushed barriers through, and the task handle that owns its
// execution.
type ActorState struct {
	ActorID    ids.ActorID
	senders    []BarrierSender
	inflight   inflightQueue
	status     actorStatus
	isStopping bool
	handle     *actor.Handle
}

// StartActorState initializes a freshly spawned actor's state with its
// first, not-yet-collected barrier.
func StartActorState(actorID ids.ActorID, graph ids.PartialGraphID, initial Barrier, handle *actor.Handle) *ActorState {
	var s = &ActorState{ActorID: actorID, handle: handle}
	s.inflight.push(initial.Epoch.Prev, graph)
	s.status = actorStatus{kind: statusIssuedFirst, pending: []Barrier{initial}}
	if initial.isAllStop(actorID) {
		s.isStopping = true
	}
	return s
}

// IssueBarrier pushes barrier to every registered sender and records it as
// outstanding. isStop marks the actor for teardown once this barrier is
// collected. It is a programming error to issue into a stopping actor or
// out of epoch order.
func (s *ActorState) IssueBarrier(graph ids.PartialGraphID, barrier Barrier, isStop bool) error {
	if s.isStopping {
		invariantf("actor %d: issue_barrier called after actor was marked all-stop", s.ActorID)
	}
	if barrier.Epoch.Prev <= s.status.maxIssued() {
		invariantf("actor %d: barrier %s issued out of order (max issued prev=%d)", s.ActorID, barrier.Epoch, s.status.maxIssued())
	}

	for _, sender := range s.senders {
		if err := sender.send(barrier); err != nil {
			return &SendError{ActorID: s.ActorID, Epoch: barrier.Epoch, Cause: err}
		}
	}

	s.inflight.push(barrier.Epoch.Prev, graph)
	switch s.status.kind {
	case statusIssuedFirst:
		s.status.pending = append(s.status.pending, barrier)
	case statusRunning:
		s.status.maxIssuedPrevEpoch = barrier.Epoch.Prev
	}
	if isStop {
		s.isStopping = true
	}
	return nil
}

// Collect pops the earliest outstanding barrier, asserting it matches
// epoch, and reports which partial graph it belonged to plus whether this
// was the actor's last outstanding barrier and it is marked for teardown.
func (s *ActorState) Collect(epoch ids.EpochPair) (graph ids.PartialGraphID, finished bool) {
	var entry, ok = s.inflight.popFront()
	if !ok {
		invariantf("actor %d: collect(%s) with no outstanding barriers", s.ActorID, epoch)
	}
	if entry.prevEpoch != epoch.Prev {
		invariantf("actor %d: collect(%s) does not match earliest outstanding barrier (prev=%d)", s.ActorID, epoch, entry.prevEpoch)
	}

	if s.status.kind == statusIssuedFirst {
		var last = s.status.pending[len(s.status.pending)-1]
		s.status = actorStatus{kind: statusRunning, maxIssuedPrevEpoch: last.Epoch.Prev}
	}

	return entry.graph, s.inflight.empty() && s.isStopping
}

// RegisterBarrierSender attaches sender, replaying every barrier already
// issued but not yet collected so a late-registering sender (one that
// joins after the first barrier but before the first collect) observes
// the full history. Once the actor has collected once, registering a new
// sender is a programming error: there is no pending history left to
// replay and the contract cannot regress.
func (s *ActorState) RegisterBarrierSender(sender BarrierSender) error {
	if s.status.kind != statusIssuedFirst {
		invariantf("actor %d: register_barrier_sender called after first collect", s.ActorID)
	}
	for _, pending := range s.status.pending {
		if err := sender.send(pending); err != nil {
			return &SendError{ActorID: s.ActorID, Epoch: pending.Epoch, Cause: err}
		}
	}
	s.senders = append(s.senders, sender)
	return nil
}

// Finished reports whether this actor has no outstanding barriers and has
// been marked for teardown -- the exact condition under which the manager
// must remove it from actorStates (spec.md §3 invariant).
func (s *ActorState) Finished() bool {
	return s.inflight.empty() && s.isStopping
}

// Handle returns the task handle owning this actor's execution, for
// AbortActors.
func (s *ActorState) Handle() *actor.Handle { return s.handle }
