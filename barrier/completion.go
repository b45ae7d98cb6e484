package barrier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/trace"

	"go.streamcore.dev/engine/ids"
	"go.streamcore.dev/engine/metrics"
	"go.streamcore.dev/engine/statestore"
)

// ProgressState is a materialized-view backfill progress report an actor
// attaches to the epoch it was collected under. The barrier manager
// forwards these verbatim to the completion result; it never interprets
// them.
type ProgressState struct {
	Done          bool
	ConsumedEpoch uint64
}

// completionResult is what a completion future ultimately produces: the
// checkpoint sync outcome (nil for non-checkpoint barriers), any sync
// error, and the mview progress collected for this epoch.
type completionResult struct {
	Outcome  *statestore.SyncOutcome
	Err      error
	Progress map[ids.ActorID]ProgressState
}

// completionFuture is the single future scheduled per AllCollected
// transition (spec.md §4.3). It is backed by a goroutine rather than a
// language-level async primitive, with a buffered result channel so the
// goroutine never blocks on a consumer that has stopped polling.
//
// poll caches its result after the first successful receive so that
// repeated, non-consuming polls -- the cancel-safety property spec.md §8
// calls for -- observe the exact same outcome.
type completionFuture struct {
	prevEpoch uint64
	// correlationID tags this completion's trace span so a single sync
	// attempt can be told apart even though prevEpoch numbering restarts
	// per partial graph.
	correlationID uuid.UUID
	done          chan completionResult
	result        *completionResult
}

// scheduleCompletion starts the sync (or no-op) work for one AllCollected
// epoch and returns the future that will carry its result into the
// partial graph's ordered queue.
func scheduleCompletion(
	ctx context.Context,
	store statestore.Store,
	metricsSet *metrics.Set,
	partialGraphID ids.PartialGraphID,
	barrier Barrier,
	tableIDs ids.TableSet,
	progress map[ids.ActorID]ProgressState,
	notify func(),
) *completionFuture {
	var f = &completionFuture{
		prevEpoch:     barrier.Epoch.Prev,
		correlationID: uuid.New(),
		done:          make(chan completionResult, 1),
	}

	go func() {
		var result = completionResult{Progress: progress}

		if barrier.Kind == KindCheckpoint {
			var tr = trace.New("barrier.sync", fmt.Sprintf("graph=%d prev=%d corr=%s", partialGraphID, barrier.Epoch.Prev, f.correlationID))
			var start = time.Now()

			outcome, err := store.Sync(ctx, barrier.Epoch.Prev, tableIDs)

			if metricsSet != nil {
				metricsSet.SyncLatency.
					WithLabelValues(fmt.Sprint(partialGraphID)).
					Observe(time.Since(start).Seconds())
			}
			if err != nil {
				tr.SetError()
				tr.LazyPrintf("sync failed: %v", err)
				result.Err = err
			} else {
				result.Outcome = &outcome
			}
			tr.Finish()
		}

		f.done <- result
		if notify != nil {
			notify()
		}
	}()

	return f
}

// poll returns the future's result and true if it is ready. It never
// blocks, and is safe to call repeatedly: once ready, the same result is
// returned on every subsequent call.
func (f *completionFuture) poll() (completionResult, bool) {
	if f.result != nil {
		return *f.result, true
	}
	select {
	case r := <-f.done:
		f.result = &r
		return r, true
	default:
		return completionResult{}, false
	}
}

// completionFIFO is the ordered queue of pending completion futures
// described in spec.md §9: completions are reported strictly in the order
// they were enqueued, which is not necessarily the order in which their
// underlying futures become ready. Ordering is enforced by only ever
// inspecting the head of the queue, never by the prevEpoch map key order.
type completionFIFO struct {
	futures []*completionFuture
}

func (q *completionFIFO) pushBack(f *completionFuture) {
	q.futures = append(q.futures, f)
}

func (q *completionFIFO) front() (*completionFuture, bool) {
	if len(q.futures) == 0 {
		return nil, false
	}
	return q.futures[0], true
}

func (q *completionFIFO) popFront() {
	if len(q.futures) > 0 {
		q.futures = q.futures[1:]
	}
}

func (q *completionFIFO) empty() bool { return len(q.futures) == 0 }
