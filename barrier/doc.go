// Package barrier implements the local barrier manager of a streaming
// dataflow node: the concurrent state machine that tracks which actors
// still owe a collection for each outstanding epoch, pipelines checkpoint
// synchronizations through an ordered completion queue, and interleaves
// actor lifecycle with barrier injection so starting actors receive every
// outstanding barrier and stopping actors are torn down only after their
// final one.
//
// The subsystem is organized in three layers, each with its own file in
// this package: ActorState (actor_state.go) tracks a single actor's
// outstanding barriers; PartialGraphState (partial_graph.go) tracks one
// coordinated subset of actors sharing a barrier epoch timeline, including
// its ordered completion FIFO (completion.go); and Manager (manager.go)
// owns every actor and graph state and exposes the four operations a
// transport calls: InjectBarrier, Collect, NextCompletedEpoch, and
// PopCompletedEpoch.
//
//	var mgr = barrier.New(actorManager, sharedContext, store, metricsSet, []ids.PartialGraphID{0})
//	if err := mgr.InjectBarrier(ctx, req); err != nil {
//	    // barrier-send failure or invariant violation
//	}
//	if err := mgr.Collect(ctx, actorID, epoch); err != nil {
//	    // ...
//	}
//	graphID, prevEpoch, err := mgr.NextCompletedEpoch(ctx)
//	result, ok, err := mgr.PopCompletedEpoch(graphID, prevEpoch)
package barrier
