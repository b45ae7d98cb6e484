// Package actor defines the collaborator surface the barrier manager uses
// to spawn and own the lifecycle of operator-instance tasks. The manager
// never runs actor business logic itself; it asks a Manager to spawn one,
// and holds on to the Handle it gets back so it can wait for or abort the
// resulting task and, independently, its auxiliary monitor task.
package actor

import (
	"context"

	"go.streamcore.dev/engine/ids"
)

// Descriptor is an opaque, transport-supplied description of an actor to
// spawn: its identity plus whatever application-specific configuration the
// real operator needs. The barrier manager never inspects Config.
type Descriptor struct {
	ActorID ids.ActorID
	Config  []byte
}

// SubscriptionSnapshot is the refcounted mv_depended_subscriptions view a
// newly spawned actor is handed so it can seed its own materialized-view
// bookkeeping consistently with the partial graph it is joining.
type SubscriptionSnapshot map[ids.TableID][]ids.SubscriberID

// SharedContext is passed through to SpawnActor so that actor tasks can
// reach whatever cross-cutting runtime state (journal clients, state-store
// handles, etc.) the host process wires up. The barrier manager treats it
// as opaque.
type SharedContext interface{}

// Handle owns an actor's running task and, optionally, an independent
// auxiliary monitoring task spawned alongside it. The two are cancelled
// separately: StopMonitor tears down only the monitor (used once the
// actor's final barrier has been collected and there's nothing left to
// monitor), while Abort tears down both.
type Handle struct {
	mainCancel context.CancelFunc
	mainDone   chan error

	monCancel context.CancelFunc
	monDone   chan error // nil if this actor has no monitor task
}

// Spawn starts run (the actor's main loop) under a context derived from
// ctx, and, if monitor is non-nil, an independently cancellable monitoring
// loop. Both functions are expected to return promptly once their context
// is cancelled.
func Spawn(ctx context.Context, run func(context.Context) error, monitor func(context.Context) error) *Handle {
	var mainCtx, mainCancel = context.WithCancel(ctx)
	var mainDone = make(chan error, 1)
	go func() { mainDone <- run(mainCtx) }()

	var h = &Handle{mainCancel: mainCancel, mainDone: mainDone}
	if monitor != nil {
		var monCtx, monCancel = context.WithCancel(ctx)
		h.monCancel = monCancel
		h.monDone = make(chan error, 1)
		go func(monDone chan error) { monDone <- monitor(monCtx) }(h.monDone)
	}
	return h
}

// HasMonitor reports whether this handle owns an independent monitor
// task, mirroring the data model's optional monitor_task_handle field.
func (h *Handle) HasMonitor() bool { return h.monCancel != nil }

// StopMonitor cancels and awaits the monitor task only, leaving the main
// actor task untouched. It is a no-op if there is no monitor task. A
// context.Canceled error from the monitor is swallowed.
func (h *Handle) StopMonitor() error {
	if h.monCancel == nil {
		return nil
	}
	h.monCancel()
	if err := <-h.monDone; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Abort cancels both the actor's main task and its monitor task (if any),
// then waits for both to exit. A context.Canceled error from either is
// swallowed: forced cancellation is expected, not a failure.
func (h *Handle) Abort() error {
	h.mainCancel()
	var mainErr = <-h.mainDone
	var monErr = h.StopMonitor()

	if mainErr != nil && mainErr != context.Canceled {
		return mainErr
	}
	return monErr
}

// Manager spawns actor tasks on behalf of the barrier manager. A real
// implementation wires this to the engine's operator runtime; tests and
// degraded/testing-mode deployments may use IdleManager below.
type Manager interface {
	// SpawnActor starts the actor described by desc, returning a Handle
	// that owns its task (and optional monitor task). The returned error
	// aborts the enclosing InjectBarrier call.
	SpawnActor(ctx context.Context, desc Descriptor, subs SubscriptionSnapshot, shared SharedContext) (*Handle, error)
}

// IdleManager spawns placeholder actor tasks that do nothing but wait for
// cancellation. It backs the manager's testing mode (spec.md §4.4:
// "In a testing mode, missing actors are filled with idle placeholder
// tasks"), letting barrier-manager tests exercise spawn/stop interleaving
// without a real operator runtime.
type IdleManager struct{}

// SpawnActor implements Manager by starting a no-op task that blocks on
// ctx.Done().
func (IdleManager) SpawnActor(ctx context.Context, _ Descriptor, _ SubscriptionSnapshot, _ SharedContext) (*Handle, error) {
	return Spawn(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}, nil), nil
}
