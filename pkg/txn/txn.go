// Package txn implements the marketplace's transaction handlers: validated,
// atomic state transitions over the ledger's record registries.
//
// Every handler follows the same shape: resolve the current actor, read what
// validation needs, validate, compute the new and updated records, submit
// them as one atomic write set, and on success publish at most one event.
// A rejected invocation performs zero writes.
package txn

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stormsure/marketplace/pkg/clock"
	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/observability"
	"github.com/stormsure/marketplace/pkg/registry"
	"github.com/stormsure/marketplace/pkg/rules"
)

// Registries bundles the typed views of every record collection over one
// shared store.
type Registries struct {
	Users       registry.Registry[model.PlatformUser]
	Syndicates  registry.Registry[model.Syndicate]
	Agencies    registry.Registry[model.InsuranceAgency]
	Products    registry.Registry[model.Product]
	Policies    registry.Registry[model.Policy]
	Claims      registry.Registry[model.Claim]
	Payments    registry.Registry[model.Payment]
	Obligations registry.Registry[model.Obligation]
}

// NewRegistries builds the typed registries over a store.
func NewRegistries(store registry.Store) Registries {
	return Registries{
		Users:       registry.NewRegistry[model.PlatformUser](store),
		Syndicates:  registry.NewRegistry[model.Syndicate](store),
		Agencies:    registry.NewRegistry[model.InsuranceAgency](store),
		Products:    registry.NewRegistry[model.Product](store),
		Policies:    registry.NewRegistry[model.Policy](store),
		Claims:      registry.NewRegistry[model.Claim](store),
		Payments:    registry.NewRegistry[model.Payment](store),
		Obligations: registry.NewRegistry[model.Obligation](store),
	}
}

// Engine executes transactions. It holds no state across invocations beyond
// what the store persists; each invocation is independently re-entrant.
type Engine struct {
	store    registry.Store
	regs     Registries
	actors   identity.Provider
	guard    identity.Guard
	notifier events.Notifier
	rules    *rules.Evaluator
	clock    clock.Clock
	logger   *slog.Logger
	obs      *observability.Provider
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock pins the engine's clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger injects the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRules enables CEL claim-eligibility rules.
func WithRules(ev *rules.Evaluator) Option {
	return func(e *Engine) { e.rules = ev }
}

// WithObservability records traces and RED metrics per transaction kind.
func WithObservability(p *observability.Provider) Option {
	return func(e *Engine) { e.obs = p }
}

// NewEngine wires a transaction engine over a store, an actor provider, an
// identity guard and a notifier.
func NewEngine(store registry.Store, actors identity.Provider, guard identity.Guard, notifier events.Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		regs:     NewRegistries(store),
		actors:   actors,
		guard:    guard,
		notifier: notifier,
		clock:    clock.System,
		logger:   slog.Default().With("component", "txn"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registries exposes the typed registries for seeding and inspection.
func (e *Engine) Registries() Registries { return e.regs }

// begin starts instrumentation for one invocation; the returned func is
// called with the handler's outcome.
func (e *Engine) begin(ctx context.Context, op string) func(error) {
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		if e.obs != nil {
			e.obs.RecordTransaction(ctx, op, elapsed, err)
		}
		if err != nil {
			e.logger.WarnContext(ctx, "transaction rejected",
				"op", op, "kind", string(KindOf(err)), "reason", err.Error())
			return
		}
		e.logger.InfoContext(ctx, "transaction committed", "op", op, "elapsed", elapsed)
	}
}

// currentActor resolves the authenticated submitter.
func (e *Engine) currentActor(ctx context.Context) (identity.Actor, error) {
	actor, err := e.actors.CurrentActor(ctx)
	if err != nil {
		return identity.Actor{}, authorization(err)
	}
	return actor, nil
}

// readErr maps a registry read failure into the transaction taxonomy.
func readErr(err error, what string) *Error {
	if errors.Is(err, registry.ErrNotFound) {
		return notFoundf(err, "%s does not exist", what)
	}
	return infrastructure(err, "reading "+what)
}

// apply commits a write set and maps failures into the taxonomy. A conflict
// on a caller-chosen ID is a bad request; anything else is the ledger port
// failing underneath us.
func (e *Engine) apply(ctx context.Context, set *registry.WriteSet) error {
	if err := e.store.Apply(ctx, set); err != nil {
		if errors.Is(err, registry.ErrConflict) || errors.Is(err, registry.ErrNotFound) {
			return validation("write set rejected by the ledger", err)
		}
		return infrastructure(err, "committing write set")
	}
	return nil
}

// publish delivers an event after a successful commit. Delivery failures are
// logged, not surfaced: the transaction has already committed.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(ctx, ev); err != nil {
		e.logger.ErrorContext(ctx, "event publish failed", "kind", string(ev.Kind), "error", err)
	}
}

func (e *Engine) now() time.Time { return e.clock() }

// stage builds a write set from new records and replacements.
func stage(adds []model.Record, updates []model.Record) (*registry.WriteSet, error) {
	var set registry.WriteSet
	for _, rec := range adds {
		if err := set.Add(rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range updates {
		if err := set.Update(rec); err != nil {
			return nil, err
		}
	}
	return &set, nil
}
