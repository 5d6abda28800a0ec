package txn_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/registry"
	"github.com/stormsure/marketplace/pkg/rules"
	"github.com/stormsure/marketplace/pkg/txn"
)

// fixture wires an engine over an in-memory store with a controllable clock
// and a recording notifier.
type fixture struct {
	store    *registry.MemoryStore
	notifier *events.Memory
	now      time.Time
}

func newFixture() *fixture {
	return &fixture{
		store:    registry.NewMemoryStore(),
		notifier: events.NewMemory(),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) guard() identity.Guard {
	return identity.NewGuard(identity.WellKnown{BrokerID: "BROKER", RainOracleID: "RAIN_ORACLE"})
}

// engineAs builds an engine whose current actor is fixed.
func (f *fixture) engineAs(t *testing.T, actor identity.Actor) *txn.Engine {
	t.Helper()
	ev, err := rules.NewEvaluator()
	if err != nil {
		t.Fatal(err)
	}
	return txn.NewEngine(f.store, identity.Static{Actor: actor}, f.guard(), f.notifier,
		txn.WithClock(func() time.Time { return f.now }),
		txn.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		txn.WithRules(ev),
	)
}

func (f *fixture) seed(t *testing.T, recs ...model.Record) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range recs {
		var set registry.WriteSet
		if err := set.Add(rec); err != nil {
			t.Fatal(err)
		}
		if err := f.store.Apply(ctx, &set); err != nil {
			t.Fatal(err)
		}
	}
}

func (f *fixture) user(t *testing.T, id string) model.PlatformUser {
	t.Helper()
	u, err := txn.NewRegistries(f.store).Users.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) syndicate(t *testing.T, id string) model.Syndicate {
	t.Helper()
	s, err := txn.NewRegistries(f.store).Syndicates.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *fixture) agency(t *testing.T, id string) model.InsuranceAgency {
	t.Helper()
	a, err := txn.NewRegistries(f.store).Agencies.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (f *fixture) policy(t *testing.T, id string) model.Policy {
	t.Helper()
	p, err := txn.NewRegistries(f.store).Policies.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) claim(t *testing.T, id string) model.Claim {
	t.Helper()
	c, err := txn.NewRegistries(f.store).Claims.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func (f *fixture) payment(t *testing.T, id string) model.Payment {
	t.Helper()
	p, err := txn.NewRegistries(f.store).Payments.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) obligation(t *testing.T, id string) model.Obligation {
	t.Helper()
	o, err := txn.NewRegistries(f.store).Obligations.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

// countRecords reports how many records of a kind exist.
func (f *fixture) countRecords(t *testing.T, kind model.Kind) int {
	t.Helper()
	raws, err := f.store.List(context.Background(), kind)
	if err != nil {
		t.Fatal(err)
	}
	return len(raws)
}

func wantKind(t *testing.T, err error, kind txn.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := txn.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, got, err)
	}
}
