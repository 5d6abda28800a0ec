package txn_test

import (
	"context"
	"testing"
	"time"

	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/txn"
)

func seedUnderwriting(t *testing.T, f *fixture) {
	f.seed(t,
		model.PlatformUser{ID: "MANAGER_1", Role: model.RoleSyndicateManager},
		model.Syndicate{ID: "SYNDICATE_1", Manager: "MANAGER_1", BalanceBLCK: 500, DebtsToInvestors: []string{}},
		model.InsuranceAgency{ID: "AGENCY_1", Broker: "BROKER", PolicyClaimRainThreshold: 10},
	)
}

func TestUnderwriteHappyPath(t *testing.T) {
	f := newFixture()
	seedUnderwriting(t, f)
	e := f.engineAs(t, identity.Actor{ID: "MANAGER_1", Role: model.RoleSyndicateManager})

	err := e.UnderwritePolicies(context.Background(), txn.UnderwritePolicies{
		Syndicate: "SYNDICATE_1", Agency: "AGENCY_1", UnderwritingAmount: 500,
	})
	if err != nil {
		t.Fatal(err)
	}

	syndicate := f.syndicate(t, "SYNDICATE_1")
	agency := f.agency(t, "AGENCY_1")
	if agency.PolicyUnderwriter != "SYNDICATE_1" {
		t.Fatalf("expected agency underwriter SYNDICATE_1, got %q", agency.PolicyUnderwriter)
	}
	if syndicate.FundsBoundToAgency == "" {
		t.Fatal("expected funds bound to agency")
	}

	obligation := f.obligation(t, syndicate.FundsBoundToAgency)
	if obligation.Amount != 500 || obligation.Obligee != "AGENCY_1" {
		t.Fatalf("unexpected obligation %+v", obligation)
	}
}

func TestUnderwriteMovesNoBalance(t *testing.T) {
	f := newFixture()
	seedUnderwriting(t, f)
	e := f.engineAs(t, identity.Actor{ID: "MANAGER_1", Role: model.RoleSyndicateManager})

	if err := e.UnderwritePolicies(context.Background(), txn.UnderwritePolicies{
		Syndicate: "SYNDICATE_1", Agency: "AGENCY_1", UnderwritingAmount: 200,
	}); err != nil {
		t.Fatal(err)
	}

	// Underwriting records a pledge, not a transfer.
	if got := f.syndicate(t, "SYNDICATE_1").BalanceBLCK; got != 500 {
		t.Fatalf("syndicate balance changed by underwriting: %d", got)
	}
}

func TestUnderwriteNonPositiveAmount(t *testing.T) {
	f := newFixture()
	seedUnderwriting(t, f)
	e := f.engineAs(t, identity.Actor{ID: "MANAGER_1", Role: model.RoleSyndicateManager})

	for _, amount := range []int64{0, -100} {
		err := e.UnderwritePolicies(context.Background(), txn.UnderwritePolicies{
			Syndicate: "SYNDICATE_1", Agency: "AGENCY_1", UnderwritingAmount: amount,
		})
		wantKind(t, err, txn.ErrorValidation)
	}
	if f.countRecords(t, model.KindObligation) != 0 {
		t.Fatal("obligation created on rejected underwriting")
	}
}

func TestUnderwriteOnlyManager(t *testing.T) {
	f := newFixture()
	seedUnderwriting(t, f)
	f.seed(t, model.PlatformUser{ID: "MANAGER_2", Role: model.RoleSyndicateManager})
	e := f.engineAs(t, identity.Actor{ID: "MANAGER_2", Role: model.RoleSyndicateManager})

	err := e.UnderwritePolicies(context.Background(), txn.UnderwritePolicies{
		Syndicate: "SYNDICATE_1", Agency: "AGENCY_1", UnderwritingAmount: 100,
	})
	wantKind(t, err, txn.ErrorAuthorization)
	if f.agency(t, "AGENCY_1").PolicyUnderwriter != "" {
		t.Fatal("agency underwriter set on rejected underwriting")
	}
}

func TestUnderwriteOverwritesPriorPledge(t *testing.T) {
	f := newFixture()
	seedUnderwriting(t, f)
	e := f.engineAs(t, identity.Actor{ID: "MANAGER_1", Role: model.RoleSyndicateManager})
	ctx := context.Background()

	if err := e.UnderwritePolicies(ctx, txn.UnderwritePolicies{
		Syndicate: "SYNDICATE_1", Agency: "AGENCY_1", UnderwritingAmount: 100,
	}); err != nil {
		t.Fatal(err)
	}
	first := f.syndicate(t, "SYNDICATE_1").FundsBoundToAgency

	f.now = f.now.Add(time.Hour)
	if err := e.UnderwritePolicies(ctx, txn.UnderwritePolicies{
		Syndicate: "SYNDICATE_1", Agency: "AGENCY_1", UnderwritingAmount: 300,
	}); err != nil {
		t.Fatal(err)
	}
	second := f.syndicate(t, "SYNDICATE_1").FundsBoundToAgency

	if first == second {
		t.Fatal("expected the pledge to be replaced")
	}
	if f.obligation(t, second).Amount != 300 {
		t.Fatal("expected the new pledge amount to win")
	}
}

func TestUnderwriteUnknownAgency(t *testing.T) {
	f := newFixture()
	seedUnderwriting(t, f)
	e := f.engineAs(t, identity.Actor{ID: "MANAGER_1", Role: model.RoleSyndicateManager})

	err := e.UnderwritePolicies(context.Background(), txn.UnderwritePolicies{
		Syndicate: "SYNDICATE_1", Agency: "AGENCY_MISSING", UnderwritingAmount: 100,
	})
	wantKind(t, err, txn.ErrorNotFound)
}
