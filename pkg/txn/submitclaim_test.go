package txn_test

import (
	"context"
	"testing"
	"time"

	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/txn"
)

func seedClaims(t *testing.T, f *fixture) {
	f.seed(t,
		model.PlatformUser{ID: "RAIN_ORACLE", Role: model.RoleRainOracle},
		model.PlatformUser{ID: "HOLDER_1", Role: model.RolePolicyHolder},
		model.Syndicate{ID: "SYNDICATE_1", Manager: "MANAGER_1", BalanceBLCK: 100},
		model.InsuranceAgency{
			ID:                       "AGENCY_1",
			Broker:                   "BROKER",
			PolicyUnderwriter:        "SYNDICATE_1",
			PolicyClaimRainThreshold: 10,
		},
		model.Policy{
			ID:            "POLICY_1",
			PolicyHolder:  "HOLDER_1",
			IssuingBroker: "BROKER",
			Claims:        []string{},
		},
	)
}

func oracle() identity.Actor {
	return identity.Actor{ID: "RAIN_ORACLE", Role: model.RoleRainOracle}
}

func rainyClaim() txn.SubmitClaim {
	return txn.SubmitClaim{
		PolicyID:          "POLICY_1",
		RainLast24Hours:   25,
		CloudsLast24Hours: 80,
		HighTempLast24:    14,
		HighWaveLast24:    0.5,
	}
}

func TestSubmitClaimHappyPath(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, oracle())

	if err := e.SubmitClaim(context.Background(), rainyClaim()); err != nil {
		t.Fatal(err)
	}

	// 2026-06-01T12:00:00Z in epoch milliseconds.
	wantClaimID := "POLICY_1_1780315200000"
	claim := f.claim(t, wantClaimID)
	if claim.RainLast24Hours != 25 || claim.ClaimDate != "2026-06-01T12:00:00Z" {
		t.Fatalf("unexpected claim %+v", claim)
	}
	if claim.Settlement != "SETTLEMENT_"+wantClaimID {
		t.Fatalf("unexpected settlement reference %q", claim.Settlement)
	}

	settlement := f.payment(t, "SETTLEMENT_"+wantClaimID)
	if settlement.Amount != 1 {
		t.Fatalf("settlement amount should be 1, got %d", settlement.Amount)
	}
	if settlement.From != "SYNDICATE_1" || settlement.To != "HOLDER_1" {
		t.Fatalf("unexpected settlement endpoints %+v", settlement)
	}
	if settlement.Approved {
		t.Fatal("settlement should start unapproved when the agency does not auto-settle")
	}

	policy := f.policy(t, "POLICY_1")
	if len(policy.Claims) != 1 || policy.Claims[0] != wantClaimID {
		t.Fatalf("claim not recorded on policy: %+v", policy.Claims)
	}
	if policy.LastClaimDate != claim.ClaimDate {
		t.Fatalf("last claim date not advanced: %q", policy.LastClaimDate)
	}
}

func TestSubmitClaimAutoSettle(t *testing.T) {
	f := newFixture()
	f.seed(t,
		model.PlatformUser{ID: "RAIN_ORACLE", Role: model.RoleRainOracle},
		model.PlatformUser{ID: "HOLDER_1", Role: model.RolePolicyHolder},
		model.InsuranceAgency{
			ID:                       "AGENCY_1",
			Broker:                   "BROKER",
			PolicyUnderwriter:        "SYNDICATE_1",
			PolicyClaimRainThreshold: 10,
			AutoSettleClaims:         true,
		},
		model.Policy{ID: "POLICY_1", PolicyHolder: "HOLDER_1", IssuingBroker: "BROKER"},
	)
	e := f.engineAs(t, oracle())

	if err := e.SubmitClaim(context.Background(), rainyClaim()); err != nil {
		t.Fatal(err)
	}
	settlement := f.payment(t, "SETTLEMENT_POLICY_1_1780315200000")
	if !settlement.Approved {
		t.Fatal("auto-settling agency should approve the settlement immediately")
	}
}

func TestSubmitClaimBelowThreshold(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, oracle())

	req := rainyClaim()
	req.RainLast24Hours = 9.9
	err := e.SubmitClaim(context.Background(), req)
	wantKind(t, err, txn.ErrorValidation)

	if f.countRecords(t, model.KindClaim) != 0 {
		t.Fatal("claim created below threshold")
	}
	if f.countRecords(t, model.KindPayment) != 0 {
		t.Fatal("settlement created below threshold")
	}
	if len(f.notifier.Events()) != 0 {
		t.Fatal("event emitted for rejected claim")
	}
}

// A dry reading is rejected for insufficient rain even on a policy that has
// never claimed before, i.e. the threshold check is independent of cooldown.
func TestSubmitClaimThresholdIndependentOfCooldown(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, oracle())

	req := rainyClaim()
	req.RainLast24Hours = 0
	wantKind(t, e.SubmitClaim(context.Background(), req), txn.ErrorValidation)
}

func TestSubmitClaimCooldown(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, oracle())
	ctx := context.Background()

	if err := e.SubmitClaim(ctx, rainyClaim()); err != nil {
		t.Fatal(err)
	}

	// 23 hours later: still in cooldown.
	f.now = f.now.Add(23 * time.Hour)
	wantKind(t, e.SubmitClaim(ctx, rainyClaim()), txn.ErrorValidation)
	if f.countRecords(t, model.KindClaim) != 1 {
		t.Fatal("second claim created inside cooldown")
	}

	// Exactly 24 hours after the first claim: allowed again.
	f.now = f.now.Add(time.Hour)
	if err := e.SubmitClaim(ctx, rainyClaim()); err != nil {
		t.Fatal(err)
	}
	if got := len(f.policy(t, "POLICY_1").Claims); got != 2 {
		t.Fatalf("expected 2 claims on policy, got %d", got)
	}
}

func TestSubmitClaimRuleRejects(t *testing.T) {
	f := newFixture()
	f.seed(t,
		model.PlatformUser{ID: "RAIN_ORACLE", Role: model.RoleRainOracle},
		model.PlatformUser{ID: "HOLDER_1", Role: model.RolePolicyHolder},
		model.InsuranceAgency{
			ID:                       "AGENCY_1",
			Broker:                   "BROKER",
			PolicyUnderwriter:        "SYNDICATE_1",
			PolicyClaimRainThreshold: 10,
			ClaimRule:                "rain > 20.0 && clouds > 90.0",
		},
		model.Policy{ID: "POLICY_1", PolicyHolder: "HOLDER_1", IssuingBroker: "BROKER"},
	)
	e := f.engineAs(t, oracle())
	ctx := context.Background()

	req := rainyClaim() // clouds 80, rule requires > 90
	wantKind(t, e.SubmitClaim(ctx, req), txn.ErrorValidation)

	req.CloudsLast24Hours = 95
	if err := e.SubmitClaim(ctx, req); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitClaimOnlyRainOracle(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, identity.Actor{ID: "BROKER", Role: model.RoleBroker})

	err := e.SubmitClaim(context.Background(), rainyClaim())
	wantKind(t, err, txn.ErrorAuthorization)
}

func TestSubmitClaimUnknownPolicy(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, oracle())

	req := rainyClaim()
	req.PolicyID = "POLICY_MISSING"
	wantKind(t, e.SubmitClaim(context.Background(), req), txn.ErrorNotFound)
}

func TestSubmitClaimNoAgencyForBroker(t *testing.T) {
	f := newFixture()
	f.seed(t,
		model.PlatformUser{ID: "RAIN_ORACLE", Role: model.RoleRainOracle},
		model.Policy{ID: "POLICY_1", PolicyHolder: "HOLDER_1", IssuingBroker: "BROKER"},
		model.InsuranceAgency{ID: "AGENCY_OTHER", Broker: "SOME_OTHER_BROKER"},
	)
	e := f.engineAs(t, oracle())

	wantKind(t, e.SubmitClaim(context.Background(), rainyClaim()), txn.ErrorNotFound)
}

func TestSubmitClaimEventPayload(t *testing.T) {
	f := newFixture()
	seedClaims(t, f)
	e := f.engineAs(t, oracle())

	if err := e.SubmitClaim(context.Background(), rainyClaim()); err != nil {
		t.Fatal(err)
	}

	published := f.notifier.Events()
	if len(published) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(published))
	}
	if published[0].Kind != events.KindClaimSubmitted {
		t.Fatalf("unexpected event kind %s", published[0].Kind)
	}
	payload, ok := published[0].Payload.(events.ClaimSubmitted)
	if !ok {
		t.Fatalf("unexpected payload type %T", published[0].Payload)
	}
	if payload.ClaimID != "POLICY_1_1780315200000" || payload.SettlementPaymentID != "SETTLEMENT_POLICY_1_1780315200000" {
		t.Fatalf("unexpected payload identifiers %+v", payload)
	}
	if payload.Amount != 1 || payload.PaidFrom != "SYNDICATE_1" || payload.PaidTo != "HOLDER_1" {
		t.Fatalf("unexpected payload settlement fields %+v", payload)
	}
	if payload.Approved {
		t.Fatal("payload should carry the unapproved settlement state")
	}
}
