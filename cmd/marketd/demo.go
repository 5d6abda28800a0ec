package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/stormsure/marketplace/pkg/config"
	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/schema"
	"github.com/stormsure/marketplace/pkg/txn"
)

// demo drives one pass through the marketplace transaction flow.
type demo struct {
	engine    *txn.Engine
	regs      txn.Registries
	validator *schema.Validator
	verifier  *identity.TokenVerifier
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// as authenticates an actor for the next call. With tokens enabled the
// actor round-trips through a signed token, the same path an external
// client would take.
func (d *demo) as(ctx context.Context, a identity.Actor) (context.Context, error) {
	if d.verifier == nil {
		return identity.WithActor(ctx, a), nil
	}
	token, err := d.verifier.GenerateToken(a, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("mint token for %q: %w", a.ID, err)
	}
	verified, err := d.verifier.ActorFromToken(token)
	if err != nil {
		return nil, fmt.Errorf("verify token for %q: %w", a.ID, err)
	}
	return identity.WithActor(ctx, verified), nil
}

// submit validates a request body against its schema, decodes it and
// hands it to the engine.
func submit[T any](d *demo, ctx context.Context, kind schema.Kind, req T, call func(context.Context, T) error) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", kind, err)
	}
	var decoded T
	if err := d.validator.Decode(kind, raw, &decoded); err != nil {
		return err
	}
	return call(ctx, decoded)
}

// runScenario walks the full transaction flow using the profile's seeds.
func (d *demo) runScenario(ctx context.Context, p *config.Profile) error {
	investor, err := d.firstUser(ctx, p, model.RoleInvestor)
	if err != nil {
		return err
	}
	holder, err := d.firstUser(ctx, p, model.RolePolicyHolder)
	if err != nil {
		return err
	}
	if len(p.Syndicates) == 0 || len(p.Agencies) == 0 || len(p.Products) == 0 {
		return fmt.Errorf("profile must seed at least one syndicate, agency and product")
	}
	syndicate, err := d.regs.Syndicates.Get(ctx, p.Syndicates[0].ID)
	if err != nil {
		return fmt.Errorf("load syndicate: %w", err)
	}
	agency := p.Agencies[0]
	product := p.Products[0]

	// 1. The investor funds the syndicate.
	actx, err := d.as(ctx, identity.Actor{ID: investor.ID, Role: model.RoleInvestor})
	if err != nil {
		return err
	}
	if err := submit(d, actx, schema.KindInvestInSyndicate, txn.InvestInSyndicate{
		Investor:         investor.ID,
		Syndicate:        syndicate.ID,
		InvestmentAmount: investor.BalanceBLCK / 2,
	}, d.engine.InvestInSyndicate); err != nil {
		return fmt.Errorf("invest: %w", err)
	}
	d.logger.Info("investment committed", "investor", investor.ID, "syndicate", syndicate.ID)

	// 2. The syndicate manager underwrites the agency.
	actx, err = d.as(ctx, identity.Actor{ID: syndicate.Manager, Role: model.RoleSyndicateManager})
	if err != nil {
		return err
	}
	if err := submit(d, actx, schema.KindUnderwritePolicies, txn.UnderwritePolicies{
		Syndicate:          syndicate.ID,
		Agency:             agency.ID,
		UnderwritingAmount: 25,
	}, d.engine.UnderwritePolicies); err != nil {
		return fmt.Errorf("underwrite: %w", err)
	}
	d.logger.Info("underwriting committed", "syndicate", syndicate.ID, "agency", agency.ID)

	// 3. The broker issues a policy to the holder.
	actx, err = d.as(ctx, identity.Actor{ID: p.BrokerID, Role: model.RoleBroker})
	if err != nil {
		return err
	}
	policyID := fmt.Sprintf("POLICY_%s_%d", holder.ID, time.Now().UnixMilli())
	if err := submit(d, actx, schema.KindIssueNewPolicy, txn.IssueNewPolicy{
		PolicyID:       policyID,
		PolicyHolderID: holder.ID,
		ProductID:      product.ID,
		StartDate:      "2026-09-01T00:00:00Z",
		EndDate:        "2027-09-01T00:00:00Z",
		CoveredCity:    "Tallinn",
		Latitude:       59.437,
		Longitude:      24.7536,
	}, d.engine.IssueNewPolicy); err != nil {
		return fmt.Errorf("issue policy: %w", err)
	}
	d.logger.Info("policy issued", "policy", policyID, "holder", holder.ID)

	// 4. The rain oracle reports a qualifying downpour.
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	actx, err = d.as(ctx, identity.Actor{ID: p.RainOracleID, Role: model.RoleRainOracle})
	if err != nil {
		return err
	}
	if err := submit(d, actx, schema.KindSubmitClaim, txn.SubmitClaim{
		PolicyID:          policyID,
		RainLast24Hours:   agency.PolicyClaimRainThreshold + 15,
		CloudsLast24Hours: 90,
		HighTempLast24:    14,
		HighWaveLast24:    1.2,
	}, d.engine.SubmitClaim); err != nil {
		return fmt.Errorf("submit claim: %w", err)
	}

	policy, err := d.regs.Policies.Get(ctx, policyID)
	if err != nil {
		return fmt.Errorf("reload policy: %w", err)
	}
	claimID := policy.Claims[len(policy.Claims)-1]
	claim, err := d.regs.Claims.Get(ctx, claimID)
	if err != nil {
		return fmt.Errorf("load claim: %w", err)
	}
	d.logger.Info("claim submitted", "claim", claimID, "settlement", claim.Settlement)

	// 5. Settle, unless the agency already auto-settled.
	settlement, err := d.regs.Payments.Get(ctx, claim.Settlement)
	if err != nil {
		return fmt.Errorf("load settlement: %w", err)
	}
	if settlement.Approved {
		d.logger.Info("settlement auto-approved", "payment", settlement.ID)
		return nil
	}
	if err := submit(d, actx, schema.KindSettleClaim, txn.SettleClaim{
		PolicyID:            policy.ID,
		ClaimID:             claimID,
		SettlementPaymentID: settlement.ID,
		PolicyUnderwriterID: settlement.From,
		PolicyHolderID:      settlement.To,
	}, d.engine.SettleClaim); err != nil {
		return fmt.Errorf("settle claim: %w", err)
	}

	holderAfter, err := d.regs.Users.Get(ctx, holder.ID)
	if err != nil {
		return fmt.Errorf("reload policy holder: %w", err)
	}
	d.logger.Info("claim settled", "payment", settlement.ID, "holder_balance", holderAfter.BalanceBLCK)
	return nil
}

func (d *demo) firstUser(ctx context.Context, p *config.Profile, role model.Role) (model.PlatformUser, error) {
	for _, u := range p.Users {
		if model.Role(u.Role) == role {
			return d.regs.Users.Get(ctx, u.ID)
		}
	}
	return model.PlatformUser{}, fmt.Errorf("profile seeds no user with role %s", role)
}
