package txn

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stormsure/marketplace/pkg/clock"
	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/rules"
)

// SubmitClaim carries the oracle's weather evidence against a policy.
type SubmitClaim struct {
	PolicyID          string  `json:"policy_id"`
	RainLast24Hours   float64 `json:"rain_last_24_hours"`
	CloudsLast24Hours float64 `json:"clouds_last_24_hours"`
	HighTempLast24    float64 `json:"high_temp_last_24_hours"`
	HighWaveLast24    float64 `json:"high_wave_last_24_hours"`
}

// SubmitClaim validates weather evidence against the policy's agency rules
// and, if payable, creates a claim and its settlement payment. The payment
// starts unapproved unless the agency auto-settles. Only the deployment's
// single rain oracle may submit it.
func (e *Engine) SubmitClaim(ctx context.Context, req SubmitClaim) (err error) {
	done := e.begin(ctx, "SubmitClaim")
	defer func() { done(err) }()

	actor, err := e.currentActor(ctx)
	if err != nil {
		return err
	}
	if gerr := e.guard.RequireRainOracle(actor); gerr != nil {
		return authorization(gerr)
	}

	policy, rerr := e.regs.Policies.Get(ctx, req.PolicyID)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("policy %q", req.PolicyID))
	}
	agency, aerr := e.agencyForBroker(ctx, policy.IssuingBroker)
	if aerr != nil {
		return aerr
	}

	now := e.now()

	if cerr := e.checkCooldown(policy, now); cerr != nil {
		return cerr
	}
	if req.RainLast24Hours < agency.PolicyClaimRainThreshold {
		return validationf("claim is not valid: evidence shows rainfall over the last 24 hours of %v and the required threshold is %v",
			req.RainLast24Hours, agency.PolicyClaimRainThreshold)
	}
	if agency.ClaimRule != "" && e.rules != nil {
		eligible, rerr := e.rules.Eligible(agency.ClaimRule, rules.Weather{
			Rain:     req.RainLast24Hours,
			Clouds:   req.CloudsLast24Hours,
			HighTemp: req.HighTempLast24,
			HighWave: req.HighWaveLast24,
		})
		if rerr != nil {
			return validation(fmt.Sprintf("agency %q claim rule failed to evaluate", agency.ID), rerr)
		}
		if !eligible {
			return validationf("claim is not valid: evidence does not satisfy agency %q claim rule", agency.ID)
		}
	}

	claimID := fmt.Sprintf("%s_%s", policy.ID, strconv.FormatInt(now.UnixMilli(), 10))
	ts := clock.Canonical(now)

	settlement := model.Payment{
		ID:       "SETTLEMENT_" + claimID,
		Amount:   model.SettlementUnit,
		Date:     ts,
		From:     agency.PolicyUnderwriter,
		To:       policy.PolicyHolder,
		Approved: agency.AutoSettleClaims,
	}

	claim := model.Claim{
		ID:                claimID,
		ClaimDate:         ts,
		RainLast24Hours:   req.RainLast24Hours,
		CloudsLast24Hours: req.CloudsLast24Hours,
		HighTempLast24:    req.HighTempLast24,
		HighWaveLast24:    req.HighWaveLast24,
		Settlement:        settlement.ID,
	}

	policy.Claims = append(policy.Claims, claim.ID)
	policy.LastClaimDate = claim.ClaimDate

	set, serr := stage(
		[]model.Record{settlement, claim},
		[]model.Record{policy},
	)
	if serr != nil {
		return infrastructure(serr, "staging claim writes")
	}
	if err := e.apply(ctx, set); err != nil {
		return err
	}

	e.publish(ctx, events.New(events.KindClaimSubmitted, now, events.ClaimSubmitted{
		PolicyID:            policy.ID,
		ClaimID:             claim.ID,
		ClaimDate:           claim.ClaimDate,
		RainLast24Hours:     claim.RainLast24Hours,
		CloudsLast24Hours:   claim.CloudsLast24Hours,
		HighTempLast24:      claim.HighTempLast24,
		HighWaveLast24:      claim.HighWaveLast24,
		SettlementPaymentID: settlement.ID,
		Amount:              settlement.Amount,
		SettlementDate:      settlement.Date,
		Approved:            settlement.Approved,
		PaidFrom:            settlement.From,
		PaidTo:              settlement.To,
	}))
	return nil
}

// agencyForBroker selects the agency whose broker issued the policy.
func (e *Engine) agencyForBroker(ctx context.Context, brokerID string) (model.InsuranceAgency, error) {
	agencies, err := e.regs.Agencies.GetAll(ctx)
	if err != nil {
		return model.InsuranceAgency{}, readErr(err, "insurance agencies")
	}
	for _, a := range agencies {
		if a.Broker == brokerID {
			return a, nil
		}
	}
	return model.InsuranceAgency{}, notFoundf(nil, "no insurance agency found for issuing broker %q", brokerID)
}

// checkCooldown rejects a claim submitted within 24 hours of the policy's
// last one. A policy with no prior claim always passes: its last-claim date
// defaults to exactly 24 hours ago.
func (e *Engine) checkCooldown(policy model.Policy, now time.Time) error {
	yesterday := now.Add(-24 * time.Hour)
	lastClaim := yesterday
	if strings.TrimSpace(policy.LastClaimDate) != "" {
		parsed, err := clock.Parse(policy.LastClaimDate)
		if err != nil {
			return validation(fmt.Sprintf("policy %q has an unreadable last claim date %q", policy.ID, policy.LastClaimDate), err)
		}
		lastClaim = parsed
	}
	if yesterday.Before(lastClaim) {
		return validationf("policy %q has already submitted a claim in the last 24 hours", policy.ID)
	}
	return nil
}
