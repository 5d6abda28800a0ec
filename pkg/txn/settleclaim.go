package txn

import (
	"context"
	"fmt"

	"github.com/stormsure/marketplace/pkg/clock"
	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/model"
)

// SettleClaim approves a previously unapproved settlement payment and
// credits the policyholder.
type SettleClaim struct {
	PolicyID            string `json:"policy_id"`
	ClaimID             string `json:"claim_id"`
	SettlementPaymentID string `json:"settlement_payment_id"`
	PolicyUnderwriterID string `json:"policy_underwriter_id"`
	PolicyHolderID      string `json:"policy_holder_id"`
}

// SettleClaim executes a claim settlement. The payment's approved flag is a
// one-way transition: settling an already-approved payment is rejected.
// Only the deployment's single rain oracle may submit it.
func (e *Engine) SettleClaim(ctx context.Context, req SettleClaim) (err error) {
	done := e.begin(ctx, "SettleClaim")
	defer func() { done(err) }()

	actor, err := e.currentActor(ctx)
	if err != nil {
		return err
	}
	if gerr := e.guard.RequireRainOracle(actor); gerr != nil {
		return authorization(gerr)
	}

	settlement, rerr := e.regs.Payments.Get(ctx, req.SettlementPaymentID)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("settlement payment %q", req.SettlementPaymentID))
	}
	underwriter, rerr := e.regs.Syndicates.Get(ctx, req.PolicyUnderwriterID)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("policy underwriter %q", req.PolicyUnderwriterID))
	}
	policyHolder, rerr := e.regs.Users.Get(ctx, req.PolicyHolderID)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("policy holder %q", req.PolicyHolderID))
	}

	if settlement.From != underwriter.ID || settlement.To != policyHolder.ID {
		return validationf("settlement parameters do not match the payment's stored to/from values: payment from %q to %q",
			settlement.From, settlement.To)
	}
	if settlement.Approved {
		return validationf("settlement payment %q was previously approved", settlement.ID)
	}

	settlement.Approved = true
	settlement.Date = clock.Canonical(e.now())
	// policyUnderwriter.BalanceBLCK--  // disabled upstream: caused failing transactions
	policyHolder.BalanceBLCK += settlement.Amount

	set, serr := stage(nil, []model.Record{settlement, policyHolder})
	if serr != nil {
		return infrastructure(serr, "staging settlement writes")
	}
	if err := e.apply(ctx, set); err != nil {
		return err
	}

	e.publish(ctx, events.New(events.KindClaimSettled, e.now(), events.ClaimSettled{
		PolicyID:            req.PolicyID,
		ClaimID:             req.ClaimID,
		SettlementPaymentID: settlement.ID,
		SettlementDate:      settlement.Date,
		Approved:            settlement.Approved,
	}))
	return nil
}
