package txn

import (
	"context"
	"fmt"

	"github.com/stormsure/marketplace/pkg/clock"
	"github.com/stormsure/marketplace/pkg/model"
)

// UnderwritePolicies records a syndicate's pledge of reserve capacity to an
// insurance agency.
type UnderwritePolicies struct {
	Syndicate          string `json:"syndicate"`
	Agency             string `json:"agency"`
	UnderwritingAmount int64  `json:"underwriting_amount"`
}

// UnderwritePolicies executes an underwriting. It creates an obligation to
// the agency, binds it to the syndicate (replacing any prior pledge) and
// marks the syndicate as the agency's policy underwriter. No balance moves:
// this records a pledge of capacity, not a transfer of funds.
func (e *Engine) UnderwritePolicies(ctx context.Context, req UnderwritePolicies) (err error) {
	done := e.begin(ctx, "UnderwritePolicies")
	defer func() { done(err) }()

	actor, err := e.currentActor(ctx)
	if err != nil {
		return err
	}

	if req.UnderwritingAmount <= 0 {
		return validationf("the amount of policy sales to be underwritten must be greater than 0, requested %d",
			req.UnderwritingAmount)
	}

	syndicate, rerr := e.regs.Syndicates.Get(ctx, req.Syndicate)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("syndicate %q", req.Syndicate))
	}
	if gerr := e.guard.RequireSelf(actor, syndicate.Manager); gerr != nil {
		return authorization(fmt.Errorf("only the syndicate manager can underwrite for syndicate %q: %w", syndicate.ID, gerr))
	}

	agency, rerr := e.regs.Agencies.Get(ctx, req.Agency)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("insurance agency %q", req.Agency))
	}

	ts := clock.Canonical(e.now())

	obligation := model.Obligation{
		ID:      fmt.Sprintf("OBLIGATION_TO_%s-%s", agency.ID, ts),
		Amount:  req.UnderwritingAmount,
		Date:    ts,
		Obligee: agency.ID,
	}
	syndicate.FundsBoundToAgency = obligation.ID
	agency.PolicyUnderwriter = syndicate.ID

	set, serr := stage(
		[]model.Record{obligation},
		[]model.Record{syndicate, agency},
	)
	if serr != nil {
		return infrastructure(serr, "staging underwriting writes")
	}
	return e.apply(ctx, set)
}
