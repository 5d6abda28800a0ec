package txn

import (
	"context"
	"fmt"

	"github.com/stormsure/marketplace/pkg/clock"
	"github.com/stormsure/marketplace/pkg/model"
)

// InvestInSyndicate moves capital from an investor into a syndicate and
// records the syndicate's resulting debt.
type InvestInSyndicate struct {
	Investor         string `json:"investor"`
	Syndicate        string `json:"syndicate"`
	InvestmentAmount int64  `json:"investment_amount"`
}

// InvestInSyndicate executes an investment: a payment from investor to
// syndicate, the balance movement, and an obligation appended to the
// syndicate's debts. All four writes commit together or not at all.
func (e *Engine) InvestInSyndicate(ctx context.Context, req InvestInSyndicate) (err error) {
	done := e.begin(ctx, "InvestInSyndicate")
	defer func() { done(err) }()

	actor, err := e.currentActor(ctx)
	if err != nil {
		return err
	}

	if req.InvestmentAmount <= 0 {
		return validationf("investment amount must be greater than 0, requested %d", req.InvestmentAmount)
	}

	investor, rerr := e.regs.Users.Get(ctx, req.Investor)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("investor %q", req.Investor))
	}

	if investor.Role != model.RoleInvestor {
		return validationf("platform user %q is not an Investor, role = %q", investor.ID, investor.Role)
	}
	if investor.BalanceBLCK < req.InvestmentAmount {
		return validationf("investor %q does not have enough BLCK: balance = %d, requested investment = %d",
			investor.ID, investor.BalanceBLCK, req.InvestmentAmount)
	}
	if gerr := e.guard.RequireSelf(actor, investor.ID); gerr != nil {
		return authorization(gerr)
	}

	syndicate, rerr := e.regs.Syndicates.Get(ctx, req.Syndicate)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("syndicate %q", req.Syndicate))
	}

	ts := clock.Canonical(e.now())

	payment := model.Payment{
		ID:       fmt.Sprintf("PAYMENT_%s_TO_SYNDICATE-%s", investor.ID, ts),
		Amount:   req.InvestmentAmount,
		Date:     ts,
		From:     investor.ID,
		To:       syndicate.ID,
		Approved: true,
	}

	investor.BalanceBLCK -= req.InvestmentAmount
	syndicate.BalanceBLCK += req.InvestmentAmount

	obligation := model.Obligation{
		ID:      fmt.Sprintf("OBLIGATION_TO_%s-%s", investor.ID, ts),
		Amount:  req.InvestmentAmount,
		Date:    ts,
		Obligee: investor.ID,
	}
	syndicate.DebtsToInvestors = append(syndicate.DebtsToInvestors, obligation.ID)

	set, serr := stage(
		[]model.Record{payment, obligation},
		[]model.Record{investor, syndicate},
	)
	if serr != nil {
		return infrastructure(serr, "staging investment writes")
	}
	return e.apply(ctx, set)
}
