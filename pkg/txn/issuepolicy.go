package txn

import (
	"context"
	"fmt"

	"github.com/stormsure/marketplace/pkg/clock"
	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/model"
)

// IssueNewPolicy creates a policy linking a product, a policyholder and the
// issuing broker.
type IssueNewPolicy struct {
	PolicyID       string  `json:"policy_id"`
	PolicyHolderID string  `json:"policy_holder_id"`
	ProductID      string  `json:"product_id"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	CoveredCity    string  `json:"covered_city"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

// IssueNewPolicy executes a policy issuance. Only the deployment's single
// well-known broker may submit it. On commit a NewPolicyIssued event is
// published.
func (e *Engine) IssueNewPolicy(ctx context.Context, req IssueNewPolicy) (err error) {
	done := e.begin(ctx, "IssueNewPolicy")
	defer func() { done(err) }()

	actor, err := e.currentActor(ctx)
	if err != nil {
		return err
	}
	if gerr := e.guard.RequireBroker(actor); gerr != nil {
		return authorization(gerr)
	}

	policyHolder, rerr := e.regs.Users.Get(ctx, req.PolicyHolderID)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("policy holder %q", req.PolicyHolderID))
	}
	product, rerr := e.regs.Products.Get(ctx, req.ProductID)
	if rerr != nil {
		return readErr(rerr, fmt.Sprintf("product %q", req.ProductID))
	}

	policy := model.Policy{
		ID:            req.PolicyID,
		CreateDate:    clock.Canonical(e.now()),
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		CoveredCity:   req.CoveredCity,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Product:       product.ID,
		PolicyHolder:  policyHolder.ID,
		IssuingBroker: actor.ID,
		Claims:        []string{},
	}

	set, serr := stage([]model.Record{policy}, nil)
	if serr != nil {
		return infrastructure(serr, "staging policy issuance writes")
	}
	if err := e.apply(ctx, set); err != nil {
		return err
	}

	e.publish(ctx, events.New(events.KindNewPolicyIssued, e.now(), events.NewPolicyIssued{
		PolicyID:       policy.ID,
		PolicyHolderID: policyHolder.ID,
	}))
	return nil
}
