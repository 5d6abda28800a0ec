package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/schema"
	"github.com/stormsure/marketplace/pkg/txn"
)

// submitFromReader dispatches one raw JSON request of the given kind. The
// submitting actor comes from ACTOR_TOKEN when tokens are enabled, else
// from ACTOR_ID and ACTOR_ROLE.
func (d *demo) submitFromReader(ctx context.Context, kind schema.Kind, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}

	actor, err := d.submittingActor()
	if err != nil {
		return err
	}
	ctx = identity.WithActor(ctx, actor)

	switch kind {
	case schema.KindInvestInSyndicate:
		var req txn.InvestInSyndicate
		if err := d.validator.Decode(kind, raw, &req); err != nil {
			return err
		}
		return d.engine.InvestInSyndicate(ctx, req)
	case schema.KindUnderwritePolicies:
		var req txn.UnderwritePolicies
		if err := d.validator.Decode(kind, raw, &req); err != nil {
			return err
		}
		return d.engine.UnderwritePolicies(ctx, req)
	case schema.KindIssueNewPolicy:
		var req txn.IssueNewPolicy
		if err := d.validator.Decode(kind, raw, &req); err != nil {
			return err
		}
		return d.engine.IssueNewPolicy(ctx, req)
	case schema.KindSubmitClaim:
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		var req txn.SubmitClaim
		if err := d.validator.Decode(kind, raw, &req); err != nil {
			return err
		}
		return d.engine.SubmitClaim(ctx, req)
	case schema.KindSettleClaim:
		var req txn.SettleClaim
		if err := d.validator.Decode(kind, raw, &req); err != nil {
			return err
		}
		return d.engine.SettleClaim(ctx, req)
	}
	return fmt.Errorf("unknown request kind %q", kind)
}

func (d *demo) submittingActor() (identity.Actor, error) {
	if d.verifier != nil {
		token := os.Getenv("ACTOR_TOKEN")
		if token == "" {
			return identity.Actor{}, fmt.Errorf("ACTOR_TOKEN is required when JWT_SECRET is set")
		}
		return d.verifier.ActorFromToken(token)
	}

	id := os.Getenv("ACTOR_ID")
	if id == "" {
		return identity.Actor{}, fmt.Errorf("ACTOR_ID is required")
	}
	return identity.Actor{ID: id, Role: model.Role(os.Getenv("ACTOR_ROLE"))}, nil
}
