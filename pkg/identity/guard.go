package identity

import (
	"errors"
	"fmt"
)

// ErrForbidden is the sentinel wrapped by every guard rejection.
var ErrForbidden = errors.New("forbidden")

// WellKnown names the deployment's singleton actors. Each role has exactly
// one well-known identifier per deployment, supplied by configuration.
type WellKnown struct {
	BrokerID     string
	RainOracleID string
}

// Guard performs the two authorization modes transactions need:
// self-match (actor must be a specific record) and role-match (actor must be
// the deployment's singleton holder of a role). A rejection carries a
// human-readable reason; callers must stop before any further reads or
// writes.
type Guard struct {
	wellKnown WellKnown
}

// NewGuard builds a guard over the deployment's well-known actors.
func NewGuard(wk WellKnown) Guard {
	return Guard{wellKnown: wk}
}

// RequireSelf accepts only when the actor is the named record.
func (g Guard) RequireSelf(actor Actor, recordID string) error {
	if actor.ID != recordID {
		return fmt.Errorf("%w: actor %q may only submit this transaction as %q", ErrForbidden, actor.ID, recordID)
	}
	return nil
}

// RequireBroker accepts only the deployment's single broker.
func (g Guard) RequireBroker(actor Actor) error {
	if actor.ID != g.wellKnown.BrokerID {
		return fmt.Errorf("%w: transaction can only be submitted by %s", ErrForbidden, g.wellKnown.BrokerID)
	}
	return nil
}

// RequireRainOracle accepts only the deployment's single rain oracle.
func (g Guard) RequireRainOracle(actor Actor) error {
	if actor.ID != g.wellKnown.RainOracleID {
		return fmt.Errorf("%w: transaction can only be submitted by %s", ErrForbidden, g.wellKnown.RainOracleID)
	}
	return nil
}
