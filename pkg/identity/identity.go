// Package identity resolves the authenticated current actor and guards
// transactions against the wrong submitter.
//
// Authentication itself happens outside the transaction layer; this package
// only consumes an already-authenticated actor handle, either carried on the
// context or recovered from a verified token.
package identity

import (
	"context"
	"errors"

	"github.com/stormsure/marketplace/pkg/model"
)

// Actor is the authenticated identity a transaction is submitted under.
type Actor struct {
	ID   string
	Role model.Role
}

// Provider yields the current actor for an invocation.
type Provider interface {
	CurrentActor(ctx context.Context) (Actor, error)
}

// ErrNoActor is returned when no actor is attached to the invocation.
var ErrNoActor = errors.New("no current actor")

type actorKey struct{}

// WithActor attaches an actor to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ContextProvider reads the actor placed on the context by the transport
// layer's authentication middleware.
type ContextProvider struct{}

func (ContextProvider) CurrentActor(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok {
		return Actor{}, ErrNoActor
	}
	return a, nil
}

// Static always yields the same actor. Used by tests and the demo binary.
type Static struct {
	Actor Actor
}

func (s Static) CurrentActor(ctx context.Context) (Actor, error) {
	if s.Actor.ID == "" {
		return Actor{}, ErrNoActor
	}
	return s.Actor, nil
}
