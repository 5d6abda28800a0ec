package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stormsure/marketplace/pkg/model"
)

// ActorClaims extends the standard JWT claims with the platform role tag.
type ActorClaims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role,omitempty"`
}

const tokenIssuer = "stormsure.marketplace/identity"

// TokenVerifier mints and validates HS256 actor tokens. It is the bridge
// between an external credential system and the transaction layer's Actor
// handle.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier over a shared signing secret.
func NewTokenVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// GenerateToken creates a signed token for an actor.
func (v *TokenVerifier) GenerateToken(a Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: a.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ActorFromToken parses and validates a token string into an Actor.
func (v *TokenVerifier) ActorFromToken(tokenString string) (Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return Actor{}, fmt.Errorf("validate actor token: %w", err)
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return Actor{}, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("actor token has no subject")
	}
	return Actor{ID: claims.Subject, Role: claims.Role}, nil
}
