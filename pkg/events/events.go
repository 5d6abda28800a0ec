// Package events defines the notifications transactions publish after their
// writes commit, and the notifier implementations that deliver them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names a notification event.
type Kind string

const (
	KindNewPolicyIssued Kind = "NewPolicyIssued"
	KindClaimSubmitted  Kind = "ClaimSubmitted"
	KindClaimSettled    Kind = "ClaimSettled"
)

// NewPolicyIssued is emitted when a broker issues a policy.
type NewPolicyIssued struct {
	PolicyID       string `json:"policy_id"`
	PolicyHolderID string `json:"policy_holder_id"`
}

// ClaimSubmitted is emitted when the oracle's weather evidence produces a
// claim and its settlement payment.
type ClaimSubmitted struct {
	PolicyID            string  `json:"policy_id"`
	ClaimID             string  `json:"claim_id"`
	ClaimDate           string  `json:"claim_date"`
	RainLast24Hours     float64 `json:"rain_last_24_hours"`
	CloudsLast24Hours   float64 `json:"clouds_last_24_hours"`
	HighTempLast24      float64 `json:"high_temp_last_24_hours"`
	HighWaveLast24      float64 `json:"high_wave_last_24_hours"`
	SettlementPaymentID string  `json:"settlement_payment_id"`
	Amount              int64   `json:"amount"`
	SettlementDate      string  `json:"settlement_date"`
	Approved            bool    `json:"approved"`
	PaidFrom            string  `json:"paid_from"`
	PaidTo              string  `json:"paid_to"`
}

// ClaimSettled is emitted when an unapproved settlement payment is approved.
type ClaimSettled struct {
	PolicyID            string `json:"policy_id"`
	ClaimID             string `json:"claim_id"`
	SettlementPaymentID string `json:"settlement_payment_id"`
	SettlementDate      string `json:"settlement_date"`
	Approved            bool   `json:"approved"`
}

// Event is one published notification.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New builds an event envelope around a payload.
func New(kind Kind, occurredAt time.Time, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}

// Notifier publishes events after a transaction's writes commit.
// Publishing is fire-and-forget from the transaction's point of view: a
// notifier failure does not unwind committed writes.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Memory is a Notifier that records events, for tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty in-memory notifier.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a snapshot of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Multi fans one publish out to several notifiers. The first failure is
// returned but later notifiers still run.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
