package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

// AuditEntry is an immutable, hash-chained record of a published event.
type AuditEntry struct {
	Sequence    uint64          `json:"sequence"`
	EventID     string          `json:"event_id"`
	Kind        Kind            `json:"kind"`
	ContentHash string          `json:"content_hash"`
	PrevHash    string          `json:"prev_hash"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// AuditTrail is an append-only, hash-chained log of every published event.
// Payloads are canonicalized per RFC 8785 before hashing so the chain is
// stable across marshaling quirks. It implements Notifier so it can sit in
// a Multi fan-out next to the real delivery notifier.
type AuditTrail struct {
	mu       sync.RWMutex
	entries  []AuditEntry
	headHash string
	clock    func() time.Time
}

// NewAuditTrail creates an empty trail.
func NewAuditTrail() *AuditTrail {
	return &AuditTrail{headHash: "genesis", clock: time.Now}
}

// WithClock overrides the clock for testing.
func (t *AuditTrail) WithClock(clock func() time.Time) *AuditTrail {
	t.clock = clock
	return t
}

func (t *AuditTrail) Publish(ctx context.Context, ev Event) error {
	_, err := t.Append(ev)
	return err
}

// Append records an event and returns its sequence number.
func (t *AuditTrail) Append(ev Event) (uint64, error) {
	canonical, err := canonicalPayload(ev.Payload)
	if err != nil {
		return 0, fmt.Errorf("audit append %s: %w", ev.Kind, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seq := uint64(len(t.entries)) + 1
	contentHash := entryHash(seq, ev.Kind, canonical, t.headHash)

	t.entries = append(t.entries, AuditEntry{
		Sequence:    seq,
		EventID:     ev.ID,
		Kind:        ev.Kind,
		ContentHash: contentHash,
		PrevHash:    t.headHash,
		Timestamp:   t.clock(),
		Payload:     canonical,
	})
	t.headHash = contentHash
	return seq, nil
}

// Get retrieves an entry by sequence number.
func (t *AuditTrail) Get(seq uint64) (*AuditEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if seq == 0 || seq > uint64(len(t.entries)) {
		return nil, fmt.Errorf("audit entry %d not found", seq)
	}
	entry := t.entries[seq-1]
	return &entry, nil
}

// Head returns the current head hash.
func (t *AuditTrail) Head() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.headHash
}

// Length returns the number of entries.
func (t *AuditTrail) Length() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Verify re-walks the chain and recomputes every hash.
func (t *AuditTrail) Verify() (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prevHash := "genesis"
	for i, entry := range t.entries {
		if entry.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, entry.PrevHash)
		}
		if computed := entryHash(entry.Sequence, entry.Kind, entry.Payload, entry.PrevHash); computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = entry.ContentHash
	}
	return true, "chain verified"
}

func canonicalPayload(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonical, nil
}

func entryHash(seq uint64, kind Kind, payload []byte, prevHash string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|", seq, kind, prevHash)
	h.Write(payload)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
