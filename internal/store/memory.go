package store

import (
	"context"
	"sync"
	"time"

	"github.com/openclaw/pairing-server-go/internal/model"
)

// MemoryStore is an in-process PairingStore with lazy expiry, guarded by a
// single mutex so Claim is atomic under concurrent callers. Time is an
// injected function to keep expiry deterministic in tests.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	rec       model.PairingCode
	expiresAt time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:     now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) live(code string) (memoryEntry, bool) {
	e, ok := s.entries[code]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, code)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Put(ctx context.Context, code string, rec model.PairingCode, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(code); ok {
		return false, nil
	}

	s.entries[code] = memoryEntry{
		rec:       rec,
		expiresAt: s.now().Add(ttl),
	}
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*model.PairingCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(code)
	if !ok {
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) Claim(ctx context.Context, code, agentName, agentID string, claimedAt time.Time, retain time.Duration) (*model.PairingCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(code)
	if !ok {
		return nil, nil
	}
	if e.rec.Claimed {
		return nil, ErrAlreadyClaimed
	}

	at := claimedAt
	e.rec.Claimed = true
	e.rec.ClaimedAt = &at
	e.rec.AgentName = agentName
	e.rec.AgentID = agentID
	e.expiresAt = s.now().Add(retain)
	s.entries[code] = e

	rec := e.rec
	return &rec, nil
}
