package sharing

import (
	"context"
	"sync"
	"time"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
)

// MemoryStore is an in-process Store for tests and local runs. Issuance and
// redemption on different tokens do not contend: the map lock is held only
// for lookups, while redeemed_by updates serialize per token.
type MemoryStore struct {
	mu     sync.RWMutex
	gen    TokenGenerator
	ttl    time.Duration
	tokens map[string]*memoryRecord
}

type memoryRecord struct {
	mu       sync.Mutex
	token    domain.ShareToken
	snapshot *domain.ShoppingList
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(gen TokenGenerator, ttl time.Duration) *MemoryStore {
	if gen == nil {
		gen = RandomTokenGenerator{}
	}

	return &MemoryStore{
		gen:    gen,
		ttl:    ttl,
		tokens: make(map[string]*memoryRecord),
	}
}

func (s *MemoryStore) Issue(_ context.Context, list *domain.ShoppingList, issuerUserID int64) (*domain.ShareToken, error) {
	if list == nil {
		return nil, apperrors.NewValidationError("list is required")
	}

	snapshot := list.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token := s.gen.Generate()
		if _, exists := s.tokens[token]; exists {
			continue
		}

		record := &memoryRecord{
			token: domain.ShareToken{
				Token:        token,
				ListID:       list.ID,
				IssuerUserID: issuerUserID,
				CreatedAt:    time.Now().UTC(),
			},
			snapshot: snapshot,
		}
		s.tokens[token] = record

		issued := record.token
		return &issued, nil
	}

	return nil, apperrors.NewTokenCollisionError(maxIssueAttempts)
}

func (s *MemoryStore) Redeem(_ context.Context, token string, userID int64) (*domain.ShoppingList, *domain.ShareToken, error) {
	if token == "" {
		return nil, nil, apperrors.NewValidationError("token is required")
	}

	s.mu.RLock()
	record, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, apperrors.NewNotFoundError("share token")
	}

	record.mu.Lock()
	defer record.mu.Unlock()

	if s.ttl > 0 && time.Since(record.token.CreatedAt) > s.ttl {
		return nil, nil, apperrors.NewNotFoundError("share token")
	}

	record.token.RedeemedBy = appendUnique(record.token.RedeemedBy, userID)

	issued := record.token
	issued.RedeemedBy = append([]int64(nil), record.token.RedeemedBy...)

	return record.snapshot.Clone(), &issued, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, token string) (*domain.ShoppingList, error) {
	if token == "" {
		return nil, apperrors.NewValidationError("token is required")
	}

	s.mu.RLock()
	record, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNotFoundError("share token")
	}

	if s.ttl > 0 && time.Since(record.token.CreatedAt) > s.ttl {
		return nil, apperrors.NewNotFoundError("share token")
	}

	return record.snapshot.Clone(), nil
}
