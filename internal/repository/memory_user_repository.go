package repository

import (
	"context"
	"sync"
	"time"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// MemoryUserRepository is an in-process UserRepository used by tests and
// local runs. Writes serialize per repository; the merge rules match the SQL
// implementation exactly.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]domain.User
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]domain.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) Upsert(_ context.Context, identity domain.Identity) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	user, exists := r.users[identity.ID]
	if !exists {
		user = domain.User{ID: identity.ID, CreatedAt: now}
	}

	if identity.Username != "" {
		user.Username = identity.Username
	}
	if identity.FirstName != "" {
		user.FirstName = identity.FirstName
	}
	if identity.LastName != "" {
		user.LastName = identity.LastName
	}
	if identity.Language != "" {
		user.Language = identity.Language
	}
	user.UpdatedAt = now
	user.LastSeen = now

	r.users[identity.ID] = user

	merged := user
	return &merged, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	found := user
	return &found, nil
}
