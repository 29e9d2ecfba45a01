package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"auth-service/internal/domain"
)

// MemoryUserRepository implementa UserRepository en memoria, útil para
// desarrollo sin base de datos y para tests. Todas las operaciones toman
// el mutex, así check-then-act queda atómico.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]domain.User),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return domain.User{}, ErrDuplicateUser
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) GetByEmailOrUsername(_ context.Context, email, username string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email || u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) UpdateVerificationToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsVerified {
		return pgx.ErrNoRows
	}
	u.VerificationToken = token
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) ConsumeVerificationToken(_ context.Context, token string, verifiedAt time.Time) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token == "" {
		return domain.User{}, pgx.ErrNoRows
	}
	for id, u := range r.users {
		if u.VerificationToken == token {
			u.IsVerified = true
			u.VerificationToken = ""
			u.VerifiedAt = &verifiedAt
			r.users[id] = u
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}
