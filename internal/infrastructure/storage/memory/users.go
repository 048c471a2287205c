package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/domain/auth"
)

var _ auth.UserRepository = (*UserStore)(nil)

// UserStore keeps users in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[id.ID]auth.User
}

// NewUserStore creates an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[id.ID]auth.User)}
}

func cloneUser(u auth.User) *auth.User {
	u.Permissions = slices.Clone(u.Permissions)
	return &u
}

func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperror.NewDuplicate("user", "email", user.Email)
		}
	}
	s.users[user.ID] = *cloneUser(*user)
	return nil
}

func (s *UserStore) GetByID(_ context.Context, userID id.ID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (s *UserStore) Update(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return apperror.NewNotFound("user", user.ID.String())
	}
	s.users[user.ID] = *cloneUser(*user)
	return nil
}

func (s *UserStore) Exists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
