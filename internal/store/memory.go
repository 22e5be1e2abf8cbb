package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ngoconnect/apiserver/types"
)

// MemoryUserRepository keeps users in process memory. It honours the same
// contract as UserRepository and backs local runs and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]types.User
	order []uuid.UUID
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[uuid.UUID]types.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	email = types.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if u := r.users[id]; strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = types.NormalizeEmail(user.Email)
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Profile = user.Profile.Normalize()
	user.Reset = nil

	r.users[user.ID] = clone(user)
	r.order = append(r.order, user.ID)
	return clone(user), nil
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.OrganizationName = user.OrganizationName
	stored.ContactPerson = user.ContactPerson
	stored.Profile = user.Profile.Normalize()
	stored.AvatarKey = user.AvatarKey
	stored.UpdatedAt = r.now().UTC()
	r.users[user.ID] = clone(stored)
	return clone(stored), nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	stored.PasswordHash = passwordHash
	stored.Reset = nil
	stored.UpdatedAt = r.now().UTC()
	r.users[id] = stored
	return nil
}

func (r *MemoryUserRepository) SetPasswordReset(_ context.Context, id uuid.UUID, reset types.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	stored.Reset = &reset
	stored.UpdatedAt = r.now().UTC()
	r.users[id] = stored
	return nil
}

func (r *MemoryUserRepository) ClearExpiredResets(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for id, u := range r.users {
		if u.Reset != nil && u.Reset.ExpiresAt.Before(before) {
			u.Reset = nil
			r.users[id] = u
			cleared++
		}
	}
	return cleared, nil
}

func (r *MemoryUserRepository) List(_ context.Context, filter types.UserFilter) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.User, 0)
	for _, id := range r.order {
		u := r.users[id]
		if matches(u, filter) {
			users = append(users, clone(u))
		}
	}
	return users, nil
}

func matches(u types.User, f types.UserFilter) bool {
	if u.Role != f.Role || !u.IsActive {
		return false
	}
	p := u.Profile
	if len(f.Skills) > 0 && !anyOf(p.Skills, f.Skills) {
		return false
	}
	if len(f.Interests) > 0 && !anyOf(p.Interests, f.Interests) {
		return false
	}
	if len(f.FocusAreas) > 0 && !anyOf(p.FocusAreas, f.FocusAreas) {
		return false
	}
	if f.Experience != "" && p.Experience != f.Experience {
		return false
	}
	if f.Availability != "" && p.Availability != f.Availability {
		return false
	}
	if f.Size != "" && p.Size != f.Size {
		return false
	}
	if loc := strings.TrimSpace(f.Location); loc != "" &&
		!strings.Contains(strings.ToLower(p.Location), strings.ToLower(loc)) {
		return false
	}
	return true
}

func anyOf(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) Count(_ context.Context, role types.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, u := range r.users {
		if role == "" || u.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

// SetActive toggles a user's activity flag. No route exposes deactivation.
func (r *MemoryUserRepository) SetActive(id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	stored.IsActive = active
	r.users[id] = stored
	return nil
}

// clone copies the slices and pointers of u so callers cannot mutate stored
// state.
func clone(u types.User) types.User {
	u.Profile.Skills = slices.Clone(u.Profile.Skills)
	u.Profile.Interests = slices.Clone(u.Profile.Interests)
	u.Profile.FocusAreas = slices.Clone(u.Profile.FocusAreas)
	if u.Profile.FoundedYear != nil {
		year := *u.Profile.FoundedYear
		u.Profile.FoundedYear = &year
	}
	if u.Reset != nil {
		reset := *u.Reset
		u.Reset = &reset
	}
	if u.LastLogin != nil {
		lastLogin := *u.LastLogin
		u.LastLogin = &lastLogin
	}
	return u
}
