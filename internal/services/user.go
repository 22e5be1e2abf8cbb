package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/ngoconnect/apiserver/internal/validation"
	"github.com/ngoconnect/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordReset(ctx context.Context, id uuid.UUID, reset types.PasswordReset) error
	ClearExpiredResets(ctx context.Context, before time.Time) (int64, error)
	List(ctx context.Context, filter types.UserFilter) ([]types.User, error)
	Count(ctx context.Context, role types.Role) (int64, error)
	Ping(ctx context.Context) error
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash, password string) (bool, error)
	CompareDummy(ctx context.Context, password string) error
}

// WelcomeSender greets newly registered users.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, user types.User) error
}

const welcomeTimeout = 30 * time.Second

// UserService encapsulates user use-cases.
type UserService struct {
	repo    UserRepository
	hasher  PasswordHasher
	welcome WelcomeSender
	logger  *slog.Logger
}

func NewUserService(repo UserRepository, hasher PasswordHasher, welcome WelcomeSender, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, hasher: hasher, welcome: welcome, logger: logger}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByEmail looks a user up by email, ignoring case and surrounding space.
func (s *UserService) FindByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
}

// Register validates reg, hashes its password once and stores the new user.
func (s *UserService) Register(ctx context.Context, reg types.Registration) (types.User, error) {
	if reg.Account == nil {
		return types.User{}, NewValidationError("Please provide email, password, and user type")
	}
	email := types.NormalizeEmail(reg.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return types.User{}, NewValidationError("Please provide a valid email")
	}
	if err := validation.ValidatePassword(reg.Password); err != nil {
		return types.User{}, NewValidationError(err.Error())
	}
	if err := reg.Profile.Validate(); err != nil {
		return types.User{}, NewValidationError(err.Error())
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := types.User{
		Email:        email,
		PasswordHash: hashed,
		Profile:      reg.Profile.Normalize(),
		IsActive:     true,
	}
	types.ApplyAccount(&user, reg.Account)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID, "user_type", created.Role)
	s.sendWelcome(ctx, created)
	return created, nil
}

// sendWelcome delivers the welcome mail in the background. Failures are
// logged and never affect registration.
func (s *UserService) sendWelcome(ctx context.Context, user types.User) {
	if s.welcome == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, welcomeTimeout)
		defer cancel()
		if err := s.welcome.SendWelcome(ctx, user); err != nil {
			s.logger.WarnContext(ctx, "welcome email failed", "user_id", user.ID, "error", err)
		}
	}()
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("find user: %w", err)
		}
		if err := s.hasher.CompareDummy(ctx, password); err != nil {
			return types.User{}, fmt.Errorf("compare password: %w", err)
		}
		return types.User{}, ErrInvalidCredentials
	}

	ok, err := s.VerifyPassword(ctx, user, password)
	if err != nil {
		return types.User{}, err
	}
	if !ok {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, ErrAccountInactive
	}
	return user, nil
}

// VerifyPassword reports whether candidate is the user's password.
func (s *UserService) VerifyPassword(ctx context.Context, user types.User, candidate string) (bool, error) {
	ok, err := s.hasher.Compare(ctx, user.PasswordHash, candidate)
	if err != nil {
		return false, fmt.Errorf("compare password: %w", err)
	}
	return ok, nil
}

// UpdateProfile merges upd into the user's names and profile. Names that do
// not belong to the user's role are ignored. Credentials are never touched.
func (s *UserService) UpdateProfile(ctx context.Context, user types.User, upd types.ProfileUpdate) (types.User, error) {
	switch acct := types.AccountOf(user).(type) {
	case types.Volunteer:
		acct.FirstName = pick(upd.FirstName, acct.FirstName)
		acct.LastName = pick(upd.LastName, acct.LastName)
		next, err := types.NewAccount(types.RoleVolunteer, acct.FirstName, acct.LastName, "", "")
		if err != nil {
			return types.User{}, NewValidationError("First and last name are required for volunteers")
		}
		types.ApplyAccount(&user, next)
	case types.NGO:
		acct.OrganizationName = pick(upd.OrganizationName, acct.OrganizationName)
		acct.ContactPerson = pick(upd.ContactPerson, acct.ContactPerson)
		next, err := types.NewAccount(types.RoleNGO, "", "", acct.OrganizationName, acct.ContactPerson)
		if err != nil {
			return types.User{}, NewValidationError("Organization name and contact person are required for NGOs")
		}
		types.ApplyAccount(&user, next)
	}

	if upd.Profile != nil {
		user.Profile = user.Profile.Merge(*upd.Profile)
	}
	if err := user.Profile.Validate(); err != nil {
		return types.User{}, NewValidationError(err.Error())
	}

	updated, err := s.repo.UpdateProfile(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

func pick(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

// SetAvatar records the storage key of the user's avatar.
func (s *UserService) SetAvatar(ctx context.Context, user types.User, key string) (types.User, error) {
	user.AvatarKey = key
	updated, err := s.repo.UpdateProfile(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, fmt.Errorf("set avatar: %w", err)
	}
	return updated, nil
}

// ChangePassword hashes newPassword and stores it, discarding any
// outstanding reset code in the same write.
func (s *UserService) ChangePassword(ctx context.Context, user types.User, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return NewValidationError(err.Error())
	}
	hashed, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ListVolunteers returns active volunteers matching f.
func (s *UserService) ListVolunteers(ctx context.Context, f types.VolunteerFilter) ([]types.User, error) {
	if err := f.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return s.list(ctx, f.UserFilter())
}

// ListNGOs returns active NGOs matching f.
func (s *UserService) ListNGOs(ctx context.Context, f types.NGOFilter) ([]types.User, error) {
	if err := f.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}
	return s.list(ctx, f.UserFilter())
}

func (s *UserService) list(ctx context.Context, f types.UserFilter) ([]types.User, error) {
	users, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list %s users: %w", f.Role, err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

// Stats counts registered users by role.
type Stats struct {
	Total      int64 `json:"total"`
	Volunteers int64 `json:"volunteers"`
	NGOs       int64 `json:"ngos"`
}

func (s *UserService) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.Total, err = s.repo.Count(ctx, ""); err != nil {
		return Stats{}, err
	}
	if stats.Volunteers, err = s.repo.Count(ctx, types.RoleVolunteer); err != nil {
		return Stats{}, err
	}
	if stats.NGOs, err = s.repo.Count(ctx, types.RoleNGO); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Ping checks that the user store is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
