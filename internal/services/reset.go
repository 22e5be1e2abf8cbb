package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/ngoconnect/apiserver/internal/validation"
	"github.com/ngoconnect/apiserver/types"
)

// OTPDispatcher delivers a password reset code to a user.
type OTPDispatcher interface {
	SendOTP(ctx context.Context, user types.User, code string) error
}

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ResetService runs the one-time code password reset flow.
type ResetService struct {
	users      *UserService
	repo       UserRepository
	dispatcher OTPDispatcher
	ttl        time.Duration
	sweepGrace time.Duration
	logger     *slog.Logger

	now      func() time.Time
	generate func() (string, error)
}

// ResetOption customizes a ResetService.
type ResetOption func(*ResetService)

// WithResetClock replaces the clock used to set and check code expiry.
func WithResetClock(now func() time.Time) ResetOption {
	return func(s *ResetService) { s.now = now }
}

// WithCodeGenerator replaces the code source.
func WithCodeGenerator(generate func() (string, error)) ResetOption {
	return func(s *ResetService) { s.generate = generate }
}

func NewResetService(
	users *UserService,
	repo UserRepository,
	dispatcher OTPDispatcher,
	ttl, sweepGrace time.Duration,
	logger *slog.Logger,
	opts ...ResetOption,
) *ResetService {
	s := &ResetService{
		users:      users,
		repo:       repo,
		dispatcher: dispatcher,
		ttl:        ttl,
		sweepGrace: sweepGrace,
		logger:     logger,
		now:        time.Now,
		generate:   GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForgotPassword issues a fresh reset code for email and sends it. An unknown
// email is not an error so callers cannot discover accounts. Issuing a code
// replaces any outstanding one.
func (s *ResetService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return NewValidationError("Email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	reset := types.PasswordReset{Code: code, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.repo.SetPasswordReset(ctx, user.ID, reset); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	// The stored code stays valid if delivery fails; the user can ask again.
	if err := s.dispatcher.SendOTP(ctx, user, code); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}
	s.logger.InfoContext(ctx, "password reset code issued", "user_id", user.ID, "expires_at", reset.ExpiresAt)
	return nil
}

// ResetPassword checks the submitted code and, when it is valid, replaces
// the password and consumes the code.
func (s *ResetService) ResetPassword(ctx context.Context, req types.ResetRequest) error {
	if strings.TrimSpace(req.Email) == "" || req.Code == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return NewValidationError("All fields are required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return NewValidationError("Passwords do not match")
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return NewValidationError(err.Error())
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.Reset == nil {
		return ErrNoResetRequested
	}
	if subtle.ConstantTimeCompare([]byte(user.Reset.Code), []byte(req.Code)) != 1 {
		return ErrInvalidResetCode
	}
	if user.Reset.ExpiredAt(s.now()) {
		return ErrResetCodeExpired
	}

	if err := s.users.ChangePassword(ctx, user, req.NewPassword); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	return nil
}

// SweepExpired clears reset codes that expired longer than the grace period
// ago and returns how many were cleared.
func (s *ResetService) SweepExpired(ctx context.Context) (int64, error) {
	cleared, err := s.repo.ClearExpiredResets(ctx, s.now().Add(-s.sweepGrace))
	if err != nil {
		return 0, fmt.Errorf("clear expired reset codes: %w", err)
	}
	if cleared > 0 {
		s.logger.InfoContext(ctx, "expired reset codes cleared", "count", cleared)
	}
	return cleared, nil
}
