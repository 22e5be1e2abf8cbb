package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ngoconnect/apiserver/internal/apierrors"
	"github.com/ngoconnect/apiserver/internal/auth"
	"github.com/ngoconnect/apiserver/internal/services"
	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/ngoconnect/apiserver/internal/validation"
	"github.com/ngoconnect/apiserver/types"
)

const forgotPasswordMessage = "If the email exists, an OTP has been sent"

// KeyLimiter admits or rejects a request for an arbitrary key.
type KeyLimiter interface {
	Allow(key string) bool
}

// AuthHandler serves registration, login and password recovery.
type AuthHandler struct {
	users    *services.UserService
	resets   *services.ResetService
	tokens   *auth.TokenService
	validate *validation.Validator
	logger   *slog.Logger

	emailLimit KeyLimiter
}

func NewAuthHandler(
	users *services.UserService,
	resets *services.ResetService,
	tokens *auth.TokenService,
	validate *validation.Validator,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		resets:   resets,
		tokens:   tokens,
		validate: validate,
		logger:   logger,
	}
}

// LimitByEmail caps forgot-password and reset-password attempts per
// normalized email address, whatever address the requests come from.
func (h *AuthHandler) LimitByEmail(l KeyLimiter) *AuthHandler {
	h.emailLimit = l
	return h
}

// allowEmail reports whether another attempt for email on action may run and
// writes the 429 reply when it may not.
func (h *AuthHandler) allowEmail(w http.ResponseWriter, r *http.Request, action, email string) bool {
	email = types.NormalizeEmail(email)
	if h.emailLimit == nil || email == "" {
		return true
	}
	if h.emailLimit.Allow(action + ":" + email) {
		return true
	}
	h.logger.WarnContext(r.Context(), "rate limit exceeded for account", "action", action)
	w.Header().Set("Retry-After", "60")
	apierrors.NewRateLimitError().Write(w, r)
	return false
}

// AuthRouter registers auth routes on the given router. limit guards the
// credential-guessing endpoints.
func AuthRouter(r chi.Router, h *AuthHandler, limit func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.With(limit).Post("/login", h.Login)
	r.With(h.RequireAuth).Get("/me", h.Me)
	r.With(limit).Post("/forgot-password", h.ForgotPassword)
	r.With(limit).Post("/reset-password", h.ResetPassword)
}

// RequireAuth admits requests carrying a valid bearer token for an existing,
// active user and attaches that user to the request context. Every rejection
// gets the same 401 body.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			apierrors.ErrNotAuthorized.Write(w, r)
			return
		}

		userID, err := h.tokens.Verify(tokenString)
		if err != nil {
			apierrors.ErrNotAuthorized.Write(w, r)
			return
		}

		user, err := h.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				apierrors.ErrNotAuthorized.Write(w, r)
				return
			}
			writeError(w, r, h.logger, err)
			return
		}
		if !user.IsActive {
			apierrors.ErrNotAuthorized.Write(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Register creates a new user account and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" || req.UserType == "" {
		writeError(w, r, h.logger, services.NewValidationError("Please provide email, password, and user type"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, h.logger, services.NewValidationError(err.Error()))
		return
	}

	account, err := types.NewAccount(req.UserType, req.FirstName, req.LastName, req.OrganizationName, req.ContactPerson)
	if err != nil {
		writeError(w, r, h.logger, services.NewValidationError(missingNameMessage(req.UserType)))
		return
	}

	user, err := h.users.Register(r.Context(), types.Registration{
		Email:    req.Email,
		Password: req.Password,
		Account:  account,
		Profile:  req.profile(),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, r, http.StatusCreated, user)
}

func missingNameMessage(role types.Role) string {
	if role == types.RoleNGO {
		return "Organization name and contact person are required for NGOs"
	}
	return "First and last name are required for volunteers"
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, h.logger, services.NewValidationError("Please provide email and password"))
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, r, http.StatusOK, user)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, _, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, AuthResponse{Success: true, Token: token, User: user.Public()})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		apierrors.ErrNotAuthorized.Write(w, r)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user.Public()})
}

// ForgotPassword sends a reset code when the email belongs to an account.
// The reply is the same either way.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !h.allowEmail(w, r, "forgot", req.Email) {
		return
	}

	if err := h.resets.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: forgotPasswordMessage})
}

// ResetPassword replaces the password of a user holding a valid reset code.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !h.allowEmail(w, r, "reset", req.Email) {
		return
	}

	err := h.resets.ResetPassword(r.Context(), types.ResetRequest{
		Email:           req.Email,
		Code:            req.OTP,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Password has been reset successfully"})
}

// RegisterRequest accepts profile attributes either nested under "profile"
// or flat at the top level; the nested form wins when both are sent.
type RegisterRequest struct {
	Email            string         `json:"email" validate:"isemail"`
	Password         string         `json:"password"`
	UserType         types.Role     `json:"userType" validate:"role"`
	FirstName        string         `json:"firstName"`
	LastName         string         `json:"lastName"`
	OrganizationName string         `json:"organizationName"`
	ContactPerson    string         `json:"contactPerson"`
	Nested           *types.Profile `json:"profile"`
	types.Profile
}

func (req RegisterRequest) profile() types.Profile {
	p := req.Profile
	if req.Nested != nil {
		p = *req.Nested
	}
	p.Skills = types.CleanList(p.Skills)
	p.Interests = types.CleanList(p.Interests)
	p.FocusAreas = types.CleanList(p.FocusAreas)
	return p.Normalize()
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type AuthResponse struct {
	Success bool             `json:"success"`
	Token   string           `json:"token"`
	User    types.PublicUser `json:"user"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
