package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ngoconnect/apiserver/internal/auth"
	"github.com/ngoconnect/apiserver/internal/services"
	"github.com/ngoconnect/apiserver/internal/storage"
	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/ngoconnect/apiserver/internal/validation"
	"github.com/ngoconnect/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (o *outbox) SendOTP(_ context.Context, user types.User, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.codes[user.Email] = code
	return nil
}

func (o *outbox) SendWelcome(context.Context, types.User) error { return nil }

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

func (o *outbox) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

type testServer struct {
	router  http.Handler
	repo    *store.MemoryUserRepository
	tokens  *auth.TokenService
	mail    *outbox
	avatars *storage.MemoryStorage
	auth    *AuthHandler
}

func newTestServer(t *testing.T, withAvatars bool) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := store.NewMemoryUserRepository()
	mail := &outbox{codes: make(map[string]string)}
	users := services.NewUserService(repo, auth.NewHasher(bcrypt.MinCost, 4), mail, logger)
	resets := services.NewResetService(users, repo, mail, 15*time.Minute, 24*time.Hour, logger)
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	validate := validation.New()

	ts := &testServer{repo: repo, tokens: tokens, mail: mail}
	var avatars *storage.Storage
	if withAvatars {
		ts.avatars = storage.NewMemoryStorage("avatars")
		avatars = storage.NewStorage(ts.avatars)
	}

	authHandler := NewAuthHandler(users, resets, tokens, validate, logger)
	ts.auth = authHandler
	userHandler := NewUserHandler(users, avatars, validate, logger)
	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	HealthRouter(r, NewHealthHandler(users, logger))
	r.Route("/api/auth", func(r chi.Router) { AuthRouter(r, authHandler, passthrough) })
	r.Route("/api/users", func(r chi.Router) { UserRouter(r, userHandler, authHandler.RequireAuth) })
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (ts *testServer) registerVolunteer(t *testing.T, email string) AuthResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":     email,
		"password":  "secret123",
		"userType":  "volunteer",
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"profile": map[string]any{
			"skills":     []string{"Go", "SQL"},
			"experience": "expert",
			"location":   "Lagos, Nigeria",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AuthResponse](t, rec)
}

func (ts *testServer) registerNGO(t *testing.T, email string) AuthResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":            email,
		"password":         "secret123",
		"userType":         "ngo",
		"organizationName": "Help Foundation",
		"contactPerson":    "Jane Smith",
		"focusAreas":       []string{"Education", "Health"},
		"size":             "medium",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AuthResponse](t, rec)
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t, false)
	resp := ts.registerVolunteer(t, "Ada@Example.com")

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, types.RoleVolunteer, resp.User.Role)
	assert.Equal(t, []string{"Go", "SQL"}, resp.User.Profile.Skills)

	userID, err := ts.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)
}

func TestRegisterFlatProfile(t *testing.T) {
	ts := newTestServer(t, false)
	resp := ts.registerNGO(t, "ngo@example.com")
	assert.Equal(t, []string{"Education", "Health"}, resp.User.Profile.FocusAreas)
	assert.Equal(t, types.OrgSizeMedium, resp.User.Profile.Size)
}

func TestRegisterResponseIsRedacted(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "secret123", "userType": "volunteer",
		"firstName": "Ada", "lastName": "Lovelace",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := strings.ToLower(rec.Body.String())
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "secret123")
	assert.NotContains(t, body, "$2a$")
	assert.NotContains(t, body, "reset")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "taken@example.com")

	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"missing fields", map[string]any{"email": "a@example.com"}, "Please provide email, password, and user type"},
		{"bad email", map[string]any{"email": "nope", "password": "secret123", "userType": "volunteer", "firstName": "A", "lastName": "B"}, "Please provide a valid email"},
		{"bad role", map[string]any{"email": "a@example.com", "password": "secret123", "userType": "admin"}, "userType must be volunteer or ngo"},
		{"volunteer names", map[string]any{"email": "a@example.com", "password": "secret123", "userType": "volunteer", "firstName": "A"}, "First and last name are required for volunteers"},
		{"ngo names", map[string]any{"email": "a@example.com", "password": "secret123", "userType": "ngo", "organizationName": "Org"}, "Organization name and contact person are required for NGOs"},
		{"short password", map[string]any{"email": "a@example.com", "password": "123", "userType": "volunteer", "firstName": "A", "lastName": "B"}, "Password must be at least 6 characters"},
		{"duplicate", map[string]any{"email": "TAKEN@example.com", "password": "secret123", "userType": "volunteer", "firstName": "A", "lastName": "B"}, "Email already registered"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[errorBody](t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tc.want, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
		})
	}

	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "a@example.com", "password": "secret123", "userType": "volunteer",
		"firstName": "A", "lastName": "B", "experience": "guru",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Error, "experience must be one of")
}

func TestRegisterMalformedBody(t *testing.T) {
	ts := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[errorBody](t, rec).Error)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, false)
	registered := ts.registerVolunteer(t, "ada@example.com")

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: " ADA@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AuthResponse](t, rec)
	assert.Equal(t, registered.User.ID, resp.User.ID)
	assert.NotEmpty(t, resp.Token)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please provide email and password", decode[errorBody](t, rec).Error)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "ada@example.com")

	wrong := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
	unknown := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ghost@example.com", Password: "secret123"})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Invalid email or password", decode[errorBody](t, wrong).Error)
}

func TestLoginInactive(t *testing.T) {
	ts := newTestServer(t, false)
	resp := ts.registerVolunteer(t, "ada@example.com")
	require.NoError(t, ts.repo.SetActive(resp.User.ID, false))

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account is deactivated", decode[errorBody](t, rec).Error)
}

func TestAuthorizationGate(t *testing.T) {
	ts := newTestServer(t, false)
	active := ts.registerVolunteer(t, "ada@example.com")
	inactive := ts.registerVolunteer(t, "idle@example.com")
	require.NoError(t, ts.repo.SetActive(inactive.User.ID, false))
	orphan, _, err := ts.tokens.Issue(uuid.New())
	require.NoError(t, err)
	forged, err := auth.NewTokenService("other-secret", time.Hour)
	require.NoError(t, err)
	forgedToken, _, err := forged.Issue(active.User.ID)
	require.NoError(t, err)

	denied := map[string]string{
		"no header":     "",
		"basic scheme":  "Basic " + active.Token,
		"empty bearer":  "Bearer ",
		"garbage":       "Bearer not-a-token",
		"wrong secret":  "Bearer " + forgedToken,
		"missing user":  "Bearer " + orphan,
		"inactive user": "Bearer " + inactive.Token,
	}
	for name, header := range denied {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"Not authorized to access this route","code":"UNAUTHORIZED"}`, rec.Body.String())
		})
	}

	rec := ts.do(t, http.MethodGet, "/api/auth/me", active.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserResponse](t, rec)
	assert.True(t, me.Success)
	assert.Equal(t, active.User.ID, me.User.ID)
}

func TestForgotPasswordIsEnumerationSafe(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "ada@example.com")

	known := ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{Email: "ada@example.com"})
	unknown := ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{Email: "ghost@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())
	assert.Len(t, ts.mail.code("ada@example.com"), 6)
	assert.Empty(t, ts.mail.code("ghost@example.com"))

	rec := ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is required", decode[errorBody](t, rec).Error)
}

func TestForgotPasswordDispatchFailure(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "ada@example.com")
	ts.mail.fail(errors.New("smtp: connection refused"))

	rec := ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{Email: "ada@example.com"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotContains(t, rec.Body.String(), "smtp")
}

func TestResetPasswordFlow(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "ada@example.com")
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{Email: "ada@example.com"}).Code)
	code := ts.mail.code("ada@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec := ts.do(t, http.MethodPost, "/api/auth/reset-password", "", ResetPasswordRequest{
		Email: "ada@example.com", OTP: wrong, NewPassword: "brandnew1", ConfirmPassword: "brandnew1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email or OTP", decode[errorBody](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/api/auth/reset-password", "", ResetPasswordRequest{
		Email: "ada@example.com", OTP: code, NewPassword: "brandnew1", ConfirmPassword: "brandnew2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Passwords do not match", decode[errorBody](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/api/auth/reset-password", "", ResetPasswordRequest{
		Email: "ada@example.com", OTP: code, NewPassword: "brandnew1", ConfirmPassword: "brandnew1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password has been reset successfully", decode[MessageResponse](t, rec).Message)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "brandnew1"}).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "secret123"}).Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/reset-password", "", ResetPasswordRequest{
		Email: "ada@example.com", OTP: code, NewPassword: "another1", ConfirmPassword: "another1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No password reset request found", decode[errorBody](t, rec).Error)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t, false)
	resp := ts.registerVolunteer(t, "ada@example.com")
	before, err := ts.repo.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPut, "/api/users/profile", resp.Token, map[string]any{
		"email":     "evil@example.com",
		"password":  "hijacked",
		"userType":  "ngo",
		"id":        uuid.NewString(),
		"firstName": "Augusta",
		"profile":   map[string]any{"bio": "Analyst", "availability": "part-time"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[UserResponse](t, rec).User
	assert.Equal(t, resp.User.ID, updated.ID)
	assert.Equal(t, "ada@example.com", updated.Email)
	assert.Equal(t, types.RoleVolunteer, updated.Role)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "Analyst", updated.Profile.Bio)
	assert.Equal(t, types.AvailabilityPartTime, updated.Profile.Availability)
	assert.Equal(t, []string{"Go", "SQL"}, updated.Profile.Skills)

	after, err := ts.repo.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "secret123"}).Code)
}

func TestUpdateProfileRejectsInvalidTier(t *testing.T) {
	ts := newTestServer(t, false)
	resp := ts.registerVolunteer(t, "ada@example.com")

	rec := ts.do(t, http.MethodPut, "/api/users/profile", resp.Token, map[string]any{
		"profile": map[string]any{"experience": "guru"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/users/profile", resp.Token, map[string]any{"lastName": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "First and last name are required for volunteers", decode[errorBody](t, rec).Error)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPut, "/api/users/profile", "", map[string]any{}).Code)
}

func TestListVolunteers(t *testing.T) {
	ts := newTestServer(t, false)
	ada := ts.registerVolunteer(t, "ada@example.com")
	ngo := ts.registerNGO(t, "ngo@example.com")

	rec := ts.do(t, http.MethodGet, "/api/users/volunteers?skills=Rust,%20Go&location=LAGOS", ngo.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[ListResponse](t, rec)
	assert.True(t, list.Success)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, ada.User.ID, list.Data[0].ID)
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "password")

	rec = ts.do(t, http.MethodGet, "/api/users/volunteers?skills=Basket%20weaving", ngo.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"count":0,"data":[]}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/users/volunteers?experience=guru", ngo.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/users/volunteers", "", nil).Code)
}

func TestListNGOs(t *testing.T) {
	ts := newTestServer(t, false)
	ada := ts.registerVolunteer(t, "ada@example.com")
	ngo := ts.registerNGO(t, "ngo@example.com")

	rec := ts.do(t, http.MethodGet, "/api/users/ngos?focusAreas=Health&size=medium", ada.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[ListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, ngo.User.ID, list.Data[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/users/ngos?size=huge", ada.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "ada@example.com")
	ts.registerNGO(t, "ngo@example.com")

	rec := ts.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Server is running", resp.Message)
	assert.Equal(t, "healthy", resp.Status.Server)
	assert.Equal(t, "connected", resp.Status.Database)
	assert.Equal(t, services.Stats{Total: 2, Volunteers: 1, NGOs: 1}, resp.Users)

	rec = ts.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NGO Connect Backend API", decode[IndexResponse](t, rec).Message)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func avatarRequest(t *testing.T, token string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/users/profile/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAvatarUploadAndFetch(t *testing.T) {
	ts := newTestServer(t, true)
	ada := ts.registerVolunteer(t, "ada@example.com")

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, avatarRequest(t, ada.Token, "me.png", pngHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decode[UserResponse](t, rec).User
	assert.Equal(t, "/api/users/"+ada.User.ID.String()+"/avatar", user.AvatarURL)
	require.Len(t, ts.avatars.Keys(), 1)
	first := ts.avatars.Keys()[0]

	rec = ts.do(t, http.MethodGet, user.AvatarURL, ada.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, avatarRequest(t, ada.Token, "again.png", pngHeader))
	require.Equal(t, http.StatusOK, rec.Code)
	keys := ts.avatars.Keys()
	require.Len(t, keys, 1)
	assert.NotEqual(t, first, keys[0])
}

func TestAvatarRejectsNonImages(t *testing.T) {
	ts := newTestServer(t, true)
	ada := ts.registerVolunteer(t, "ada@example.com")

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, avatarRequest(t, ada.Token, "evil.png", []byte("<html><script>alert(1)</script></html>")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.avatars.Keys())

	rec = ts.do(t, http.MethodGet, "/api/users/"+ada.User.ID.String()+"/avatar", ada.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/users/not-a-uuid/avatar", ada.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAvatarRoutesNeedStorage(t *testing.T) {
	ts := newTestServer(t, false)
	ada := ts.registerVolunteer(t, "ada@example.com")

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, avatarRequest(t, ada.Token, "me.png", pngHeader))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	token, err := bearerToken(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	req.Header.Set("Authorization", "Token abc")
	_, err = bearerToken(req)
	assert.Error(t, err)
}

type keyCounter struct {
	mu   sync.Mutex
	max  int
	seen map[string]int
}

func (k *keyCounter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seen[key]++
	return k.seen[key] <= k.max
}

func TestPasswordRecoveryLimitedPerEmail(t *testing.T) {
	ts := newTestServer(t, false)
	ts.registerVolunteer(t, "ada@example.com")
	limit := &keyCounter{max: 1, seen: make(map[string]int)}
	ts.auth.LimitByEmail(limit)

	attempt := map[string]string{"otp": "000000", "newPassword": "abcdef", "confirmPassword": "abcdef"}
	attempt["email"] = "ada@example.com"
	rec := ts.do(t, http.MethodPost, "/api/auth/reset-password", "", attempt)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	attempt["email"] = "  ADA@example.com"
	rec = ts.do(t, http.MethodPost, "/api/auth/reset-password", "", attempt)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", decode[errorBody](t, rec).Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "Ada@Example.com"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, map[string]int{"reset:ada@example.com": 2, "forgot:ada@example.com": 2}, limit.seen)

	// An empty email is left to field validation.
	rec = ts.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
