package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ngoconnect/apiserver/internal/apierrors"
	"github.com/ngoconnect/apiserver/internal/services"
	"github.com/ngoconnect/apiserver/internal/storage"
	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/ngoconnect/apiserver/internal/validation"
	"github.com/ngoconnect/apiserver/types"
)

const (
	formFieldAvatar   = "avatar"
	maxAvatarFormSize = validation.MaxAvatarSize + 1<<20
)

// UserHandler serves profile editing and the volunteer/NGO listings.
type UserHandler struct {
	users    *services.UserService
	avatars  *storage.Storage
	validate *validation.Validator
	logger   *slog.Logger
}

// NewUserHandler constructs a UserHandler. avatars may be nil, in which case
// the avatar routes are not mounted.
func NewUserHandler(users *services.UserService, avatars *storage.Storage, validate *validation.Validator, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		avatars:  avatars,
		validate: validate,
		logger:   logger,
	}
}

// UserRouter registers user routes on the given router. Every route sits
// behind gate.
func UserRouter(r chi.Router, h *UserHandler, gate func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(gate)
		r.Put("/profile", h.UpdateProfile)
		r.Get("/volunteers", h.ListVolunteers)
		r.Get("/ngos", h.ListNGOs)
		if h.avatars != nil {
			r.Put("/profile/avatar", h.UploadAvatar)
			r.Get("/{userID}/avatar", h.GetAvatar)
		}
	})
}

// UpdateProfile applies a partial update to the caller's names and profile.
// Email, password, role and id cannot be changed here; such fields in the
// body are ignored.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		apierrors.ErrNotAuthorized.Write(w, r)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, h.logger, services.NewValidationError(err.Error()))
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user, types.ProfileUpdate{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		OrganizationName: req.OrganizationName,
		ContactPerson:    req.ContactPerson,
		Profile:          req.Profile,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: updated.Public()})
}

// ListVolunteers returns active volunteers matching the query filters.
func (h *UserHandler) ListVolunteers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.users.ListVolunteers(r.Context(), types.VolunteerFilter{
		Skills:       types.SplitList(q.Get("skills")),
		Interests:    types.SplitList(q.Get("interests")),
		Experience:   types.Experience(q.Get("experience")),
		Availability: types.Availability(q.Get("availability")),
		Location:     q.Get("location"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeList(w, users)
}

// ListNGOs returns active NGOs matching the query filters.
func (h *UserHandler) ListNGOs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.users.ListNGOs(r.Context(), types.NGOFilter{
		FocusAreas: types.SplitList(q.Get("focusAreas")),
		Size:       types.OrgSize(q.Get("size")),
		Location:   q.Get("location"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeList(w, users)
}

func writeList(w http.ResponseWriter, users []types.User) {
	data := types.PublicUsers(users)
	writeJSON(w, http.StatusOK, ListResponse{Success: true, Count: len(data), Data: data})
}

// UploadAvatar stores a new avatar image for the caller and replaces the
// previous one.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		apierrors.ErrNotAuthorized.Write(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarFormSize)
	if err := r.ParseMultipartForm(validation.MaxAvatarSize); err != nil {
		writeError(w, r, h.logger, services.NewValidationError("Avatar must be an image of at most 5 MB"))
		return
	}
	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, r, h.logger, services.NewValidationError("Please upload an image in the avatar field"))
		return
	}
	defer file.Close()

	img, err := validation.ValidateAvatar(file, header)
	if err != nil {
		writeError(w, r, h.logger, services.NewValidationError(err.Error()))
		return
	}

	key := storage.AvatarKey(user.ID, img.Ext)
	if err := h.avatars.Put(r.Context(), key, file, img.Size, img.ContentType); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	previous := user.AvatarKey
	updated, err := h.users.SetAvatar(r.Context(), user, key)
	if err != nil {
		_ = h.avatars.Delete(r.Context(), key)
		writeError(w, r, h.logger, err)
		return
	}

	if previous != "" && storage.OwnsAvatarKey(user.ID, previous) {
		if err := h.avatars.Delete(r.Context(), previous); err != nil {
			h.logger.WarnContext(r.Context(), "failed to delete previous avatar", "user_id", user.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: updated.Public()})
}

// GetAvatar streams a user's avatar image.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, h.logger, services.ErrUserNotFound)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, h.logger, services.ErrUserNotFound)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	if user.AvatarKey == "" || !user.IsActive {
		apierrors.NewNotFoundError("Avatar not found").Write(w, r)
		return
	}

	obj, err := h.avatars.Get(r.Context(), user.AvatarKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			apierrors.NewNotFoundError("Avatar not found").Write(w, r)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", storage.CacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WarnContext(r.Context(), "avatar stream interrupted", "user_id", user.ID, "error", err)
	}
}

type UpdateProfileRequest struct {
	FirstName        *string             `json:"firstName"`
	LastName         *string             `json:"lastName"`
	OrganizationName *string             `json:"organizationName"`
	ContactPerson    *string             `json:"contactPerson"`
	Profile          *types.ProfilePatch `json:"profile"`
}

type ListResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Data    []types.PublicUser `json:"data"`
}
