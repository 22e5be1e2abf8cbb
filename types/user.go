package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the kind of account a user registered as. It never changes after
// creation.
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleNGO       Role = "ngo"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleVolunteer || r == RoleNGO
}

// Experience is a volunteer's self-reported experience tier.
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
	ExperienceExpert       Experience = "expert"
)

// Experiences lists the accepted experience tiers.
var Experiences = []Experience{ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced, ExperienceExpert}

// Valid reports whether e is unset or one of Experiences.
func (e Experience) Valid() bool {
	return e == "" || contains(Experiences, e)
}

// Availability is how much time a volunteer can offer.
type Availability string

const (
	AvailabilityFewHoursWeek  Availability = "few-hours-week"
	AvailabilityFewHoursMonth Availability = "few-hours-month"
	AvailabilityPartTime      Availability = "part-time"
	AvailabilityFullTime      Availability = "full-time"
	AvailabilityProjectBased  Availability = "project-based"
)

// Availabilities lists the accepted availability tiers.
var Availabilities = []Availability{
	AvailabilityFewHoursWeek,
	AvailabilityFewHoursMonth,
	AvailabilityPartTime,
	AvailabilityFullTime,
	AvailabilityProjectBased,
}

// Valid reports whether a is unset or one of Availabilities.
func (a Availability) Valid() bool {
	return a == "" || contains(Availabilities, a)
}

// OrgSize is the size tier of an NGO.
type OrgSize string

const (
	OrgSizeSmall      OrgSize = "small"
	OrgSizeMedium     OrgSize = "medium"
	OrgSizeLarge      OrgSize = "large"
	OrgSizeEnterprise OrgSize = "enterprise"
)

// OrgSizes lists the accepted size tiers.
var OrgSizes = []OrgSize{OrgSizeSmall, OrgSizeMedium, OrgSizeLarge, OrgSizeEnterprise}

// Valid reports whether s is unset or one of OrgSizes.
func (s OrgSize) Valid() bool {
	return s == "" || contains(OrgSizes, s)
}

func contains[T comparable](set []T, v T) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// Profile holds the optional, loosely structured attributes of a user.
// Volunteer and NGO attributes share one bag; a user only fills the ones
// that make sense for its role.
type Profile struct {
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Website  string `json:"website"`

	Bio          string       `json:"bio"`
	Skills       []string     `json:"skills"`
	Experience   Experience   `json:"experience" validate:"experience"`
	Availability Availability `json:"availability" validate:"availability"`
	Interests    []string     `json:"interests"`

	Description        string   `json:"description"`
	Mission            string   `json:"mission"`
	FocusAreas         []string `json:"focusAreas"`
	Size               OrgSize  `json:"size" validate:"orgsize"`
	FoundedYear        *int     `json:"foundedYear"`
	RegistrationNumber string   `json:"registrationNumber"`
}

// Validate checks the enumerated tiers against their closed sets.
func (p Profile) Validate() error {
	if !p.Experience.Valid() {
		return fmt.Errorf("invalid experience %q", p.Experience)
	}
	if !p.Availability.Valid() {
		return fmt.Errorf("invalid availability %q", p.Availability)
	}
	if !p.Size.Valid() {
		return fmt.Errorf("invalid size %q", p.Size)
	}
	return nil
}

// Normalize replaces nil lists with empty ones so the JSON shape is stable.
func (p Profile) Normalize() Profile {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.FocusAreas == nil {
		p.FocusAreas = []string{}
	}
	return p
}

// Value stores the profile as a JSONB document.
func (p Profile) Value() (driver.Value, error) {
	return json.Marshal(p.Normalize())
}

// Scan reads a JSONB document into the profile.
func (p *Profile) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Profile{}.Normalize()
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("profile: unsupported scan type %T", src)
	}
	var out Profile
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = out.Normalize()
	return nil
}

// PasswordReset is an outstanding one-time password reset code. The code and
// its expiry only ever exist together.
type PasswordReset struct {
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// ExpiredAt reports whether the code is no longer usable at now. A code
// presented exactly at its expiry instant is expired.
func (r PasswordReset) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// User represents an account in the system.
// It contains identity, credentials, role-specific names, profile and audit
// metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id"`

	// Email is the lowercase login address of the user.
	Email string `json:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-"`

	// Role is either volunteer or ngo.
	Role Role `json:"userType"`

	// FirstName and LastName are required for volunteers.
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	// OrganizationName and ContactPerson are required for NGOs.
	OrganizationName string `json:"organizationName"`
	ContactPerson    string `json:"contactPerson"`

	Profile Profile `json:"profile"`

	// AvatarKey is the object storage key of the uploaded avatar, if any.
	AvatarKey string `json:"-"`

	// IsEmailVerified is reserved; no flow sets it yet.
	IsEmailVerified bool `json:"isEmailVerified"`

	// Reset is the outstanding password reset code, nil when none was
	// requested.
	Reset *PasswordReset `json:"-"`

	// IsActive gates login and every authenticated route.
	IsActive bool `json:"isActive"`

	// LastLogin is reserved; no flow writes it yet.
	LastLogin *time.Time `json:"lastLogin,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns the name used to greet the user.
func (u User) DisplayName() string {
	if u.Role == RoleNGO {
		return u.ContactPerson
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PublicUser is the redacted view of a user returned by the API. It has no
// room for the password hash or the reset code.
type PublicUser struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Role             Role       `json:"userType"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	OrganizationName string     `json:"organizationName,omitempty"`
	ContactPerson    string     `json:"contactPerson,omitempty"`
	Profile          Profile    `json:"profile"`
	AvatarURL        string     `json:"avatarUrl,omitempty"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	IsActive         bool       `json:"isActive"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Public returns the redacted view of u.
func (u User) Public() PublicUser {
	pub := PublicUser{
		ID:               u.ID,
		Email:            u.Email,
		Role:             u.Role,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		OrganizationName: u.OrganizationName,
		ContactPerson:    u.ContactPerson,
		Profile:          u.Profile.Normalize(),
		IsEmailVerified:  u.IsEmailVerified,
		IsActive:         u.IsActive,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
	if u.AvatarKey != "" {
		pub.AvatarURL = "/api/users/" + u.ID.String() + "/avatar"
	}
	return pub
}

// PublicUsers redacts a list of users.
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ErrMissingName is returned when a role-specific required name is empty.
var ErrMissingName = errors.New("missing required name")
