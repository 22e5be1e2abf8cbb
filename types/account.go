package types

import (
	"fmt"
	"strings"
)

// Account carries the role-specific names of a user. Volunteer and NGO are
// the only implementations.
type Account interface {
	Role() Role
	apply(u *User)
}

// Volunteer is the account of an individual offering time and skills.
type Volunteer struct {
	FirstName string
	LastName  string
}

func (Volunteer) Role() Role { return RoleVolunteer }

func (v Volunteer) apply(u *User) {
	u.Role = RoleVolunteer
	u.FirstName = v.FirstName
	u.LastName = v.LastName
	u.OrganizationName = ""
	u.ContactPerson = ""
}

// NGO is the account of an organization looking for volunteers.
type NGO struct {
	OrganizationName string
	ContactPerson    string
}

func (NGO) Role() Role { return RoleNGO }

func (n NGO) apply(u *User) {
	u.Role = RoleNGO
	u.OrganizationName = n.OrganizationName
	u.ContactPerson = n.ContactPerson
	u.FirstName = ""
	u.LastName = ""
}

// NewAccount builds the account for role from the supplied names, checking
// that the names required by the role are present.
func NewAccount(role Role, firstName, lastName, organizationName, contactPerson string) (Account, error) {
	switch role {
	case RoleVolunteer:
		v := Volunteer{FirstName: strings.TrimSpace(firstName), LastName: strings.TrimSpace(lastName)}
		if v.FirstName == "" || v.LastName == "" {
			return nil, fmt.Errorf("volunteer: %w", ErrMissingName)
		}
		return v, nil
	case RoleNGO:
		n := NGO{OrganizationName: strings.TrimSpace(organizationName), ContactPerson: strings.TrimSpace(contactPerson)}
		if n.OrganizationName == "" || n.ContactPerson == "" {
			return nil, fmt.Errorf("ngo: %w", ErrMissingName)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// AccountOf returns the account view of u.
func AccountOf(u User) Account {
	if u.Role == RoleNGO {
		return NGO{OrganizationName: u.OrganizationName, ContactPerson: u.ContactPerson}
	}
	return Volunteer{FirstName: u.FirstName, LastName: u.LastName}
}

// ApplyAccount copies the account's names onto u and sets its role.
func ApplyAccount(u *User, a Account) {
	a.apply(u)
}

// Registration is the input to creating a new user.
type Registration struct {
	Email    string
	Password string
	Account  Account
	Profile  Profile
}

// ProfileUpdate is a partial update of a user's editable fields. Nil fields
// are left unchanged. Names that do not belong to the user's role are
// ignored.
type ProfileUpdate struct {
	FirstName        *string
	LastName         *string
	OrganizationName *string
	ContactPerson    *string
	Profile          *ProfilePatch
}

// ProfilePatch is a partial update of a Profile. Set fields replace the stored
// value; nil fields are kept.
type ProfilePatch struct {
	Phone              *string       `json:"phone"`
	Location           *string       `json:"location"`
	Website            *string       `json:"website"`
	Bio                *string       `json:"bio"`
	Skills             *[]string     `json:"skills"`
	Experience         *Experience   `json:"experience" validate:"omitempty,experience"`
	Availability       *Availability `json:"availability" validate:"omitempty,availability"`
	Interests          *[]string     `json:"interests"`
	Description        *string       `json:"description"`
	Mission            *string       `json:"mission"`
	FocusAreas         *[]string     `json:"focusAreas"`
	Size               *OrgSize      `json:"size" validate:"omitempty,orgsize"`
	FoundedYear        *int          `json:"foundedYear"`
	RegistrationNumber *string       `json:"registrationNumber"`
}

// Merge returns p with the set fields of patch applied.
func (p Profile) Merge(patch ProfilePatch) Profile {
	setString(&p.Phone, patch.Phone)
	setString(&p.Location, patch.Location)
	setString(&p.Website, patch.Website)
	setString(&p.Bio, patch.Bio)
	setList(&p.Skills, patch.Skills)
	if patch.Experience != nil {
		p.Experience = *patch.Experience
	}
	if patch.Availability != nil {
		p.Availability = *patch.Availability
	}
	setList(&p.Interests, patch.Interests)
	setString(&p.Description, patch.Description)
	setString(&p.Mission, patch.Mission)
	setList(&p.FocusAreas, patch.FocusAreas)
	if patch.Size != nil {
		p.Size = *patch.Size
	}
	if patch.FoundedYear != nil {
		year := *patch.FoundedYear
		p.FoundedYear = &year
	}
	setString(&p.RegistrationNumber, patch.RegistrationNumber)
	return p.Normalize()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setList(dst *[]string, src *[]string) {
	if src != nil {
		*dst = CleanList(*src)
	}
}

// CleanList trims entries and drops empty ones.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SplitList parses a comma-separated query value.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return CleanList(strings.Split(raw, ","))
}

// ResetRequest is the input to completing a password reset.
type ResetRequest struct {
	Email           string
	Code            string
	NewPassword     string
	ConfirmPassword string
}
