package types

import "fmt"

// VolunteerFilter narrows a listing of volunteers. Empty fields do not
// constrain the result; list fields match when any element matches.
type VolunteerFilter struct {
	Skills       []string
	Interests    []string
	Experience   Experience
	Availability Availability
	Location     string
}

// Validate checks the tier filters against their closed sets.
func (f VolunteerFilter) Validate() error {
	if !f.Experience.Valid() {
		return fmt.Errorf("invalid experience %q", f.Experience)
	}
	if !f.Availability.Valid() {
		return fmt.Errorf("invalid availability %q", f.Availability)
	}
	return nil
}

// NGOFilter narrows a listing of NGOs.
type NGOFilter struct {
	FocusAreas []string
	Size       OrgSize
	Location   string
}

// Validate checks the size filter against its closed set.
func (f NGOFilter) Validate() error {
	if !f.Size.Valid() {
		return fmt.Errorf("invalid size %q", f.Size)
	}
	return nil
}

// UserFilter is the storage-level query both listings reduce to. Only active
// users of Role are ever returned.
type UserFilter struct {
	Role         Role
	Skills       []string
	Interests    []string
	FocusAreas   []string
	Experience   Experience
	Availability Availability
	Size         OrgSize
	Location     string
}

// UserFilter converts the volunteer filter to a storage query.
func (f VolunteerFilter) UserFilter() UserFilter {
	return UserFilter{
		Role:         RoleVolunteer,
		Skills:       f.Skills,
		Interests:    f.Interests,
		Experience:   f.Experience,
		Availability: f.Availability,
		Location:     f.Location,
	}
}

// UserFilter converts the NGO filter to a storage query.
func (f NGOFilter) UserFilter() UserFilter {
	return UserFilter{
		Role:       RoleNGO,
		FocusAreas: f.FocusAreas,
		Size:       f.Size,
		Location:   f.Location,
	}
}
