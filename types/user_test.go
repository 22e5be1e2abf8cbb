package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicOmitsSecrets(t *testing.T) {
	u := User{
		ID:           uuid.New(),
		Email:        "a@example.com",
		PasswordHash: "$2a$12$hashhashhash",
		Role:         RoleVolunteer,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Reset:        &PasswordReset{Code: "123456", ExpiresAt: time.Now()},
		IsActive:     true,
	}

	for _, v := range []any{u, u.Public()} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		body := string(data)
		assert.NotContains(t, body, "hashhashhash")
		assert.NotContains(t, body, "123456")
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "reset")
	}
}

func TestPublicAvatarURL(t *testing.T) {
	u := User{ID: uuid.New(), Role: RoleNGO}
	assert.Empty(t, u.Public().AvatarURL)

	u.AvatarKey = "avatars/x.png"
	assert.Equal(t, "/api/users/"+u.ID.String()+"/avatar", u.Public().AvatarURL)
}

func TestEnumValidation(t *testing.T) {
	assert.True(t, Experience("").Valid())
	assert.True(t, ExperienceExpert.Valid())
	assert.False(t, Experience("guru").Valid())

	assert.True(t, Availability("").Valid())
	assert.True(t, AvailabilityProjectBased.Valid())
	assert.False(t, Availability("weekends").Valid())

	assert.True(t, OrgSize("").Valid())
	assert.True(t, OrgSizeEnterprise.Valid())
	assert.False(t, OrgSize("huge").Valid())

	assert.Error(t, Profile{Size: "huge"}.Validate())
	assert.NoError(t, Profile{Experience: ExperienceBeginner}.Validate())
}

func TestPasswordResetExpiredAt(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := PasswordReset{Code: "000001", ExpiresAt: expires}

	assert.False(t, r.ExpiredAt(expires.Add(-time.Nanosecond)))
	assert.True(t, r.ExpiredAt(expires))
	assert.True(t, r.ExpiredAt(expires.Add(time.Second)))
}

func TestProfileScan(t *testing.T) {
	var p Profile
	require.NoError(t, p.Scan([]byte(`{"skills":["Go"],"size":"small"}`)))
	assert.Equal(t, []string{"Go"}, p.Skills)
	assert.Equal(t, OrgSizeSmall, p.Size)
	assert.NotNil(t, p.Interests)

	require.NoError(t, p.Scan(nil))
	assert.Empty(t, p.Skills)

	assert.Error(t, p.Scan(42))
}

func TestNewAccount(t *testing.T) {
	a, err := NewAccount(RoleVolunteer, " Ada ", "Lovelace", "ignored", "")
	require.NoError(t, err)
	assert.Equal(t, Volunteer{FirstName: "Ada", LastName: "Lovelace"}, a)

	_, err = NewAccount(RoleVolunteer, "Ada", "", "", "")
	assert.True(t, errors.Is(err, ErrMissingName))

	a, err = NewAccount(RoleNGO, "", "", "Helping Hands", "Grace")
	require.NoError(t, err)
	assert.Equal(t, RoleNGO, a.Role())

	_, err = NewAccount(RoleNGO, "", "", "Helping Hands", " ")
	assert.True(t, errors.Is(err, ErrMissingName))

	_, err = NewAccount("admin", "a", "b", "c", "d")
	assert.Error(t, err)
}

func TestApplyAccountClearsOtherRole(t *testing.T) {
	u := User{FirstName: "x", LastName: "y"}
	ApplyAccount(&u, NGO{OrganizationName: "Org", ContactPerson: "Pat"})

	assert.Equal(t, RoleNGO, u.Role)
	assert.Empty(t, u.FirstName)
	assert.Equal(t, "Pat", u.DisplayName())
	assert.Equal(t, NGO{OrganizationName: "Org", ContactPerson: "Pat"}, AccountOf(u))
}

func TestProfileMerge(t *testing.T) {
	year := 1999
	p := Profile{Bio: "old", Skills: []string{"Go"}, Location: "Lagos"}
	bio := "new"
	skills := []string{" Rust ", "", "SQL"}

	merged := p.Merge(ProfilePatch{Bio: &bio, Skills: &skills, FoundedYear: &year})

	assert.Equal(t, "new", merged.Bio)
	assert.Equal(t, []string{"Rust", "SQL"}, merged.Skills)
	assert.Equal(t, "Lagos", merged.Location)
	require.NotNil(t, merged.FoundedYear)
	assert.Equal(t, 1999, *merged.FoundedYear)
	assert.Equal(t, []string{"Go"}, p.Skills)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList("a, ,b"))
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, VolunteerFilter{}.Validate())
	assert.Error(t, VolunteerFilter{Experience: "guru"}.Validate())
	assert.Error(t, VolunteerFilter{Availability: "never"}.Validate())
	assert.Error(t, NGOFilter{Size: "tiny"}.Validate())

	f := VolunteerFilter{Skills: []string{"Go"}}.UserFilter()
	assert.Equal(t, RoleVolunteer, f.Role)
	assert.Equal(t, RoleNGO, NGOFilter{}.UserFilter().Role)
}
