// Package seed loads sample accounts into an empty user store.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ngoconnect/apiserver/internal/services"
	"github.com/ngoconnect/apiserver/types"
)

// SamplePassword is the password of every sample account.
const SamplePassword = "password123"

// Counter reports how many users exist.
type Counter interface {
	Count(ctx context.Context, role types.Role) (int64, error)
}

// Samples returns one volunteer and one NGO registration.
func Samples() []types.Registration {
	founded := 2015
	return []types.Registration{
		{
			Email:    "volunteer@example.com",
			Password: SamplePassword,
			Account:  types.Volunteer{FirstName: "John", LastName: "Doe"},
			Profile: types.Profile{
				Bio:          "Experienced developer passionate about making a difference",
				Skills:       []string{"JavaScript", "React", "Node.js"},
				Experience:   types.ExperienceAdvanced,
				Availability: types.AvailabilityPartTime,
				Interests:    []string{"Education", "Technology", "Environment"},
				Location:     "New York, NY",
			},
		},
		{
			Email:    "ngo@example.com",
			Password: SamplePassword,
			Account:  types.NGO{OrganizationName: "Help Foundation", ContactPerson: "Jane Smith"},
			Profile: types.Profile{
				Description: "We help communities through education and technology",
				Mission:     "Making the world a better place through innovation",
				FocusAreas:  []string{"Education", "Health", "Technology"},
				Size:        types.OrgSizeMedium,
				FoundedYear: &founded,
				Location:    "San Francisco, CA",
				Website:     "https://helpfoundation.org",
			},
		},
	}
}

// Run registers the sample accounts when the store holds no users and
// returns how many were created.
func Run(ctx context.Context, counter Counter, users *services.UserService, logger *slog.Logger) (int, error) {
	total, err := counter.Count(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if total > 0 {
		logger.InfoContext(ctx, "store already has users, skipping seed", "count", total)
		return 0, nil
	}

	created := 0
	for _, reg := range Samples() {
		user, err := users.Register(ctx, reg)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", reg.Email, err)
		}
		logger.InfoContext(ctx, "sample user created", "user_id", user.ID, "user_type", user.Role)
		created++
	}
	return created, nil
}
