package directory

import (
	"context"
	"fmt"
	"os"

	domain "github.com/example/qa-realtime/domain/directory"
	"gopkg.in/yaml.v3"
)

// Seed describes directory content loaded at startup for local environments.
//
//	users:
//	  - id: u1
//	    email: qa@example.com
//	    role: admin
//	    projects: [p42]
type Seed struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser is one user entry of a Seed.
type SeedUser struct {
	ID       string   `yaml:"id"`
	Email    string   `yaml:"email"`
	Role     string   `yaml:"role"`
	Inactive bool     `yaml:"inactive"`
	Projects []string `yaml:"projects"`
}

// LoadSeed parses a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, u := range seed.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("seed user #%d has no id", i+1)
		}
	}
	return &seed, nil
}

// Apply writes the seed into the repository.
func (s *Seed) Apply(ctx context.Context, repo *Repository) error {
	for _, u := range s.Users {
		role := u.Role
		if role == "" {
			role = "member"
		}
		user := &domain.User{
			ID:     u.ID,
			Email:  u.Email,
			Role:   role,
			Active: !u.Inactive,
		}
		if err := repo.UpsertUser(ctx, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.ID, err)
		}
		for _, projectID := range u.Projects {
			if err := repo.AddProjectMember(ctx, projectID, u.ID); err != nil {
				return fmt.Errorf("failed to seed membership %s/%s: %w", projectID, u.ID, err)
			}
		}
	}
	return nil
}
