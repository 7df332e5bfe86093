package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
)

// SeedUser is one user created when the in-memory store starts
type SeedUser struct {
	Name  string   `yaml:"name" validate:"required"`
	Roles []string `yaml:"roles,omitempty"`
}

// SeedClass is one class with its members
type SeedClass struct {
	Name  string     `yaml:"name" validate:"required"`
	Users []SeedUser `yaml:"users" validate:"dive"`
}

// Seed lists the classes and users of an in-memory store
type Seed struct {
	Classes []SeedClass `yaml:"classes" validate:"required,min=1,dive"`
}

// Permission returns the role mask of u
func (u SeedUser) Permission() model.Permission {
	p, _ := model.ParsePermission(u.Roles)
	return p
}

// LoadSeed reads and validates a seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := validate.Struct(&seed); err != nil {
		return nil, fmt.Errorf("seed validation failed: %w", err)
	}

	names := make(map[string]bool)
	for _, class := range seed.Classes {
		for _, u := range class.Users {
			if names[u.Name] {
				return nil, fmt.Errorf("user %s is listed twice", u.Name)
			}
			names[u.Name] = true
			if _, ok := model.ParsePermission(u.Roles); !ok {
				return nil, fmt.Errorf("user %s has an unknown role in %v", u.Name, u.Roles)
			}
		}
	}

	return &seed, nil
}
