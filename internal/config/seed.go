package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedDrink is one drink's initial configuration.
type SeedDrink struct {
	Name      string  `yaml:"name"`
	Price     float64 `yaml:"price"`
	BasePrice float64 `yaml:"base_price"`
	HalfLife  float64 `yaml:"half_life_minutes"`
	Impulse   float64 `yaml:"impulse"`
}

// Seed is the initial population of the exchange.
type Seed struct {
	Drinks []SeedDrink `yaml:"drinks"`
	Users  []string    `yaml:"users"`
}

// DefaultSeed mirrors the original bar demo: one beer at 10.0 and four
// regulars.
func DefaultSeed() *Seed {
	return &Seed{
		Drinks: []SeedDrink{
			{Name: "啤酒", Price: 10.0, BasePrice: 10.0, HalfLife: 30, Impulse: 0.2},
		},
		Users: []string{"Alice", "Bob", "Carol", "Dave"},
	}
}

// LoadSeed reads the seed file, falling back to the default seed when the
// file does not exist.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSeed(), nil
		}
		return nil, fmt.Errorf("read seed: %w", err)
	}

	seed := &Seed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("validate seed: %w", err)
	}
	return seed, nil
}

// Validate checks drink parameters and name uniqueness.
func (s *Seed) Validate() error {
	if len(s.Drinks) == 0 {
		return fmt.Errorf("at least one drink is required")
	}
	if len(s.Users) == 0 {
		return fmt.Errorf("at least one user is required")
	}

	drinkNames := make(map[string]bool, len(s.Drinks))
	for _, d := range s.Drinks {
		if d.Name == "" {
			return fmt.Errorf("drink name must not be empty")
		}
		if drinkNames[d.Name] {
			return fmt.Errorf("duplicate drink name %q", d.Name)
		}
		drinkNames[d.Name] = true
		if d.Price <= 0 {
			return fmt.Errorf("drink %q: price must be positive", d.Name)
		}
		if d.BasePrice <= 0 {
			return fmt.Errorf("drink %q: base_price must be positive", d.Name)
		}
		if d.HalfLife <= 0 {
			return fmt.Errorf("drink %q: half_life_minutes must be positive", d.Name)
		}
		if d.Impulse < 0 {
			return fmt.Errorf("drink %q: impulse must be non-negative", d.Name)
		}
	}

	userNames := make(map[string]bool, len(s.Users))
	for _, name := range s.Users {
		if name == "" {
			return fmt.Errorf("user name must not be empty")
		}
		if userNames[name] {
			return fmt.Errorf("duplicate user name %q", name)
		}
		userNames[name] = true
	}
	return nil
}
