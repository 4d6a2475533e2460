package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

//go:embed seed.yaml
var seedYAML []byte

// seedData is the shape of a seed file.
type seedData struct {
	Users []struct {
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		IsAdmin   bool   `yaml:"is_admin"`
		IsStore   bool   `yaml:"is_store"`
		StoreName string `yaml:"store_name"`
	} `yaml:"users"`
	Suppliers []struct {
		Name    string `yaml:"name"`
		Contact string `yaml:"contact"`
		Address string `yaml:"address"`
	} `yaml:"suppliers"`
}

// Seed inserts the bootstrap users and suppliers from the embedded seed
// file. Entities that already exist are left untouched.
func Seed(ctx context.Context, s Store) error {
	return seedFrom(ctx, s, seedYAML)
}

// SeedFromFile works like Seed but reads the seed data from the given YAML
// file instead of the embedded one.
func SeedFromFile(ctx context.Context, s Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	return seedFrom(ctx, s, raw)
}

func seedFrom(ctx context.Context, s Store, raw []byte) error {
	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse seed data: %w", err)
	}

	for _, u := range data.Users {
		if _, err := s.GetUser(ctx, u.Username); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password for %s: %w", u.Username, err)
		}

		user := &domain.User{
			Username:     u.Username,
			PasswordHash: string(hash),
			IsAdmin:      u.IsAdmin,
			IsStore:      u.IsStore,
			StoreName:    u.StoreName,
		}
		if err := s.CreateUser(ctx, user); err != nil && !errors.Is(err, ErrDuplicateUsername) {
			return err
		}
	}

	for _, sup := range data.Suppliers {
		supplier, err := domain.NewSupplier(sup.Name, sup.Contact, sup.Address)
		if err != nil {
			return fmt.Errorf("invalid seed supplier %q: %w", sup.Name, err)
		}
		if err := s.CreateSupplier(ctx, supplier); err != nil && !errors.Is(err, ErrDuplicateName) {
			return err
		}
	}

	return nil
}
