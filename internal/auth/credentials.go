package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Checker-Finance/client-portal/internal/fixtures"
	"github.com/Checker-Finance/client-portal/internal/repository"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// SeedRecords hashes the demo passwords of the seed users.
func SeedRecords(users []fixtures.SeedUser, cost int) ([]repository.UserRecord, error) {
	out := make([]repository.UserRecord, 0, len(users))
	for _, u := range users {
		hash, err := HashPassword(u.Password, cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.User.UserID, err)
		}
		out = append(out, repository.UserRecord{User: u.User, PasswordHash: hash})
	}
	return out, nil
}
