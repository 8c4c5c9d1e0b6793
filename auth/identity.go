package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"arrively-api/models"
)

// ErrUnknownAccount is returned when a token names a user that no longer exists.
var ErrUnknownAccount = errors.New("account no longer exists")

// IdentityStore reports the current role and token version of an account.
// A token whose version differs from the stored one is stale.
type IdentityStore interface {
	Current(ctx context.Context, userID uint) (Identity, error)
}

// DBIdentityStore reads identities from the users table.
type DBIdentityStore struct {
	db *gorm.DB
}

func NewDBIdentityStore(db *gorm.DB) *DBIdentityStore {
	return &DBIdentityStore{db: db}
}

func (s *DBIdentityStore) Current(ctx context.Context, userID uint) (Identity, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "role", "token_version").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnknownAccount
	}
	if err != nil {
		return Identity{}, err
	}
	return IdentityOf(&user), nil
}

// Grant sets the role of the account with email and bumps its token version,
// which ends the sessions issued under the old role.
func (s *DBIdentityStore) Grant(ctx context.Context, email string, role models.UserRole) (Identity, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
			return err
		}
		return tx.Model(&user).Updates(map[string]any{
			"role":          role,
			"token_version": gorm.Expr("token_version + 1"),
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnknownAccount
	}
	if err != nil {
		return Identity{}, err
	}
	return s.Current(ctx, user.ID)
}

// IdentityOf is the identity tokens issued to user should carry.
func IdentityOf(user *models.User) Identity {
	return Identity{
		Subject: Subject(user.ID),
		Role:    string(user.Role),
		Version: user.TokenVersion,
	}
}

// Current reports whether c was issued against id's present token version.
func (c *Claims) Current(id Identity) bool {
	return c.Version == id.Version && c.Role == id.Role
}
