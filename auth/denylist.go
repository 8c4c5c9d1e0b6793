package auth

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arrively-api/models"
)

// Denylist records token ids that must be rejected before their expiry.
// Revoke reports whether this call was the one that recorded jti; a second
// Revoke of the same id returns false, which makes it usable as an atomic
// consume for single-use tokens.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RevokeClaims adds the token described by c to d until it expires.
func RevokeClaims(ctx context.Context, d Denylist, c *Claims) (bool, error) {
	if c == nil || c.ID == "" {
		return false, nil
	}
	return d.Revoke(ctx, c.ID, c.ExpiresAtTime())
}

// DBDenylist stores revoked token ids in the revoked_tokens table.
type DBDenylist struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBDenylist(db *gorm.DB) *DBDenylist {
	return &DBDenylist{db: db, now: time.Now}
}

func (d *DBDenylist) Revoke(ctx context.Context, jti string, until time.Time) (bool, error) {
	now := d.now()
	if !until.After(now) {
		return false, nil
	}
	tx := d.db.WithContext(ctx)
	// expired rows are useless, drop them while we are here
	if err := tx.Where("expires_at <= ?", now).Delete(&models.RevokedToken{}).Error; err != nil {
		return false, err
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RevokedToken{JTI: jti, ExpiresAt: until})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *DBDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ? AND expires_at > ?", jti, d.now()).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
