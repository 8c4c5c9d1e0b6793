package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"arrively-api/models"
)

type migration struct {
	Version int64
	Name    string
	Up      func(tx *gorm.DB) error
}

func autoMigrate(values ...any) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error { return tx.Migrator().AutoMigrate(values...) }
}

// Order matters: versions are applied ascending and never renumbered.
var migrations = []migration{
	{Version: 1, Name: "create_accounts", Up: autoMigrate(&models.City{}, &models.User{}, &models.UserProfile{}, &models.Settings{})},
	{Version: 2, Name: "create_payments", Up: autoMigrate(&models.Payment{})},
	{Version: 3, Name: "create_fleet", Up: autoMigrate(&models.Driver{}, &models.Vehicle{})},
	{Version: 4, Name: "create_rides", Up: autoMigrate(&models.Ride{}, &models.RideStatusHistory{})},
	{Version: 5, Name: "create_support_tickets", Up: autoMigrate(&models.SupportTicket{})},
	{Version: 6, Name: "create_recent_locations", Up: autoMigrate(&models.RecentLocation{})},
	{Version: 7, Name: "create_favorites", Up: autoMigrate(&models.Favorite{})},
	{Version: 8, Name: "create_revoked_tokens", Up: autoMigrate(&models.RevokedToken{})},
	{Version: 9, Name: "add_account_roles", Up: autoMigrate(&models.User{}, &models.Driver{})},
}

type MigrationState struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
}

// gooseDialect maps the gorm dialector onto goose's.
func gooseDialect(db *gorm.DB) (goose.Dialect, error) {
	switch name := db.Dialector.Name(); name {
	case "postgres":
		return goose.DialectPostgres, nil
	case "sqlite":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("no migration dialect for %q", name)
	}
}

// provider builds a goose provider whose Go migrations run the gorm
// migrator inside the transaction goose opens for each version.
func provider(db *gorm.DB) (*goose.Provider, error) {
	dialect, err := gooseDialect(db)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	gooseMigrations := make([]*goose.Migration, 0, len(migrations))
	for _, m := range migrations {
		up := m.Up
		gooseMigrations = append(gooseMigrations, goose.NewGoMigration(m.Version, &goose.GoFunc{
			RunTx: func(ctx context.Context, tx *sql.Tx) error {
				gtx := db.Session(&gorm.Session{NewDB: true, Context: ctx})
				gtx.Statement.ConnPool = tx
				return up(gtx)
			},
		}, nil))
	}
	return goose.NewProvider(dialect, sqlDB, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(gooseMigrations...),
	)
}

func migrationName(version int64) string {
	for _, m := range migrations {
		if m.Version == version {
			return m.Name
		}
	}
	return fmt.Sprintf("version_%d", version)
}

// Migrate applies every pending migration, each in its own transaction,
// and returns the names of the ones it ran.
func Migrate(ctx context.Context, db *gorm.DB) ([]string, error) {
	p, err := provider(db)
	if err != nil {
		return nil, err
	}
	results, err := p.Up(ctx)
	ran := make([]string, 0, len(results))
	for _, r := range results {
		if r.Error == nil {
			ran = append(ran, migrationName(r.Source.Version))
		}
	}
	if err != nil {
		return ran, fmt.Errorf("migrate: %w", err)
	}
	return ran, nil
}

// MigrationStatus lists every known migration with its applied time, if any.
func MigrationStatus(ctx context.Context, db *gorm.DB) ([]MigrationState, error) {
	p, err := provider(db)
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		st := MigrationState{Version: s.Source.Version, Name: migrationName(s.Source.Version)}
		if s.State == goose.StateApplied {
			at := s.AppliedAt
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
