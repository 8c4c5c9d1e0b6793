package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"arrively-api/apperr"
	"arrively-api/config"
	"arrively-api/logger"
)

var rootCmd = &cobra.Command{
	Use:           "arrively",
	Short:         "Arrively ride-hailing API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, hashPasswordCmd, grantRoleCmd)
}

// Execute runs the CLI. With no subcommand the API server starts.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log, _ := logger.New(os.Getenv("APP_ENV"))
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("arrively failed", zap.Error(err), zap.Stringer("kind", apperr.KindOf(err)))
		_ = log.Sync()
		os.Exit(1)
	}
}

// env is what every command that talks to the database needs.
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, apperr.Startup("logger", err)
	}

	gormLog := gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := config.OpenDatabase(ctx, cfg.Database, gormLog)
	if err != nil {
		return nil, apperr.Startup("database", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) close() {
	if err := config.CloseDatabase(e.db); err != nil {
		e.log.Warn("closing database", zap.Error(err))
	}
	_ = e.log.Sync()
}
