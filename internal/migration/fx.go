package migration

import (
	"github.com/smallbiznis/creditledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run brings the schema up to date for the configured dialect.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")

	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("schema migrations applied")
		return nil
	}

	if !cfg.DBAutoMigrate {
		log.Warn("skipping schema setup; auto migrate disabled", zap.String("dialect", conn.Dialector.Name()))
		return nil
	}
	if err := AutoMigrate(conn); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("dialect", conn.Dialector.Name()))
	return nil
}
