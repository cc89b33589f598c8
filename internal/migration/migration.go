package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	allocationdomain "github.com/smallbiznis/creditledger/internal/allocation/domain"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	quotadomain "github.com/smallbiznis/creditledger/internal/quota/domain"
	"gorm.io/gorm"
)

// Models lists every persisted ledger and quota model.
func Models() []any {
	return []any{
		&creditpooldomain.CreditPool{},
		&creditpooldomain.CreditReservation{},
		&ledgerdomain.CreditTransaction{},
		&allocationdomain.CreditAllocation{},
		&quotadomain.ApiQuotaAllocation{},
		&quotadomain.ApiUsageTracking{},
		&quotadomain.ApiUsageDaily{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and mysql
// development databases, where the postgres SQL does not apply.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
