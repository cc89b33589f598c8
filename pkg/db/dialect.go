package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Dialect(cfg Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)), nil
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.Port,
			cfg.SSLMode,
		)), nil
	case "sqlite":
		return sqlite.Open(sqliteDSN(cfg.Name)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

func sqliteDSN(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "creditledger.db"
	case name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasSuffix(name, ".db") || strings.HasPrefix(name, "file:"):
		return name
	default:
		return name + ".db"
	}
}
