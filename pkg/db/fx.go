package db

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(ConfigFromApp),
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	AppConfig config.Config
	Config    Config
	Log       *zap.Logger
}

// New opens the database, applies pool settings and installs the tracing and
// prometheus plugins.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	gormCfg := logger.DefaultGormLoggerConfig()
	gormCfg.Base = p.Log
	if !p.AppConfig.IsProduction() {
		gormCfg.Level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(gormCfg),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", p.Config.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Config.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(p.Config.MaxIdleConn)
	}
	if p.Config.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(p.Config.MaxOpenConn)
	}
	if p.Config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.Config.ConnMaxLifetime) * time.Second)
	}
	if p.Config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.Config.ConnMaxIdleTime) * time.Second)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.Name))); err != nil {
		return nil, fmt.Errorf("install otelgorm: %w", err)
	}
	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          p.Config.Name,
		RefreshInterval: 15,
		StartServer:     false,
		Labels:          map[string]string{"service": p.AppConfig.AppName},
	})); err != nil {
		return nil, fmt.Errorf("install gorm prometheus: %w", err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Log.Info("closing database connections")
			return sqlDB.Close()
		},
	})

	return conn, nil
}
