package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LedgerTunables are the ledger knobs that may change without a restart.
type LedgerTunables struct {
	MaxRetries      int           `mapstructure:"maxRetries"`
	RetryBackoff    time.Duration `mapstructure:"retryBackoff"`
	QuotaCacheTTL   time.Duration `mapstructure:"quotaCacheTTL"`
	DefaultPageSize int           `mapstructure:"defaultPageSize"`
	MaxPageSize     int           `mapstructure:"maxPageSize"`
}

func DefaultLedgerTunables(cfg LedgerConfig) LedgerTunables {
	t := LedgerTunables{
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		QuotaCacheTTL:   time.Duration(cfg.QuotaCacheTTLSec) * time.Second,
		DefaultPageSize: 50,
		MaxPageSize:     250,
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = 5
	}
	if t.RetryBackoff <= 0 {
		t.RetryBackoff = 10 * time.Millisecond
	}
	return t
}

type LedgerConfigHolder struct {
	current atomic.Value // holds LedgerTunables
}

// NewStaticLedgerConfigHolder returns a holder that never reloads.
func NewStaticLedgerConfigHolder(t LedgerTunables) *LedgerConfigHolder {
	holder := &LedgerConfigHolder{}
	holder.current.Store(t)
	return holder
}

func NewLedgerConfigHolder(appCfg Config) (*LedgerConfigHolder, error) {
	defaults := DefaultLedgerTunables(appCfg.Ledger)

	v := viper.New()
	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(appCfg.Ledger.ConfigPath); path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/creditledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDITLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ledger.maxRetries", defaults.MaxRetries)
	v.SetDefault("ledger.retryBackoff", defaults.RetryBackoff)
	v.SetDefault("ledger.quotaCacheTTL", defaults.QuotaCacheTTL)
	v.SetDefault("ledger.defaultPageSize", defaults.DefaultPageSize)
	v.SetDefault("ledger.maxPageSize", defaults.MaxPageSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg LedgerTunables
	if err := v.UnmarshalKey("ledger", &cfg); err != nil {
		return nil, err
	}
	if err := validateLedgerTunables(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticLedgerConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LedgerTunables
		if err := v.UnmarshalKey("ledger", &updated); err != nil {
			log.Printf("[ledger-config] reload failed: %v", err)
			return
		}
		if err := validateLedgerTunables(updated); err != nil {
			log.Printf("[ledger-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[ledger-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *LedgerConfigHolder) Get() LedgerTunables {
	return h.current.Load().(LedgerTunables)
}

func validateLedgerTunables(cfg LedgerTunables) error {
	if cfg.MaxRetries <= 0 {
		return errors.New("ledger.maxRetries must be positive")
	}
	if cfg.RetryBackoff < 0 {
		return errors.New("ledger.retryBackoff cannot be negative")
	}
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize < cfg.DefaultPageSize {
		return errors.New("ledger page sizes are inconsistent")
	}
	return nil
}
