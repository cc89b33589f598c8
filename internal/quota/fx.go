package quota

import (
	"time"

	"github.com/smallbiznis/creditledger/internal/cache"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/quota/repository"
	"github.com/smallbiznis/creditledger/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideGrantCache),
	fx.Provide(service.New),
)

func provideGrantCache(tunables *config.LedgerConfigHolder) cache.QuotaGrantCache {
	return cache.NewReloadingQuotaGrantCache(func() time.Duration {
		return tunables.Get().QuotaCacheTTL
	})
}
