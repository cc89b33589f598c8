package feeder

import (
	"github.com/smallbiznis/creditledger/internal/feeder/domain"
	"github.com/smallbiznis/creditledger/internal/feeder/service"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("feeder.service",
	fx.Provide(provideLocker),
	fx.Provide(service.New),
)

func provideLocker(lock *ratelimit.SubscriberLock) domain.SubscriberLocker {
	return lock
}
