package creditpool

import (
	"github.com/smallbiznis/creditledger/internal/creditpool/repository"
	"github.com/smallbiznis/creditledger/internal/creditpool/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creditpool.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
