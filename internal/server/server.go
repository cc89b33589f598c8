package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	allocationdomain "github.com/smallbiznis/creditledger/internal/allocation/domain"
	"github.com/smallbiznis/creditledger/internal/config"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	feederdomain "github.com/smallbiznis/creditledger/internal/feeder/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/internal/observability"
	obsmiddleware "github.com/smallbiznis/creditledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/creditledger/internal/observability/tracing"
	quotadomain "github.com/smallbiznis/creditledger/internal/quota/domain"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	poolSvc       creditpooldomain.Service
	ledgerSvc     ledgerdomain.Service
	allocationSvc allocationdomain.Service
	feederSvc     feederdomain.Service
	quotaSvc      quotadomain.Service
	apiLimiter    *ratelimit.APILimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	PoolSvc       creditpooldomain.Service
	LedgerSvc     ledgerdomain.Service
	AllocationSvc allocationdomain.Service
	FeederSvc     feederdomain.Service
	QuotaSvc      quotadomain.Service
	APILimiter    *ratelimit.APILimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics   `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		poolSvc:       p.PoolSvc,
		ledgerSvc:     p.LedgerSvc,
		allocationSvc: p.AllocationSvc,
		feederSvc:     p.FeederSvc,
		quotaSvc:      p.QuotaSvc,
		apiLimiter:    p.APILimiter,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/v1", s.APIRateLimit())

	// -------- Credit Pools --------
	api.POST("/pools", s.CreatePool)
	api.GET("/pools", s.GetPool)
	api.GET("/pools/:id", s.GetPoolByID)
	api.POST("/pools/:id/credits", s.AddCredits)
	api.POST("/pools/:id/reservations", s.ReserveCredits)
	api.POST("/pools/:id/reservations/commit", s.CommitReservation)
	api.POST("/pools/:id/reservations/release", s.ReleaseReservation)
	api.GET("/pools/:id/transactions", s.ListTransactions)
	api.GET("/pools/:id/summary", s.GetPoolSummary)
	api.GET("/pools/:id/allocations", s.ListAllocations)

	// -------- Allocations --------
	api.POST("/allocations", s.Allocate)
	api.GET("/allocations/:id", s.GetAllocation)
	api.POST("/allocations/:id/reset", s.ResetAllocation)
	api.POST("/projects/:project_id/usage", s.RecordProjectUsage)

	// -------- Subscriptions --------
	api.POST("/subscriptions/credits", s.AllocateSubscriptionCredits)

	// -------- API Quotas --------
	api.PUT("/quotas/:service_id/:user_id", s.UpsertQuota)
	api.GET("/quotas/:service_id/:user_id", s.CheckQuota)
	api.POST("/quotas/:service_id/:user_id/usage", s.TrackUsage)
	api.POST("/quotas/:service_id/:user_id/consume", s.ConsumeQuota)
	api.POST("/quotas/:service_id/:user_id/reset", s.ResetUsage)
	api.GET("/quotas/:service_id/:user_id/stats", s.GetUsageStats)
}
