package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	bagdomain "github.com/smallbiznis/cemtrack/internal/bag/domain"
	"github.com/smallbiznis/cemtrack/internal/config"
	dashboarddomain "github.com/smallbiznis/cemtrack/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/cemtrack/internal/ledger/domain"
	"github.com/smallbiznis/cemtrack/internal/observability"
	obsmiddleware "github.com/smallbiznis/cemtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cemtrack/internal/observability/metrics"
	obstracing "github.com/smallbiznis/cemtrack/internal/observability/tracing"
	"github.com/smallbiznis/cemtrack/internal/providers/pdf"
	usagedomain "github.com/smallbiznis/cemtrack/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const onlineMessage = "Cement API is Online. Use POST requests for actions."

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
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
	r.Use(httpMetrics.GinMiddleware())
	r.Use(CORS())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	store        ledgerdomain.Store
	bagSvc       bagdomain.Service
	usageSvc     usagedomain.Service
	dashboardSvc dashboarddomain.Service
	labels       pdf.Provider
	httpMetrics  *obsmetrics.HTTPMetrics

	actions map[string]actionHandler
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Store        ledgerdomain.Store
	BagSvc       bagdomain.Service
	UsageSvc     usagedomain.Service
	DashboardSvc dashboarddomain.Service
	Labels       pdf.Provider
	HTTPMetrics  *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		store:        p.Store,
		bagSvc:       p.BagSvc,
		usageSvc:     p.UsageSvc,
		dashboardSvc: p.DashboardSvc,
		labels:       p.Labels,
		httpMetrics:  p.HTTPMetrics,
	}
	svc.actions = svc.actionTable()

	svc.registerDispatchRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerDispatchRoutes() {
	s.engine.GET("/", s.Online)
	s.engine.POST("/", s.Exec)
	s.engine.POST("/exec", s.Exec)
	s.engine.GET("/health", s.Health)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/stats", s.GetDashboardStats)
	api.POST("/batches", s.RegisterBatch)
	api.POST("/usage", s.RecordUsage)
	api.GET("/bags/:bag_id/usage", s.ListBagUsage)
	api.POST("/labels", s.GenerateLabels)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Online(c *gin.Context) {
	c.String(http.StatusOK, onlineMessage)
}

func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
