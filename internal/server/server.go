package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	alertdomain "github.com/pulseboard/pulseboard/internal/alert/domain"
	authdomain "github.com/pulseboard/pulseboard/internal/auth/domain"
	"github.com/pulseboard/pulseboard/internal/auth/session"
	"github.com/pulseboard/pulseboard/internal/cache"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/config"
	connectdomain "github.com/pulseboard/pulseboard/internal/connect/domain"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/observability"
	obslogger "github.com/pulseboard/pulseboard/internal/observability/logger"
	obsmetrics "github.com/pulseboard/pulseboard/internal/observability/metrics"
	obstracing "github.com/pulseboard/pulseboard/internal/observability/tracing"
	organizationdomain "github.com/pulseboard/pulseboard/internal/organization/domain"
	syncdomain "github.com/pulseboard/pulseboard/internal/sync/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
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
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	clock           clock.Clock
	genID           *snowflake.Node
	sessions        *session.Manager
	authSvc         authdomain.Service
	organizationSvc organizationdomain.Service
	integrationSvc  integrationdomain.Service
	connectSvc      connectdomain.Service
	alertSvc        alertdomain.Service
	syncSvc         syncdomain.Service
	dataPoints      datapointdomain.Repository
	dedup           cache.Dedup
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	GenID           *snowflake.Node
	Sessions        *session.Manager
	AuthSvc         authdomain.Service
	OrganizationSvc organizationdomain.Service
	IntegrationSvc  integrationdomain.Service
	ConnectSvc      connectdomain.Service
	AlertSvc        alertdomain.Service
	SyncSvc         syncdomain.Service
	DataPoints      datapointdomain.Repository
	Dedup           cache.Dedup
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		clock:           p.Clock,
		genID:           p.GenID,
		sessions:        p.Sessions,
		authSvc:         p.AuthSvc,
		organizationSvc: p.OrganizationSvc,
		integrationSvc:  p.IntegrationSvc,
		connectSvc:      p.ConnectSvc,
		alertSvc:        p.AlertSvc,
		syncSvc:         p.SyncSvc,
		dataPoints:      p.DataPoints,
		dedup:           p.Dedup,
		obsMetrics:      p.ObsMetrics,
	}

	s.registerAuthRoutes()
	s.registerConnectRoutes()
	s.registerAPIRoutes()
	s.registerWebhookRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.Me)
}

func (s *Server) registerConnectRoutes() {
	connect := s.engine.Group("/connect")

	connect.GET("/:platform/authorize", s.WebAuthRequired(), s.ConnectAuthorize)
	// The provider redirects the merchant's browser here; the state
	// parameter is the only session binding.
	connect.GET("/:platform/callback", s.ConnectCallback)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.WebAuthRequired())

	api.GET("/organizations", s.ListOrganizations)
	api.POST("/organizations", s.CreateOrganization)

	org := api.Group("", s.OrgContext())
	{
		org.GET("/integrations", s.ListIntegrations)
		org.POST("/integrations/:platform/connect", s.ConnectWithKey)
		org.POST("/integrations/:platform/disconnect", s.DisconnectIntegration)
		org.POST("/integrations/:platform/sync", s.SyncIntegration)

		org.GET("/alerts", s.ListAlerts)
		org.POST("/alerts", s.ApplyAlertAction)
		org.POST("/alerts/:id/actions", s.ApplyAlertAction)

		org.GET("/metrics/summary", s.MetricsSummary)
	}
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")

	webhooks.POST("/shopify/orders-create", s.ShopifyOrdersCreateWebhook)
}
