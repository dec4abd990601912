package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/prooflink/internal/audit"
	auditdomain "github.com/smallbiznis/prooflink/internal/audit/domain"
	"github.com/smallbiznis/prooflink/internal/config"
	"github.com/smallbiznis/prooflink/internal/delivery"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	"github.com/smallbiznis/prooflink/internal/earnings"
	earningsdomain "github.com/smallbiznis/prooflink/internal/earnings/domain"
	"github.com/smallbiznis/prooflink/internal/feedback"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	"github.com/smallbiznis/prooflink/internal/observability"
	obsmiddleware "github.com/smallbiznis/prooflink/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/prooflink/internal/observability/metrics"
	obstracing "github.com/smallbiznis/prooflink/internal/observability/tracing"
	"github.com/smallbiznis/prooflink/internal/parent"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/internal/ratelimit"
	"github.com/smallbiznis/prooflink/internal/reviewevents"
	"github.com/smallbiznis/prooflink/internal/reviewlink"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	parent.Module,
	delivery.Module,
	reviewlink.Module,
	feedback.Module,
	earnings.Module,
	reviewevents.Module,
	ratelimit.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	parentSvc     parentdomain.Service
	deliverySvc   deliverydomain.Service
	linkSvc       reviewlinkdomain.Service
	feedbackSvc   feedbackdomain.Service
	earningsSvc   earningsdomain.Service
	auditSvc      auditdomain.Service
	reviewEvents  *reviewevents.Hub
	publicLimiter *ratelimit.PublicReviewLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	ParentSvc     parentdomain.Service
	DeliverySvc   deliverydomain.Service
	LinkSvc       reviewlinkdomain.Service
	FeedbackSvc   feedbackdomain.Service
	EarningsSvc   earningsdomain.Service
	AuditSvc      auditdomain.Service
	ReviewEvents  *reviewevents.Hub
	PublicLimiter *ratelimit.PublicReviewLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics            `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		parentSvc:     p.ParentSvc,
		deliverySvc:   p.DeliverySvc,
		linkSvc:       p.LinkSvc,
		feedbackSvc:   p.FeedbackSvc,
		earningsSvc:   p.EarningsSvc,
		auditSvc:      p.AuditSvc,
		reviewEvents:  p.ReviewEvents,
		publicLimiter: p.PublicLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OwnerRequired())

	// -------- Parents --------
	api.POST("/parents", s.CreateParent)
	api.GET("/parents", s.ListParents)
	api.GET("/parents/:id", s.GetParentByID)
	api.GET("/parents/:id/status", s.GetParentStatus)
	api.POST("/parents/:id/cancel", s.CancelParent)
	api.GET("/parents/:id/feedback", s.ListParentFeedback)
	api.GET("/parents/:id/events", s.StreamReviewEvents)

	// -------- Deliveries --------
	api.POST("/parents/:id/deliveries", s.SubmitDelivery)
	api.GET("/deliveries/:id", s.GetDeliveryByID)
	api.GET("/deliveries/:id/batch", s.ListDeliveryBatch)

	// -------- Review links --------
	api.POST("/deliveries/:id/review-links", s.IssueReviewLink)
	api.POST("/review-links/:id/deactivate", s.DeactivateReviewLink)

	// -------- Earnings / audit --------
	api.GET("/earnings", s.GetEarningsSummary)
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/review")
	public.Use(s.PublicReviewRateLimit())

	public.GET("/:token", s.ResolveReviewLink)
	public.POST("/:token/feedback", s.SubmitFeedback)
}
