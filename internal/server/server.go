package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/box"
	boxdomain "github.com/duniafantasy/fantasybox/internal/box/domain"
	"github.com/duniafantasy/fantasybox/internal/config"
	"github.com/duniafantasy/fantasybox/internal/ledger"
	ledgerdomain "github.com/duniafantasy/fantasybox/internal/ledger/domain"
	"github.com/duniafantasy/fantasybox/internal/member"
	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	"github.com/duniafantasy/fantasybox/internal/observability"
	obsmiddleware "github.com/duniafantasy/fantasybox/internal/observability/logger"
	obsmetrics "github.com/duniafantasy/fantasybox/internal/observability/metrics"
	"github.com/duniafantasy/fantasybox/internal/probability"
	probabilitydomain "github.com/duniafantasy/fantasybox/internal/probability/domain"
	"github.com/duniafantasy/fantasybox/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	member.Module,
	ledger.Module,
	probability.Module,
	box.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(obsCfg, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	memberSvc       memberdomain.Service
	ledgerSvc       ledgerdomain.Service
	boxSvc          boxdomain.Service
	probabilitySvc  probabilitydomain.Service
	purchaseLimiter *ratelimit.PurchaseLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	MemberSvc       memberdomain.Service
	LedgerSvc       ledgerdomain.Service
	BoxSvc          boxdomain.Service
	ProbabilitySvc  probabilitydomain.Service
	PurchaseLimiter *ratelimit.PurchaseLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		memberSvc:       p.MemberSvc,
		ledgerSvc:       p.LedgerSvc,
		boxSvc:          p.BoxSvc,
		probabilitySvc:  p.ProbabilitySvc,
		purchaseLimiter: p.PurchaseLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerPanelRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerAPIRoutes is the member-facing surface: the acting member is
// taken from the gateway header and may only touch their own boxes.
func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.TenantContext())
	api.Use(s.ActorContext(true))

	api.GET("/me", s.GetMe)
	api.GET("/boxes", s.ListInventory)
	api.POST("/boxes/purchase", s.PurchaseRateLimit(), s.PurchaseBox)
	api.POST("/boxes/:id/open", s.OpenBox)
}

// registerPanelRoutes is the staff surface: topups, adjustments,
// probability configuration and the transaction ledger.
func (s *Server) registerPanelRoutes() {
	panel := s.engine.Group("/panel")
	panel.Use(s.TenantContext())
	panel.Use(s.ActorContext(true))
	panel.Use(s.RequireStaff())

	panel.GET("/members", s.ListMembers)
	panel.POST("/members", s.CreateMember)
	panel.GET("/members/:id", s.GetMemberByID)

	panel.POST("/credits/topup", s.Topup)
	panel.POST("/credits/adjust-down", s.AdjustDown)
	panel.GET("/ledger", s.ListLedgerEntries)

	panel.GET("/boxes", s.ListBoxTransactions)
	panel.POST("/boxes/:id/processed", s.SetBoxProcessed)

	panel.GET("/rarities", s.ListRarities)
	panel.GET("/probabilities/tiers/:tier", s.GetTierWeights)
	panel.PUT("/probabilities/tiers/:tier", s.SaveTierWeights)
	panel.PUT("/probabilities/rarities/:rarityId/rewards", s.SaveRewardWeights)

	panel.GET("/rewards", s.ListRewards)
	panel.POST("/rewards", s.CreateReward)
	panel.PATCH("/rewards/:id", s.UpdateReward)
}
