package router

import (
	"time"

	"catalogsync/internal/config"
	"catalogsync/internal/handler"
	"catalogsync/internal/middleware"
	"catalogsync/internal/repository"
	"catalogsync/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators built by the serve command. The sync
// service is shared with the scheduler; nil fields disable their feature.
type Deps struct {
	Sync     service.SyncService
	Upstream handler.Pinger
	Mailer   service.Mailer
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	taxRate, _ := cfg.Tax() // validated by config.Load
	authSvc := service.NewAuthService(cfg)
	productSvc := service.NewProductService(productRepo, rdb)
	quoteSvc := service.NewQuoteService(quoteRepo, productRepo, deps.Mailer, service.QuoteConfig{
		TaxRate:       taxRate,
		Currency:      cfg.QuoteCurrency,
		PublicBaseURL: cfg.PublicBaseURL,
		Title:         cfg.QuoteTitle,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	productsH := handler.NewProductsHandler(productSvc)
	quotesH := handler.NewQuotesHandler(quoteSvc)
	syncH := handler.NewSyncHandler(deps.Sync)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	var breaker handler.BreakerReporter
	if deps.Sync != nil {
		breaker = deps.Sync
	}
	r.GET("/health", handler.Health(db, rdb, deps.Upstream, breaker))

	r.POST("/v1/auth/login", middleware.LoginRateLimiter(), authH.Login)

	// Catalog reads are public
	r.GET("/v1/products", productsH.List)
	r.GET("/v1/products/:code", productsH.Get)

	// Quotes are addressed by id; the share token guards customer reads
	quotes := r.Group("/v1/quotes", middleware.RateLimiter(120, time.Minute))
	{
		quotes.POST("", quotesH.Create)
		quotes.GET("/:id", quotesH.Get)
		quotes.PATCH("/:id", quotesH.UpdateHeader)
		quotes.GET("/:id/pdf", quotesH.PDF)
		quotes.POST("/:id/items", quotesH.AddItem)
		quotes.PATCH("/:id/items/:item_id", quotesH.UpdateItem)
		quotes.DELETE("/:id/items/:item_id", quotesH.DeleteItem)
		quotes.POST("/:id/send", quotesH.Send)
	}

	// Operator routes
	op := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(service.OperatorRole))
	{
		op.POST("/sync", syncH.Trigger)
		op.GET("/sync/last", syncH.Last)
		op.GET("/export/products.xlsx", productsH.Export)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
