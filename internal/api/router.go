package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/blahbox/config"
	"github.com/d60-Lab/blahbox/internal/api/handler"
	"github.com/d60-Lab/blahbox/internal/api/middleware"
)

// NewRouter assembles the gin engine with the standard middleware chain.
func NewRouter(h *handler.Handler, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestLogger(),
		gzip.Gzip(gzip.DefaultCompression),
		otelgin.Middleware("blahbox"),
		middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
	)

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	groups := v1.Group("/groups/:group_id")
	{
		groups.POST("/blahs", h.CreateBlah)
		groups.GET("/inbox", h.NextInbox)
		groups.GET("/recents", h.Recents)
		groups.GET("/inbox/:number/cached", h.CachedInbox)
	}
	return r
}
