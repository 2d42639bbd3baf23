package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/imgindex/internal/api/handlers"
	"github.com/your-org/imgindex/internal/api/ws"
	"github.com/your-org/imgindex/internal/auth"
)

type RouterConfig struct {
	APIKey   string
	Searcher handlers.Searcher
	Hub      *ws.Hub
	// Checks are run by /readyz.
	Checks []handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks...)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	imageH := handlers.NewImageHandler(cfg.Searcher)
	v1.GET("/images/search", imageH.Search)

	return r
}
