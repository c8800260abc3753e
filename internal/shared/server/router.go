package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/optimizations"
	"resume-optimizer/internal/services/health"
	"resume-optimizer/internal/sessions"
	"resume-optimizer/internal/shared/config"
	"resume-optimizer/internal/shared/metrics"
	"resume-optimizer/internal/shared/server/middleware"
	"resume-optimizer/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are
// skipped so tests can mount a subset.
type RouterDeps struct {
	Config               config.Config
	DocumentsHandler     *documents.Handler
	SessionsHandler      *sessions.Handler
	OptimizationsHandler *optimizations.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := health.NewService(health.Components{
		Database:    strings.TrimSpace(deps.Config.DatabaseURL) != "",
		ObjectStore: deps.Config.ObjectStoreType,
		Queue:       deps.Config.QueueKind,
		LLMProvider: deps.Config.LLMProvider,
	})
	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, healthSvc.Status())
	})

	api.Use(
		middleware.Identity(),
		middleware.RateLimit(rateLimitConfig(deps.Config)),
	)

	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.SessionsHandler != nil {
		deps.SessionsHandler.RegisterRoutes(api)
	}
	if deps.OptimizationsHandler != nil {
		deps.OptimizationsHandler.RegisterRoutes(api)
	}

	return r
}

// pollingRoutes are read-heavy endpoints clients hit on an interval; they
// get a larger budget than mutating requests.
var pollingRoutes = map[string]bool{
	"/api/v1/optimizations/:id":     true,
	"/api/v1/sessions/:id":          true,
	"/api/v1/sessions/:id/progress": true,
}

func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet && pollingRoutes[c.FullPath()] {
				return "POLLING"
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: float64(perMinute) / 60.0, Burst: perMinute},
			"POLLING": {Rate: float64(perMinute) / 12.0, Burst: perMinute * 5},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
