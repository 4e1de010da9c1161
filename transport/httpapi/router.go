package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger *zap.Logger
	// RequestsPerMinute throttles the integration routes per client IP.
	// Zero disables throttling.
	RequestsPerMinute int
}

func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))

	r.GET("/healthz", handler.Health)

	group := r.Group("/integrations/:provider")
	group.Use(NewRateLimiter(cfg.RequestsPerMinute).Handler())
	{
		group.POST("/authorize", handler.Authorize)
		group.GET("/oauth2callback", handler.Callback)
		group.POST("/credentials", handler.Credentials)
		group.POST("/credentials/await", handler.AwaitCredentials)
		group.POST("/load", handler.Load)
	}
	return r
}
