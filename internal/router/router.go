package router

import (
	"backflow/internal/handler/history"
	"backflow/internal/handler/ping"
	"backflow/internal/middleware"

	"github.com/gin-gonic/gin"
)

type ApiRouter struct {
	historyHandler *history.Handler
}

func NewApiRouter(hh *history.Handler) *ApiRouter {
	return &ApiRouter{historyHandler: hh}
}

func (api *ApiRouter) Load(g *gin.Engine) {
	g.Use(middleware.RequestId(), middleware.Logger, gin.Recovery())
	g.GET("/ping", ping.Ping())

	base := g.Group("/api/v1")

	h := base.Group("/history", middleware.NoCache())
	{
		// 历次 v1/v2 对比结论
		h.GET("/comparisons", api.historyHandler.ComparisonsGet())
		// 历次指标
		h.GET("/metrics", api.historyHandler.MetricsGet())
	}
}
