package middleware

import (
	"time"

	"backflow/internal/consts"
	"backflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志；只读接口，不记录请求体
func Logger(c *gin.Context) {
	t := time.Now()
	reqPath := c.Request.URL.Path
	reqId := c.GetString(consts.RequestId)

	logger.Info("[Request Start]",
		logger.Pair(consts.RequestId, reqId),
		logger.Pair("host", c.ClientIP()),
		logger.Pair("path", reqPath),
		logger.Pair("query", c.Request.URL.RawQuery),
		logger.Pair("method", c.Request.Method))

	c.Next()

	logger.Info("[Request End]",
		logger.Pair(consts.RequestId, reqId),
		logger.Pair("path", reqPath),
		logger.Pair("status", c.Writer.Status()),
		logger.Pair("cost", time.Since(t)))
}
