package consts

import "time"

const (
	// RequestId 请求id名称
	RequestId = "request_id"
	// RequestIdHeader 透传给客户端的请求id头
	RequestIdHeader = "X-Request-Id"

	// 行情缓存 key 前缀：bars:{symbol}:{from}:{to}
	BarCachePrefix = "bars:"
	// 默认行情缓存过期时间
	BarCacheTTL = time.Hour * 12

	// Kafka 消费组
	RunEventGroup = "backflow-watch"
)
