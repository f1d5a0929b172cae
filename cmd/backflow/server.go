package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backflow/conf"
	"backflow/pkg/logger"
	"backflow/pkg/validator"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Router 加载路由，使用侧提供接口，实现侧需要实现该接口
type Router interface {
	Load(engine *gin.Engine)
}

// Server 历史查询接口的 http 服务
type Server struct {
	config *conf.Config
	hooks  []func()
}

func NewServer(c *conf.Config) *Server {
	return &Server{config: c}
}

// RegisterOnShutdown 注册 shutdown 后的回调，按注册顺序执行，用于释放数据库等资源
func (s *Server) RegisterOnShutdown(f func()) *Server {
	s.hooks = append(s.hooks, f)
	return s
}

// Run 阻塞直到 ctx 取消或监听失败；ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context, rs ...Router) error {
	// 设置gin启动模式，必须在创建gin实例之前
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	g := gin.New()
	for _, r := range rs {
		r.Load(g)
	}
	validator.LazyInitGinValidator(s.config.Language)

	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, f := range s.hooks {
		srv.RegisterOnShutdown(f)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	// health check
	go func() {
		if err := Ping(ctx, s.config.Listen, s.config.MaxPingCount); err != nil {
			logger.Errorf("server self check failed: %v", err)
			return
		}
		logger.Infof("server started, listen %s", s.config.Listen)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Infof("server stopped, listen %s", s.config.Listen)
	return nil
}

// Ping 轮询 /ping 直到服务可用，最多 maxCount 秒
func Ping(ctx context.Context, addr string, maxCount int) error {
	if addr == "" {
		return errors.New("listen address is empty")
	}
	if maxCount <= 0 {
		maxCount = 10
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	host, port, _ := strings.Cut(addr, ":")
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	url := fmt.Sprintf("http://%s:%s/ping", host, port)

	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for i := 1; i <= maxCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		logger.Debugf("等待服务在线, 已等待 %d 秒，最多等待 %d 秒", i, maxCount)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("no response from %s after %d seconds", url, maxCount)
}
