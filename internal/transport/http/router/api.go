package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/config"
	"gear-market/internal/core/server"
	mdw "gear-market/internal/transport/http/middleware"
)

type Options struct {
	BasePath     string
	JWT          *auth.JWTer
	Limits       config.Limits
	MaxBodyBytes int64
	// MediaDir/MediaURL 仅本地存储时挂载静态文件
	MediaDir string
	MediaURL string
}

func (o Options) middlewares(l *zap.Logger) []gin.HandlerFunc {
	hs := []gin.HandlerFunc{mdw.RequestID(), mdw.AccessLog(l), mdw.Metrics()}
	if o.Limits.RPS > 0 {
		hs = append(hs,
			mdw.RateLimit(rate.Limit(o.Limits.RPS), o.Limits.Burst),
			mdw.RateLimitPerIP(rate.Limit(o.Limits.RPS/10+1), o.Limits.Burst/10+1, 10*time.Minute),
		)
	}
	if o.Limits.Concurrency > 0 {
		hs = append(hs, mdw.ConcurrencyLimit(o.Limits.Concurrency))
	}
	if o.MaxBodyBytes > 0 {
		hs = append(hs, mdw.MaxBodyBytes(o.MaxBodyBytes))
	}
	hs = append(hs, mdw.Timeout(time.Duration(o.Limits.TimeoutSec)*time.Second))
	return hs
}

func mountCommon(r *gin.Engine) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func NewAPIEngine(l *zap.Logger, o Options, reg *Registry) *gin.Engine {
	r := server.NewRouter(l)

	// 中间件
	r.Use(o.middlewares(l)...)

	mountCommon(r)
	if o.MediaDir != "" && o.MediaURL != "" {
		r.Static(o.MediaURL, o.MediaDir)
	}

	// 前缀；token 可选解析，是否必须登录由各 Action 决定
	base := o.BasePath
	if base == "" {
		base = "/api"
	}
	api := r.Group(base)
	api.Use(mdw.Authenticate(o.JWT))

	reg.MountAllAPI(api)
	return r
}
