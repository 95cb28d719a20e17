package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gear-market/internal/core/server"
	mdw "gear-market/internal/transport/http/middleware"
)

func NewAdminEngine(l *zap.Logger, o Options, reg *Registry) *gin.Engine {
	r := server.NewRouter(l)
	r.Use(o.middlewares(l)...)

	mountCommon(r)

	// 管理端 v1（统一要求 staff）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(o.JWT, true))

	reg.MountAllAdmin(admin)
	return r
}
