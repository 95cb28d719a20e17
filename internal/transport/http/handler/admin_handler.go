package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/domain"
	"gear-market/internal/service"
	httpez "gear-market/internal/transport/http/ez"
)

type AdminHandler struct {
	svc *service.AdminService
	log *zap.Logger
}

func NewAdminHandler(svc *service.AdminService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: l}
}

type pageQ struct {
	Offset int    `form:"offset,default=0" binding:"gte=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"` // 按 username/email 模糊搜
}

func (q *pageQ) clamp() {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
}

type productQ struct {
	pageQ
	Status    domain.Status    `form:"status" binding:"omitempty,status"`
	Condition domain.Condition `form:"condition" binding:"omitempty,condition"`
	Category  domain.Category  `form:"category" binding:"omitempty,category"`
	Sort      string           `form:"sort"`
}

type idOut struct {
	ID     string `json:"id"`
	Active bool   `json:"is_active"`
}

// MountAdmin 挂载管理端接口（分组已走 AuthJWT(staff)，这里再按 AuthStaff 双保险）
func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin, h.log)

	// --- GET /admin/v1/users  用户列表 ---
	httpez.RegisterAction(ez, httpez.Action[pageQ, service.Page[service.AdminUser]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Auth:   httpez.AuthStaff,
		Handler: func(c *gin.Context, _ auth.Caller, in *pageQ) (service.Page[service.AdminUser], error) {
			in.clamp()
			return h.svc.ListUsers(c.Request.Context(), strings.TrimSpace(in.Q), in.Offset, in.Limit)
		},
	})

	// --- POST /admin/v1/users/:id/deactivate | activate ---
	for path, active := range map[string]bool{"/users/:id/deactivate": false, "/users/:id/activate": true} {
		active := active // per-iteration copy (go.mod targets go1.21 loop semantics)
		httpez.RegisterAction(ez, httpez.Action[struct{}, idOut]{
			Method: http.MethodPost,
			Path:   path,
			Binder: httpez.BindNone,
			Auth:   httpez.AuthStaff,
			Handler: func(c *gin.Context, _ auth.Caller, _ *struct{}) (idOut, error) {
				id := c.Param("id")
				if err := h.svc.SetActive(c.Request.Context(), id, active); err != nil {
					return idOut{}, err
				}
				return idOut{ID: id, Active: active}, nil
			},
		})
	}

	// --- GET /admin/v1/products  商品筛选 ---
	httpez.RegisterAction(ez, httpez.Action[productQ, service.Page[domain.ProductView]]{
		Method: http.MethodGet,
		Path:   "/products",
		Binder: httpez.BindQuery,
		Auth:   httpez.AuthStaff,
		Handler: func(c *gin.Context, _ auth.Caller, in *productQ) (service.Page[domain.ProductView], error) {
			in.clamp()
			return h.svc.ListProducts(c.Request.Context(), domain.ProductFilter{
				Status:    in.Status,
				Condition: in.Condition,
				Category:  in.Category,
				Q:         strings.TrimSpace(in.Q),
				Sort:      domain.ParseSort(in.Sort),
				Offset:    in.Offset,
				Limit:     in.Limit,
			})
		},
	})

	// --- DELETE /admin/v1/products/:id  下架（不校验所有权） ---
	httpez.RegisterAction(ez, httpez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/products/:id",
		Binder: httpez.BindNone,
		Auth:   httpez.AuthStaff,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, _ auth.Caller, _ *struct{}) (struct{}, error) {
			return struct{}{}, h.svc.DeleteProduct(c.Request.Context(), c.Param("id"))
		},
	})
}
