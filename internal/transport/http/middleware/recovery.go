package middleware

import (
	"github.com/gin-gonic/gin"

	resp "gear-market/internal/transport/http/response"
)

// RecoveryResponse 是 ginzap.CustomRecoveryWithZap 的回调：日志已由 ginzap 打印，这里只负责统一响应
func RecoveryResponse(c *gin.Context, _ any) {
	resp.Abort(c, resp.CodeServerError, "internal error")
}
