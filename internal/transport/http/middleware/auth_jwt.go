package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"gear-market/internal/core/auth"
	resp "gear-market/internal/transport/http/response"
)

const KeyCaller = "caller"

func bearer(c *gin.Context) (string, bool) {
	ah := c.GetHeader("Authorization")
	if !strings.HasPrefix(ah, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")), true
}

// Authenticate 可选鉴权：没有 token 按匿名处理，带了无效 token 直接 401
func Authenticate(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearer(c)
		if !ok {
			c.Set(KeyCaller, auth.Caller{})
			c.Next()
			return
		}
		claims, err := j.Parse(tok)
		if err != nil {
			resp.Abort(c, resp.CodeUnauthorized, "token is invalid or expired")
			return
		}
		c.Set(KeyCaller, auth.CallerFromClaims(claims))
		c.Next()
	}
}

// AuthJWT 必须登录；requireStaff 为 true 时还要求 staff
func AuthJWT(j *auth.JWTer, requireStaff bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearer(c)
		if !ok {
			resp.Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		claims, err := j.Parse(tok)
		if err != nil {
			resp.Abort(c, resp.CodeUnauthorized, "token is invalid or expired")
			return
		}
		if requireStaff && !claims.Staff {
			resp.Abort(c, resp.CodeForbidden, "staff only")
			return
		}
		c.Set(KeyCaller, auth.CallerFromClaims(claims))
		c.Next()
	}
}

// CallerFrom 取出当前请求的调用方，未鉴权时为匿名
func CallerFrom(c *gin.Context) auth.Caller {
	if v, ok := c.Get(KeyCaller); ok {
		if caller, ok := v.(auth.Caller); ok {
			return caller
		}
	}
	return auth.Caller{}
}
