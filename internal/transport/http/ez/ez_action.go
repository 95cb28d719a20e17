package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/domain"
	mdw "gear-market/internal/transport/http/middleware"
	resp "gear-market/internal/transport/http/response"
)

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindForm  Binder = "form"  // 按 Content-Type 选择 JSON 或 multipart/form-data
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// 鉴权级别；调用方身份由 middleware.Authenticate / AuthJWT 放进上下文
type AuthMode int

const (
	AuthNone     AuthMode = iota // 匿名可访问
	AuthRequired                 // 必须登录
	AuthStaff                    // 必须是 staff
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	setupValidator()
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method string   // "GET" | "POST" | "PUT" | "PATCH" | "DELETE"
	Path   string   // 例："/products/:id/"
	Binder Binder   // 绑定方式
	Auth   AuthMode // 鉴权级别
	Status int      // 成功状态码，默认 200；204 时不写 body
	// Precheck 在绑定入参之前执行（如所有权校验），返回错误则直接响应
	Precheck func(c *gin.Context, caller auth.Caller) error
	Handler  func(c *gin.Context, caller auth.Caller, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权
		caller := mdw.CallerFrom(c)
		switch a.Auth {
		case AuthRequired:
			if !caller.Authenticated() {
				resp.JSON(c, resp.Error(resp.CodeUnauthorized, "authentication credentials were not provided"))
				return
			}
		case AuthStaff:
			if !caller.Authenticated() {
				resp.JSON(c, resp.Error(resp.CodeUnauthorized, "authentication credentials were not provided"))
				return
			}
			if !caller.Staff {
				resp.JSON(c, resp.Error(resp.CodeForbidden, "staff only"))
				return
			}
		}

		// 2) 前置检查
		if a.Precheck != nil {
			if err := a.Precheck(c, caller); err != nil {
				resp.JSON(c, e.errorResp(c, err))
				return
			}
		}

		// 3) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		case BindForm:
			bindErr = c.ShouldBind(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			resp.JSON(c, e.errorResp(c, bindError(bindErr)))
			return
		}

		// 4) 执行
		out, err := a.Handler(c, caller, &in)

		// 5) 统一错误映射
		if err != nil {
			r := e.errorResp(c, err)
			resp.JSON(c, r)
			return
		}
		status := a.Status
		switch status {
		case 0, resp.CodeOK:
			resp.JSON(c, resp.OK(out))
		case resp.CodeCreated:
			resp.JSON(c, resp.Created(out))
		case resp.CodeNoContent:
			c.Status(http.StatusNoContent)
		default:
			resp.JSON(c, resp.New(status, resp.CodeMsgMap[status], out))
		}
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// 统一错误对象（配合 resp.Error(int, msg)）
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }

// errorResp 把领域错误映射为响应；未知错误只记录日志，不向客户端泄露
func (e EZ) errorResp(c *gin.Context, err error) resp.Resp {
	var (
		ae *AErr
		ve *domain.ValidationError
		pe *domain.PermissionError
	)
	switch {
	case errors.As(err, &ae) && ae.Code < resp.CodeServerError:
		return resp.Error(ae.Code, ae.Error())
	case errors.As(err, &ve):
		return resp.Invalid(ve.Fields)
	case errors.As(err, &pe):
		return resp.Error(resp.CodeForbidden, pe.Reason)
	case errors.Is(err, domain.ErrPermissionDenied):
		return resp.Error(resp.CodeForbidden, "permission denied")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return resp.Error(resp.CodeUnauthorized, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		return resp.Error(resp.CodeUnauthorized, domain.ErrInvalidToken.Error())
	case errors.Is(err, domain.ErrNotFound):
		return resp.Error(resp.CodeNotFound, "not found")
	}
	e.log.Error("request failed",
		zap.String("rid", c.GetString(mdw.KeyRequestID)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	return resp.Error(resp.CodeServerError, "internal error")
}
