package response

import "github.com/gin-gonic/gin"

type Resp struct {
	Code   int                 `json:"code"`
	Msg    string              `json:"msg"`
	Data   any                 `json:"data"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New 构造函数（保证 data 不为 null）
func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

// OK 成功响应
func OK(data any) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

func Created(data any) Resp {
	return New(CodeCreated, CodeMsgMap[CodeCreated], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

// Invalid 字段级校验失败
func Invalid(fields map[string][]string) Resp {
	r := Error(CodeBadRequest, "validation failed")
	r.Errors = fields
	return r
}

// JSON 按 code 写出 HTTP 状态
func JSON(c *gin.Context, r Resp) { c.JSON(r.Code, r) }

// Abort 中间件用：终止后续处理并写出错误
func Abort(c *gin.Context, code int, msg string) {
	r := Error(code, msg)
	c.AbortWithStatusJSON(r.Code, r)
}
