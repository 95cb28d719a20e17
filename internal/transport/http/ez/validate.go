package ez

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"gear-market/internal/domain"
	resp "gear-market/internal/transport/http/response"
)

var validatorOnce sync.Once

// setupValidator 让 gin 的校验器用 json/form 名称报错，并注册枚举 tag
func setupValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("role", enum(func(s string) bool { return domain.Role(s).Valid() }))
		_ = v.RegisterValidation("condition", enum(func(s string) bool { return domain.Condition(s).Valid() }))
		_ = v.RegisterValidation("status", enum(func(s string) bool { return domain.Status(s).Valid() }))
		_ = v.RegisterValidation("category", enum(func(s string) bool { return domain.Category(s).Valid() }))
	})
}

func enum(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.String {
			return false
		}
		return ok(f.String())
	}
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "role", "condition", "status", "category", "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	}
	return "Invalid value."
}

// bindError 把绑定阶段的错误转成领域校验错误或 AErr，交给 errorResp 统一输出
func bindError(err error) error {
	var (
		ves validator.ValidationErrors
		mbe *http.MaxBytesError
		ute *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &ves):
		v := domain.NewValidationError()
		for _, fe := range ves {
			v.Add(fe.Field(), message(fe))
		}
		return v
	case errors.As(err, &mbe):
		return &AErr{Code: resp.CodeTooLarge, Msg: "request body too large", Err: err}
	case errors.As(err, &ute) && ute.Field != "":
		return domain.FieldError(ute.Field, fmt.Sprintf("Expected a value of type %s.", ute.Type))
	}
	return BadRequest("invalid request body: " + err.Error())
}
