package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/domain"
	"gear-market/internal/service"
	httpez "gear-market/internal/transport/http/ez"
)

type ProductHandler struct {
	svc service.Products
	log *zap.Logger
}

func NewProductHandler(svc service.Products, l *zap.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, log: l}
}

func (h *ProductHandler) Priority() int { return 20 }

type sortQ struct {
	Sort string `form:"sort"`
}

// productIn 同时服务 JSON 与 multipart；指针字段为 nil 表示未提交
type productIn struct {
	Title          *string                 `json:"title" form:"title" binding:"omitempty,max=200"`
	Price          *int64                  `json:"price" form:"price" binding:"omitempty,gte=0"`
	Description    *string                 `json:"description" form:"description"`
	Condition      *domain.Condition       `json:"condition" form:"condition" binding:"omitempty,condition"`
	Status         *domain.Status          `json:"status" form:"status" binding:"omitempty,status"`
	Category       *domain.Category        `json:"category" form:"category" binding:"omitempty,category"`
	Brand          *string                 `json:"brand" form:"brand" binding:"omitempty,max=100"`
	ModelName      *string                 `json:"model_name" form:"model_name" binding:"omitempty,max=100"`
	MainImage      *int                    `json:"main_image" form:"-"`
	MainImageForm  *string                 `json:"-" form:"main_image"` // multipart 里空串视为未提交
	MainImageID    *string                 `json:"main_image_id" form:"main_image_id"`
	UploadedImages []*multipart.FileHeader `json:"-" form:"uploaded_images"`
}

func (in *productIn) patch() domain.ProductPatch {
	return domain.ProductPatch{
		Title:       in.Title,
		Price:       in.Price,
		Description: in.Description,
		Condition:   in.Condition,
		Status:      in.Status,
		Category:    in.Category,
		Brand:       in.Brand,
		ModelName:   in.ModelName,
	}
}

// mainImage 合并 JSON 数字与 multipart 文本两种来源
func (in *productIn) mainImage() (*int, error) {
	if in.MainImage != nil {
		return in.MainImage, nil
	}
	if in.MainImageForm == nil || strings.TrimSpace(*in.MainImageForm) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*in.MainImageForm))
	if err != nil {
		return nil, domain.FieldError("main_image", "A valid integer is required.")
	}
	return &n, nil
}

func (h *ProductHandler) MountAPI(api *gin.RouterGroup) {
	ez := httpez.New(api.Group("/products"), h.log)

	httpez.RegisterAction(ez, httpez.Action[sortQ, []domain.ProductView]{
		Method: http.MethodGet,
		Path:   "/",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, _ auth.Caller, in *sortQ) ([]domain.ProductView, error) {
			return h.svc.List(c.Request.Context(), domain.ParseSort(in.Sort))
		},
	})

	httpez.RegisterAction(ez, httpez.Action[productIn, domain.ProductView]{
		Method: http.MethodPost,
		Path:   "/",
		Binder: httpez.BindForm,
		Auth:   httpez.AuthRequired,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, caller auth.Caller, in *productIn) (domain.ProductView, error) {
			main, err := in.mainImage()
			if err != nil {
				return domain.ProductView{}, err
			}
			return h.svc.Create(c.Request.Context(), caller, service.CreateProductInput{
				Fields:    in.patch(),
				Images:    fromHeaders(in.UploadedImages),
				MainImage: main,
			})
		},
	})

	httpez.RegisterAction(ez, httpez.Action[sortQ, []domain.ProductView]{
		Method: http.MethodGet,
		Path:   "/my/",
		Binder: httpez.BindQuery,
		Auth:   httpez.AuthRequired,
		Handler: func(c *gin.Context, caller auth.Caller, in *sortQ) ([]domain.ProductView, error) {
			return h.svc.ListMine(c.Request.Context(), caller, domain.ParseSort(in.Sort))
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, domain.ProductView]{
		Method: http.MethodGet,
		Path:   "/:id/",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ auth.Caller, _ *struct{}) (domain.ProductView, error) {
			return h.svc.Retrieve(c.Request.Context(), c.Param("id"))
		},
	})

	// 修改/删除不要求登录：匿名请求交给所有权检查返回 403
	update := func(c *gin.Context, caller auth.Caller, in *productIn) (domain.ProductView, error) {
		main, err := in.mainImage()
		if err != nil {
			return domain.ProductView{}, err
		}
		return h.svc.Update(c.Request.Context(), caller, c.Param("id"), service.UpdateProductInput{
			Full:        c.Request.Method == http.MethodPut,
			Method:      c.Request.Method,
			Fields:      in.patch(),
			Images:      fromHeaders(in.UploadedImages),
			MainImage:   main,
			MainImageID: in.MainImageID,
		})
	}
	owner := func(c *gin.Context, caller auth.Caller) error {
		return h.svc.Authorize(c.Request.Context(), caller, c.Request.Method, c.Param("id"))
	}
	for _, m := range []string{http.MethodPut, http.MethodPatch} {
		httpez.RegisterAction(ez, httpez.Action[productIn, domain.ProductView]{
			Method:   m,
			Path:     "/:id/",
			Binder:   httpez.BindForm,
			Precheck: owner,
			Handler:  update,
		})
	}

	httpez.RegisterAction(ez, httpez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/:id/",
		Binder: httpez.BindNone,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, caller auth.Caller, _ *struct{}) (struct{}, error) {
			return struct{}{}, h.svc.Delete(c.Request.Context(), caller, c.Param("id"))
		},
	})
}
