package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/domain"
	"gear-market/internal/service"
	httpez "gear-market/internal/transport/http/ez"
)

type AccountHandler struct {
	svc *service.AccountService
	log *zap.Logger
}

func NewAccountHandler(svc *service.AccountService, l *zap.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, log: l}
}

func (h *AccountHandler) Priority() int { return 10 }

type registerIn struct {
	Username    string      `json:"username" binding:"required,max=150"`
	Password    string      `json:"password" binding:"required"`
	Password2   string      `json:"password2" binding:"required"`
	Email       string      `json:"email" binding:"required,email"`
	Role        domain.Role `json:"role" binding:"omitempty,role"`
	PhoneNumber string      `json:"phone_number" binding:"omitempty,max=15"`
}

type loginIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshIn struct {
	Refresh string `json:"refresh" binding:"required"`
}

type profileIn struct {
	Email        *string               `json:"email" form:"email" binding:"omitempty,email"`
	Role         *domain.Role          `json:"role" form:"role" binding:"omitempty,role"`
	PhoneNumber  *string               `json:"phone_number" form:"phone_number" binding:"omitempty,max=15"`
	ProfileImage *multipart.FileHeader `json:"-" form:"profile_image"`
}

type profileOut struct {
	Message string          `json:"message"`
	User    domain.UserView `json:"user"`
}

type changePasswordIn struct {
	OldPassword  string `json:"old_password" binding:"required"`
	NewPassword  string `json:"new_password" binding:"required"`
	NewPassword2 string `json:"new_password2" binding:"required"`
}

type changePasswordOut struct {
	Message string    `json:"message"`
	Token   auth.Pair `json:"token"`
}

func (h *AccountHandler) MountAPI(api *gin.RouterGroup) {
	ez := httpez.New(api.Group("/accounts"), h.log)

	httpez.RegisterAction(ez, httpez.Action[registerIn, domain.UserView]{
		Method: http.MethodPost,
		Path:   "/register/",
		Binder: httpez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, _ auth.Caller, in *registerIn) (domain.UserView, error) {
			return h.svc.Register(c.Request.Context(), service.RegisterInput{
				Username:    in.Username,
				Password:    in.Password,
				Password2:   in.Password2,
				Email:       in.Email,
				Role:        in.Role,
				PhoneNumber: in.PhoneNumber,
			})
		},
	})

	httpez.RegisterAction(ez, httpez.Action[loginIn, service.LoginResult]{
		Method: http.MethodPost,
		Path:   "/login/",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, _ auth.Caller, in *loginIn) (service.LoginResult, error) {
			return h.svc.Login(c.Request.Context(), in.Username, in.Password)
		},
	})

	httpez.RegisterAction(ez, httpez.Action[refreshIn, auth.Pair]{
		Method: http.MethodPost,
		Path:   "/token/refresh/",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, _ auth.Caller, in *refreshIn) (auth.Pair, error) {
			return h.svc.Refresh(c.Request.Context(), in.Refresh)
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, domain.UserView]{
		Method: http.MethodGet,
		Path:   "/profile/",
		Binder: httpez.BindNone,
		Auth:   httpez.AuthRequired,
		Handler: func(c *gin.Context, caller auth.Caller, _ *struct{}) (domain.UserView, error) {
			return h.svc.Profile(c.Request.Context(), caller)
		},
	})

	updateProfile := func(c *gin.Context, caller auth.Caller, in *profileIn) (profileOut, error) {
		pi := service.ProfileInput{Patch: domain.ProfilePatch{
			Email:       in.Email,
			Role:        in.Role,
			PhoneNumber: in.PhoneNumber,
		}}
		if in.ProfileImage != nil {
			up := fromHeader(in.ProfileImage)
			pi.Avatar = &up
		}
		u, err := h.svc.UpdateProfile(c.Request.Context(), caller, pi)
		if err != nil {
			return profileOut{}, err
		}
		return profileOut{Message: "Profile updated successfully.", User: u}, nil
	}
	changePassword := func(c *gin.Context, caller auth.Caller, in *changePasswordIn) (changePasswordOut, error) {
		pair, err := h.svc.ChangePassword(c.Request.Context(), caller, service.ChangePasswordInput{
			OldPassword:  in.OldPassword,
			NewPassword:  in.NewPassword,
			NewPassword2: in.NewPassword2,
		})
		if err != nil {
			return changePasswordOut{}, err
		}
		return changePasswordOut{Message: "Password changed successfully.", Token: pair}, nil
	}

	for _, m := range []string{http.MethodPut, http.MethodPatch} {
		httpez.RegisterAction(ez, httpez.Action[profileIn, profileOut]{
			Method:  m,
			Path:    "/profile/",
			Binder:  httpez.BindForm,
			Auth:    httpez.AuthRequired,
			Handler: updateProfile,
		})
		httpez.RegisterAction(ez, httpez.Action[changePasswordIn, changePasswordOut]{
			Method:  m,
			Path:    "/change-password/",
			Binder:  httpez.BindJSON,
			Auth:    httpez.AuthRequired,
			Handler: changePassword,
		})
	}
}
