package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/password"
	"gear-market/internal/core/storage"
	"gear-market/internal/domain"
	"gear-market/pkg/utils"
)

type AccountService struct {
	users  domain.UserRepository
	jwt    *auth.JWTer
	policy password.Policy
	store  storage.Storage
	log    *zap.Logger
}

func NewAccountService(users domain.UserRepository, jwt *auth.JWTer, policy password.Policy, store storage.Storage, log *zap.Logger) *AccountService {
	return &AccountService{users: users, jwt: jwt, policy: policy, store: store, log: log}
}

type RegisterInput struct {
	Username    string
	Password    string
	Password2   string
	Email       string
	Role        domain.Role
	PhoneNumber string
}

type LoginResult struct {
	User  domain.UserView `json:"user"`
	Token auth.Pair       `json:"token"`
}

func (s *AccountService) view(u *domain.User) domain.UserView {
	return domain.NewUserView(u, s.store.URL)
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.UserView, error) {
	v := domain.NewValidationError()
	if in.Password != in.Password2 {
		v.Add("password", "Password fields didn't match.")
	} else {
		for _, msg := range s.policy.Check(in.Password, in.Username) {
			v.Add("password", msg)
		}
	}
	if in.Role == "" {
		in.Role = domain.RoleBuyer
	}
	if !in.Role.Valid() {
		v.Add("role", fmt.Sprintf("%q is not a valid choice.", in.Role))
	}
	if existing, err := s.users.FindByUsername(ctx, in.Username); err != nil {
		return domain.UserView{}, fmt.Errorf("find user: %w", err)
	} else if existing != nil {
		v.Add("username", "A user with that username already exists.")
	}
	if err := v.Err(); err != nil {
		return domain.UserView{}, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
	}
	if in.PhoneNumber != "" {
		u.PhoneNumber = &in.PhoneNumber
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.UserView{}, domain.FieldError("username", "A user with that username already exists.")
		}
		return domain.UserView{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return s.view(u), nil
}

// Login answers every failure with the same error so callers cannot tell an
// unknown username from a wrong password.
func (s *AccountService) Login(ctx context.Context, username, pw string) (LoginResult, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !u.IsActive || !utils.CheckPassword(pw, u.PasswordHash) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	pair, err := s.jwt.IssuePair(u.ID, string(u.Role), u.IsStaff)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return LoginResult{User: s.view(u), Token: pair}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AccountService) Refresh(ctx context.Context, refresh string) (auth.Pair, error) {
	claims, err := s.jwt.ParseRefresh(refresh)
	if err != nil {
		return auth.Pair{}, domain.ErrInvalidToken
	}
	u, err := s.users.FindByID(ctx, claims.UID)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !u.IsActive {
		return auth.Pair{}, domain.ErrInvalidToken
	}
	access, err := s.jwt.Issue(u.ID, string(u.Role), u.IsStaff)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("issue access token: %w", err)
	}
	return auth.Pair{Access: access}, nil
}

func (s *AccountService) current(ctx context.Context, caller auth.Caller) (*domain.User, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrInvalidToken
	}
	u, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, domain.ErrInvalidToken
	}
	return u, nil
}

func (s *AccountService) Profile(ctx context.Context, caller auth.Caller) (domain.UserView, error) {
	u, err := s.current(ctx, caller)
	if err != nil {
		return domain.UserView{}, err
	}
	return s.view(u), nil
}

type ProfileInput struct {
	Patch  domain.ProfilePatch
	Avatar *Upload
}

// UpdateProfile applies the patch and, when a new avatar is sent, stores it
// and removes the previous file once the row is saved.
func (s *AccountService) UpdateProfile(ctx context.Context, caller auth.Caller, in ProfileInput) (domain.UserView, error) {
	u, err := s.current(ctx, caller)
	if err != nil {
		return domain.UserView{}, err
	}

	v := domain.NewValidationError()
	if in.Patch.Email != nil {
		*in.Patch.Email = strings.TrimSpace(*in.Patch.Email)
		taken, err := s.users.EmailTaken(ctx, *in.Patch.Email, u.ID)
		if err != nil {
			return domain.UserView{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			v.Add("email", "This email is already in use.")
		}
	}
	if in.Patch.Role != nil && !in.Patch.Role.Valid() {
		v.Add("role", fmt.Sprintf("%q is not a valid choice.", *in.Patch.Role))
	}
	if in.Patch.PhoneNumber != nil && len(*in.Patch.PhoneNumber) > 15 {
		v.Add("phone_number", "Ensure this field has no more than 15 characters.")
	}
	var avatarType string
	if in.Avatar != nil {
		if avatarType, err = sniffImage(*in.Avatar); err != nil {
			return domain.UserView{}, err
		}
		if avatarType == "" {
			v.Add("profile_image", invalidImage)
		}
	}
	if err := v.Err(); err != nil {
		return domain.UserView{}, err
	}

	var oldAvatar string
	var saved []storedFile
	if in.Avatar != nil {
		if u.ProfileImage != nil {
			oldAvatar = *u.ProfileImage
		}
		saved, err = saveAll(ctx, s.store, []Upload{*in.Avatar}, []string{avatarType}, func(up Upload) string {
			return storage.AvatarKey(utils.NewID(), up.Filename)
		})
		if err != nil {
			return domain.UserView{}, err
		}
		in.Patch.ProfileImage = &saved[0].key
	}

	in.Patch.Apply(u)
	if err := s.users.Update(ctx, u); err != nil {
		removeAll(context.WithoutCancel(ctx), s.store, saved)
		return domain.UserView{}, fmt.Errorf("update user: %w", err)
	}
	if oldAvatar != "" {
		if err := s.store.Delete(ctx, oldAvatar); err != nil {
			s.log.Warn("remove old avatar", zap.String("key", oldAvatar), zap.Error(err))
		}
	}
	return s.view(u), nil
}

type ChangePasswordInput struct {
	OldPassword  string
	NewPassword  string
	NewPassword2 string
}

func (s *AccountService) ChangePassword(ctx context.Context, caller auth.Caller, in ChangePasswordInput) (auth.Pair, error) {
	u, err := s.current(ctx, caller)
	if err != nil {
		return auth.Pair{}, err
	}
	if !utils.CheckPassword(in.OldPassword, u.PasswordHash) {
		return auth.Pair{}, domain.FieldError("old_password", "Old password is not correct.")
	}
	v := domain.NewValidationError()
	if in.NewPassword != in.NewPassword2 {
		v.Add("new_password2", "Password fields didn't match.")
	}
	for _, msg := range s.policy.Check(in.NewPassword, u.Username) {
		v.Add("new_password", msg)
	}
	if err := v.Err(); err != nil {
		return auth.Pair{}, err
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	if err := s.users.Update(ctx, u); err != nil {
		return auth.Pair{}, fmt.Errorf("update user: %w", err)
	}
	s.log.Info("password changed", zap.String("user_id", u.ID))
	pair, err := s.jwt.IssuePair(u.ID, string(u.Role), u.IsStaff)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}
