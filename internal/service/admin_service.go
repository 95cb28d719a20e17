package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gear-market/internal/domain"
)

// AdminService backs the staff API. It bypasses ownership checks.
type AdminService struct {
	users    domain.UserRepository
	products domain.ProductRepository
	catalog  *ProductService
	log      *zap.Logger
	// OnProductRemoved runs after a moderation delete; used to drop cached lists.
	OnProductRemoved func(ctx context.Context)
}

func NewAdminService(users domain.UserRepository, catalog *ProductService, log *zap.Logger) *AdminService {
	return &AdminService{users: users, products: catalog.products, catalog: catalog, log: log}
}

type AdminUser struct {
	domain.UserView
	IsStaff    bool      `json:"is_staff"`
	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func (s *AdminService) ListUsers(ctx context.Context, q string, offset, limit int) (Page[AdminUser], error) {
	us, total, err := s.users.List(ctx, q, offset, limit)
	if err != nil {
		return Page[AdminUser]{}, fmt.Errorf("list users: %w", err)
	}
	out := Page[AdminUser]{Items: make([]AdminUser, 0, len(us)), Total: total}
	for i := range us {
		u := &us[i]
		out.Items = append(out.Items, AdminUser{
			UserView:   domain.NewUserView(u, s.catalog.store.URL),
			IsStaff:    u.IsStaff,
			IsActive:   u.IsActive,
			DateJoined: u.DateJoined,
		})
	}
	return out, nil
}

func (s *AdminService) SetActive(ctx context.Context, id string, active bool) error {
	ok, err := s.users.SetActive(ctx, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("user activation changed", zap.String("user_id", id), zap.Bool("active", active))
	return nil
}

// Promote grants staff rights to username.
func (s *AdminService) Promote(ctx context.Context, username string) error {
	ok, err := s.users.SetStaff(ctx, username, true)
	if err != nil {
		return fmt.Errorf("set staff: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("user promoted to staff", zap.String("username", username))
	return nil
}

func (s *AdminService) ListProducts(ctx context.Context, f domain.ProductFilter) (Page[domain.ProductView], error) {
	ps, total, err := s.products.List(ctx, f)
	if err != nil {
		return Page[domain.ProductView]{}, fmt.Errorf("list products: %w", err)
	}
	return Page[domain.ProductView]{Items: s.catalog.views(ps), Total: total}, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.catalog.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.catalog.remove(ctx, p); err != nil {
		return err
	}
	if s.OnProductRemoved != nil {
		s.OnProductRemoved(ctx)
	}
	return nil
}
