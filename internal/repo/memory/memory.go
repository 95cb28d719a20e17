// Package memory is an in-process implementation of the repositories used by
// service and handler tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"gear-market/internal/domain"
	"gear-market/pkg/utils"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]domain.User
	products map[string]domain.Product
	images   map[string][]domain.ProductImage
	now      func() time.Time
	// FailImageInsert makes the next product create fail after the product row.
	FailImageInsert error
}

func New() *Store {
	return &Store{
		users:    map[string]domain.User{},
		products: map[string]domain.Product{},
		images:   map[string][]domain.ProductImage{},
		now:      time.Now,
	}
}

func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Products() *Products { return &Products{s} }

type Users struct{ s *Store }

var _ domain.UserRepository = (*Users)(nil)

func (r *Users) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.users {
		if x.Username == u.Username {
			return domain.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	if u.Role == "" {
		u.Role = domain.RoleBuyer
	}
	now := r.s.now()
	u.DateJoined, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *Users) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *Users) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Users) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) List(_ context.Context, q string, offset, limit int) ([]domain.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q = strings.ToLower(q)
	var out []domain.User
	for _, u := range r.s.users {
		if q == "" || strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	total := int64(len(out))
	return page(out, offset, limit), total, nil
}

func (r *Users) SetActive(_ context.Context, id string, active bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return false, nil
	}
	u.IsActive = active
	r.s.users[id] = u
	return true, nil
}

func (r *Users) SetStaff(_ context.Context, username string, staff bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, u := range r.s.users {
		if u.Username == username {
			u.IsStaff = staff
			r.s.users[id] = u
			return true, nil
		}
	}
	return false, nil
}

type Products struct{ s *Store }

var _ domain.ProductRepository = (*Products)(nil)

func (r *Products) CreateWithImages(_ context.Context, p *domain.Product, images []domain.ProductImage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailImageInsert; err != nil && len(images) > 0 {
		r.s.FailImageInsert = nil
		return err
	}
	if p.ID == "" {
		p.ID = utils.NewID()
	}
	if p.Status == "" {
		p.Status = domain.StatusAvailable
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range images {
		if images[i].ID == "" {
			images[i].ID = utils.NewID()
		}
		images[i].ProductID = p.ID
		images[i].CreatedAt = now
	}
	row := *p
	row.Images, row.Seller = nil, nil
	r.s.products[p.ID] = row
	r.s.images[p.ID] = append([]domain.ProductImage(nil), images...)
	p.Images = images
	return nil
}

// load must be called with the lock held.
func (r *Products) load(id string) (*domain.Product, bool) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, false
	}
	p.Images = append([]domain.ProductImage(nil), r.s.images[id]...)
	domain.SortImagesByPosition(p.Images)
	if u, ok := r.s.users[p.SellerID]; ok {
		p.Seller = &domain.User{ID: u.ID, Username: u.Username}
	}
	return &p, true
}

func (r *Products) FindByID(_ context.Context, id string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.load(id)
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *Products) List(_ context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(f.Q))
	var out []domain.Product
	for id := range r.s.products {
		p, _ := r.load(id)
		switch {
		case f.SellerID != "" && p.SellerID != f.SellerID,
			f.Status != "" && p.Status != f.Status,
			f.Condition != "" && p.Condition != f.Condition,
			f.Category != "" && p.Category != f.Category:
			continue
		}
		if q != "" {
			seller := ""
			if p.Seller != nil {
				seller = p.Seller.Username
			}
			hay := strings.ToLower(p.Title + "\x00" + p.Description + "\x00" + seller)
			if !strings.Contains(hay, q) {
				continue
			}
		}
		out = append(out, *p)
	}
	domain.SortProducts(out, f.Sort)
	total := int64(len(out))
	return page(out, f.Offset, f.Limit), total, nil
}

func (r *Products) IncrementViews(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return false, nil
	}
	p.Views++
	r.s.products[id] = p
	return true, nil
}

func (r *Products) Update(_ context.Context, id string, patch domain.ProductPatch, img domain.ImageUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	imgs := append([]domain.ProductImage(nil), r.s.images[id]...)

	mainID := img.MainID
	if len(img.NewImages) > 0 {
		next := 0
		for _, im := range imgs {
			if im.Position >= next {
				next = im.Position + 1
			}
		}
		now := r.s.now()
		for i := range img.NewImages {
			im := &img.NewImages[i]
			if im.ID == "" {
				im.ID = utils.NewID()
			}
			im.ProductID, im.Position, im.IsMain, im.CreatedAt = id, next+i, false, now
			imgs = append(imgs, *im)
		}
		if img.MainNew >= 0 && img.MainNew < len(img.NewImages) {
			mainID = img.NewImages[img.MainNew].ID
		}
	}
	if mainID != "" {
		found := false
		for i := range imgs {
			if imgs[i].ID == mainID {
				found = true
			}
		}
		if !found {
			return domain.FieldError("main_image_id", "Image does not belong to this product.")
		}
		for i := range imgs {
			imgs[i].IsMain = imgs[i].ID == mainID
		}
	}

	patch.Apply(&p)
	p.UpdatedAt = r.s.now()
	r.s.products[id] = p
	r.s.images[id] = imgs
	return nil
}

func (r *Products) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return false, nil
	}
	delete(r.s.products, id)
	delete(r.s.images, id)
	return true, nil
}

func page[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
