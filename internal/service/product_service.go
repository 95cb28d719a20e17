package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/storage"
	"gear-market/internal/domain"
	"gear-market/pkg/utils"
)

var productViews = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "product_views_total",
	Help: "Number of product detail retrievals",
})

func init() { prometheus.MustRegister(productViews) }

// Products is what the HTTP layer needs from the product use cases. It is
// satisfied by *ProductService and by the caching decorator.
type Products interface {
	List(ctx context.Context, sort domain.SortKey) ([]domain.ProductView, error)
	ListMine(ctx context.Context, caller auth.Caller, sort domain.SortKey) ([]domain.ProductView, error)
	Retrieve(ctx context.Context, id string) (domain.ProductView, error)
	Create(ctx context.Context, caller auth.Caller, in CreateProductInput) (domain.ProductView, error)
	Update(ctx context.Context, caller auth.Caller, id string, in UpdateProductInput) (domain.ProductView, error)
	Delete(ctx context.Context, caller auth.Caller, id string) error
	// Authorize reports whether caller may apply method to the product.
	Authorize(ctx context.Context, caller auth.Caller, method, id string) error
}

type ProductService struct {
	// MaxImageBytes caps a single uploaded image; zero disables the check.
	MaxImageBytes int64

	products  domain.ProductRepository
	store     storage.Storage
	log       *zap.Logger
	maxImages int
	now       func() time.Time
}

func NewProductService(products domain.ProductRepository, store storage.Storage, maxImages int, log *zap.Logger) *ProductService {
	return &ProductService{products: products, store: store, log: log, maxImages: maxImages, now: time.Now}
}

var _ Products = (*ProductService)(nil)

type CreateProductInput struct {
	Fields    domain.ProductPatch
	Images    []Upload
	MainImage *int
}

type UpdateProductInput struct {
	// Full is set for PUT: every listing field must be present.
	Full        bool
	Method      string
	Fields      domain.ProductPatch
	Images      []Upload
	MainImage   *int
	MainImageID *string
}

func (s *ProductService) views(ps []domain.Product) []domain.ProductView {
	return domain.NewProductViews(ps, s.store.URL)
}

func (s *ProductService) List(ctx context.Context, sort domain.SortKey) ([]domain.ProductView, error) {
	ps, _, err := s.products.List(ctx, domain.ProductFilter{Sort: sort})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return s.views(ps), nil
}

func (s *ProductService) ListMine(ctx context.Context, caller auth.Caller, sort domain.SortKey) ([]domain.ProductView, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrInvalidToken
	}
	ps, _, err := s.products.List(ctx, domain.ProductFilter{SellerID: caller.UserID, Sort: sort})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return s.views(ps), nil
}

// Retrieve counts the view before reading so the returned record includes it.
func (s *ProductService) Retrieve(ctx context.Context, id string) (domain.ProductView, error) {
	ok, err := s.products.IncrementViews(ctx, id)
	if err != nil {
		return domain.ProductView{}, fmt.Errorf("increment views: %w", err)
	}
	if !ok {
		return domain.ProductView{}, domain.ErrNotFound
	}
	productViews.Inc()
	return s.get(ctx, id)
}

func (s *ProductService) get(ctx context.Context, id string) (domain.ProductView, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return domain.ProductView{}, err
	}
	return domain.NewProductView(p, s.store.URL), nil
}

func (s *ProductService) load(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func sanitize(p *domain.ProductPatch) {
	cleanText(p.Title)
	cleanText(p.Description)
	cleanText(p.Brand)
	cleanText(p.ModelName)
}

// checkImages validates count and content of the uploads and returns their
// detected content types.
func (s *ProductService) checkImages(v *domain.ValidationError, ups []Upload, existing int) ([]string, error) {
	if s.maxImages > 0 && existing+len(ups) > s.maxImages {
		v.Add("uploaded_images", fmt.Sprintf("A product can have at most %d images.", s.maxImages))
	}
	types := make([]string, len(ups))
	for i, u := range ups {
		if s.MaxImageBytes > 0 && u.Size > s.MaxImageBytes {
			v.Add("uploaded_images", fmt.Sprintf("%s: The file is larger than %d bytes.", u.Filename, s.MaxImageBytes))
			continue
		}
		ct, err := sniffImage(u)
		if err != nil {
			return nil, err
		}
		if ct == "" {
			v.Add("uploaded_images", fmt.Sprintf("%s: %s", u.Filename, invalidImage))
		}
		types[i] = ct
	}
	return types, nil
}

func (s *ProductService) storeImages(ctx context.Context, ups []Upload, types []string) ([]storedFile, error) {
	now := s.now()
	return saveAll(ctx, s.store, ups, types, func(u Upload) string {
		return storage.ProductImageKey(now, utils.NewID(), u.Filename)
	})
}

func (s *ProductService) discard(ctx context.Context, files []storedFile) {
	for _, err := range removeAll(context.WithoutCancel(ctx), s.store, files) {
		s.log.Warn("remove stored image", zap.Error(err))
	}
}

// Create stores the uploaded files, then writes the product and one image row
// per file in a single transaction. Exactly the image at MainImage (default 0)
// is flagged main.
func (s *ProductService) Create(ctx context.Context, caller auth.Caller, in CreateProductInput) (domain.ProductView, error) {
	if !caller.Authenticated() {
		return domain.ProductView{}, domain.ErrInvalidToken
	}
	sanitize(&in.Fields)
	v := in.Fields.Validate(true)
	if v == nil {
		v = domain.NewValidationError()
	}
	main := 0
	if in.MainImage != nil {
		main = *in.MainImage
		if len(in.Images) > 0 && (main < 0 || main >= len(in.Images)) {
			v.Add("main_image", fmt.Sprintf("Index %d is out of range for %d uploaded images.", main, len(in.Images)))
		}
	}
	types, err := s.checkImages(v, in.Images, 0)
	if err != nil {
		return domain.ProductView{}, err
	}
	if err := v.Err(); err != nil {
		return domain.ProductView{}, err
	}

	p := &domain.Product{ID: utils.NewID(), SellerID: caller.UserID, Status: domain.StatusAvailable}
	in.Fields.Apply(p)

	files, err := s.storeImages(ctx, in.Images, types)
	if err != nil {
		return domain.ProductView{}, err
	}
	images := make([]domain.ProductImage, len(files))
	for i, f := range files {
		images[i] = domain.ProductImage{ID: utils.NewID(), Image: f.key, Position: i, IsMain: i == main}
	}
	if err := s.products.CreateWithImages(ctx, p, images); err != nil {
		s.discard(ctx, files)
		return domain.ProductView{}, fmt.Errorf("create product: %w", err)
	}
	s.log.Info("product created",
		zap.String("product_id", p.ID),
		zap.String("seller_id", p.SellerID),
		zap.Int("images", len(images)))
	return s.get(ctx, p.ID)
}

// Update lets the seller change listing fields, append images and move the
// main flag. With uploads, MainImage indexes the new uploads; without, it
// indexes the existing images in upload order. MainImageID always names an
// existing image.
func (s *ProductService) Update(ctx context.Context, caller auth.Caller, id string, in UpdateProductInput) (domain.ProductView, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return domain.ProductView{}, err
	}
	method := in.Method
	if method == "" {
		method = http.MethodPatch
	}
	if err := domain.CheckOwnership(method, caller, p); err != nil {
		return domain.ProductView{}, err
	}

	sanitize(&in.Fields)
	v := in.Fields.Validate(in.Full)
	if v == nil {
		v = domain.NewValidationError()
	}
	img := domain.NoImageUpdate()
	switch {
	case len(in.Images) > 0:
		if in.MainImage != nil {
			if *in.MainImage < 0 || *in.MainImage >= len(in.Images) {
				v.Add("main_image", fmt.Sprintf("Index %d is out of range for %d uploaded images.", *in.MainImage, len(in.Images)))
			} else {
				img.MainNew = *in.MainImage
			}
		}
	case in.MainImageID != nil:
		img.MainID = *in.MainImageID
	case in.MainImage != nil:
		byPos := append([]domain.ProductImage(nil), p.Images...)
		domain.SortImagesByPosition(byPos)
		if *in.MainImage < 0 || *in.MainImage >= len(byPos) {
			v.Add("main_image", fmt.Sprintf("Index %d is out of range for %d images.", *in.MainImage, len(byPos)))
		} else {
			img.MainID = byPos[*in.MainImage].ID
		}
	}
	types, err := s.checkImages(v, in.Images, len(p.Images))
	if err != nil {
		return domain.ProductView{}, err
	}
	if err := v.Err(); err != nil {
		return domain.ProductView{}, err
	}
	if in.Fields.Empty() && img.Empty() && len(in.Images) == 0 {
		return domain.NewProductView(p, s.store.URL), nil
	}

	files, err := s.storeImages(ctx, in.Images, types)
	if err != nil {
		return domain.ProductView{}, err
	}
	for _, f := range files {
		img.NewImages = append(img.NewImages, domain.ProductImage{ID: utils.NewID(), Image: f.key})
	}
	if err := s.products.Update(ctx, id, in.Fields, img); err != nil {
		s.discard(ctx, files)
		return domain.ProductView{}, fmt.Errorf("update product: %w", err)
	}
	return s.get(ctx, id)
}

func (s *ProductService) Authorize(ctx context.Context, caller auth.Caller, method, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return domain.CheckOwnership(method, caller, p)
}

func (s *ProductService) Delete(ctx context.Context, caller auth.Caller, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := domain.CheckOwnership(http.MethodDelete, caller, p); err != nil {
		return err
	}
	return s.remove(ctx, p)
}

// remove deletes the rows, then the stored files. A file that cannot be
// removed is logged and left behind.
func (s *ProductService) remove(ctx context.Context, p *domain.Product) error {
	ok, err := s.products.Delete(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	files := make([]storedFile, len(p.Images))
	for i, im := range p.Images {
		files[i] = storedFile{key: im.Image}
	}
	s.discard(ctx, files)
	s.log.Info("product deleted", zap.String("product_id", p.ID), zap.Int("images", len(files)))
	return nil
}
