package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gear-market/internal/domain"
	"gear-market/pkg/utils"
)

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

var _ domain.ProductRepository = (*ProductRepo)(nil)

func sellerColumns(db *gorm.DB) *gorm.DB { return db.Select("id", "username") }

func imagesByPosition(db *gorm.DB) *gorm.DB { return db.Order("position asc") }

// CreateWithImages inserts the product and all its image rows in one
// transaction. Either everything is committed or nothing is.
func (r *ProductRepo) CreateWithImages(ctx context.Context, p *domain.Product, images []domain.ProductImage) error {
	if p.ID == "" {
		p.ID = utils.NewID()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return err
		}
		if len(images) == 0 {
			return nil
		}
		for i := range images {
			if images[i].ID == "" {
				images[i].ID = utils.NewID()
			}
			images[i].ProductID = p.ID
		}
		return tx.Create(&images).Error
	})
	if err != nil {
		return err
	}
	p.Images = images
	return nil
}

func (r *ProductRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).
		Preload("Seller", sellerColumns).
		Preload("Images", imagesByPosition).
		First(&p, "products.id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) filtered(ctx context.Context, f domain.ProductFilter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&domain.Product{})
	if f.SellerID != "" {
		tx = tx.Where("products.seller_id = ?", f.SellerID)
	}
	if f.Status != "" {
		tx = tx.Where("products.status = ?", f.Status)
	}
	if f.Condition != "" {
		tx = tx.Where("products.condition = ?", f.Condition)
	}
	if f.Category != "" {
		tx = tx.Where("products.category = ?", f.Category)
	}
	if q := strings.TrimSpace(f.Q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Joins("LEFT JOIN users ON users.id = products.seller_id").
			Where("LOWER(products.title) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(users.username) LIKE ?",
				like, like, like)
	}
	return tx
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx := r.filtered(ctx, f).
		Select("products.*").
		Preload("Seller", sellerColumns).
		Preload("Images", imagesByPosition).
		Order(f.Sort.OrderBy()).
		Offset(f.Offset)
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	var ps []domain.Product
	if err := tx.Find(&ps).Error; err != nil {
		return nil, 0, err
	}
	return ps, total, nil
}

// IncrementViews bumps the counter in a single statement so concurrent
// readers never lose an update. updated_at is left alone.
func (r *ProductRepo) IncrementViews(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	return res.RowsAffected > 0, res.Error
}

// Update applies the field patch, appends new images after the current
// highest position and moves the main flag, all inside one transaction.
func (r *ProductRepo) Update(ctx context.Context, id string, patch domain.ProductPatch, img domain.ImageUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&p, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		cols := patch.Columns()
		cols["updated_at"] = time.Now()
		if err := tx.Model(&domain.Product{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return err
		}

		mainID := img.MainID
		if len(img.NewImages) > 0 {
			var maxPos sql.NullInt64
			if err := tx.Model(&domain.ProductImage{}).
				Where("product_id = ?", id).
				Select("MAX(position)").
				Scan(&maxPos).Error; err != nil {
				return err
			}
			next := 0
			if maxPos.Valid {
				next = int(maxPos.Int64) + 1
			}
			for i := range img.NewImages {
				im := &img.NewImages[i]
				if im.ID == "" {
					im.ID = utils.NewID()
				}
				im.ProductID = id
				im.Position = next + i
				im.IsMain = false
			}
			if err := tx.Create(&img.NewImages).Error; err != nil {
				return err
			}
			if img.MainNew >= 0 && img.MainNew < len(img.NewImages) {
				mainID = img.NewImages[img.MainNew].ID
			}
		}

		if mainID == "" {
			return nil
		}
		var n int64
		if err := tx.Model(&domain.ProductImage{}).
			Where("id = ? AND product_id = ?", mainID, id).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.FieldError("main_image_id", "Image does not belong to this product.")
		}
		if err := tx.Model(&domain.ProductImage{}).
			Where("product_id = ? AND is_main = ?", id, true).
			Update("is_main", false).Error; err != nil {
			return err
		}
		return tx.Model(&domain.ProductImage{}).Where("id = ?", mainID).Update("is_main", true).Error
	})
}

// Delete removes the product and its image rows. Stored files are the
// caller's concern.
func (r *ProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&domain.ProductImage{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Product{})
		deleted = res.RowsAffected > 0
		return res.Error
	})
	return deleted, err
}
