package domain

import (
	"context"
	"sort"
	"strconv"
	"time"
)

type Condition string

const (
	ConditionNew     Condition = "NEW"
	ConditionLikeNew Condition = "LIKE_NEW"
	ConditionGood    Condition = "GOOD"
	ConditionFair    Condition = "FAIR"
	ConditionPoor    Condition = "POOR"
)

var Conditions = []Condition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor}

func (c Condition) Valid() bool { return contains(Conditions, c) }

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	StatusSold      Status = "SOLD"
)

var Statuses = []Status{StatusAvailable, StatusReserved, StatusSold}

func (s Status) Valid() bool { return contains(Statuses, s) }

type Category string

const (
	CategoryGuitar     Category = "GUITAR"
	CategoryBass       Category = "BASS"
	CategoryDrum       Category = "DRUM"
	CategoryKeyboard   Category = "KEYBOARD"
	CategoryWind       Category = "WIND"
	CategoryString     Category = "STRING"
	CategoryPercussion Category = "PERCUSSION"
	CategoryAmplifier  Category = "AMPLIFIER"
	CategoryEffect     Category = "EFFECT"
	CategoryAccessory  Category = "ACCESSORY"
	CategoryEtc        Category = "ETC"
)

var Categories = []Category{
	CategoryGuitar, CategoryBass, CategoryDrum, CategoryKeyboard, CategoryWind, CategoryString,
	CategoryPercussion, CategoryAmplifier, CategoryEffect, CategoryAccessory, CategoryEtc,
}

func (c Category) Valid() bool { return contains(Categories, c) }

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string         `gorm:"primaryKey;size:32"`
	SellerID    string         `gorm:"size:32;index;not null"`
	Seller      *User          `gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE"`
	Title       string         `gorm:"size:200;not null"`
	Price       int64          `gorm:"not null;check:price >= 0"`
	Description string         `gorm:"type:text;not null"`
	Condition   Condition      `gorm:"size:10;not null"`
	Status      Status         `gorm:"size:10;not null;default:AVAILABLE;index"`
	Category    Category       `gorm:"size:10;not null;index"`
	Brand       string         `gorm:"size:100;not null"`
	ModelName   string         `gorm:"size:100;not null"`
	Views       int64          `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"index"`
	UpdatedAt   time.Time
	Images      []ProductImage `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

func (Product) TableName() string { return "products" }

// ProductImage.Position is the zero-based upload ordinal inside its product.
// It is assigned once on insert and never rewritten.
type ProductImage struct {
	ID        string    `gorm:"primaryKey;size:32"`
	ProductID string    `gorm:"size:32;not null;uniqueIndex:idx_product_image_position,priority:1"`
	Image     string    `gorm:"size:255;not null"`
	IsMain    bool      `gorm:"not null"`
	Position  int       `gorm:"not null;uniqueIndex:idx_product_image_position,priority:2"`
	CreatedAt time.Time
}

func (ProductImage) TableName() string { return "product_images" }

// SortImagesForDisplay orders images main first, then newest first.
func SortImagesForDisplay(imgs []ProductImage) {
	sort.SliceStable(imgs, func(i, j int) bool {
		a, b := imgs[i], imgs[j]
		if a.IsMain != b.IsMain {
			return a.IsMain
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Position > b.Position
	})
}

// SortImagesByPosition orders images by their upload ordinal.
func SortImagesByPosition(imgs []ProductImage) {
	sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].Position < imgs[j].Position })
}

// ProductPatch lists every listing field a seller may change. Nil means
// "leave as is". Seller, views and timestamps are deliberately absent.
type ProductPatch struct {
	Title       *string
	Price       *int64
	Description *string
	Condition   *Condition
	Status      *Status
	Category    *Category
	Brand       *string
	ModelName   *string
}

func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Price == nil && p.Description == nil && p.Condition == nil &&
		p.Status == nil && p.Category == nil && p.Brand == nil && p.ModelName == nil
}

func (p ProductPatch) Apply(dst *Product) {
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Condition != nil {
		dst.Condition = *p.Condition
	}
	if p.Status != nil {
		dst.Status = *p.Status
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.Brand != nil {
		dst.Brand = *p.Brand
	}
	if p.ModelName != nil {
		dst.ModelName = *p.ModelName
	}
}

// Columns returns the column/value map for a gorm Updates call.
func (p ProductPatch) Columns() map[string]any {
	m := map[string]any{}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Price != nil {
		m["price"] = *p.Price
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Condition != nil {
		m["condition"] = *p.Condition
	}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.Category != nil {
		m["category"] = *p.Category
	}
	if p.Brand != nil {
		m["brand"] = *p.Brand
	}
	if p.ModelName != nil {
		m["model_name"] = *p.ModelName
	}
	return m
}

// Validate checks value ranges. With full set every field except status must
// be present, which is what a PUT or a create requires.
func (p ProductPatch) Validate(full bool) *ValidationError {
	v := NewValidationError()
	required := func(field string, present bool) {
		if full && !present {
			v.Add(field, "This field is required.")
		}
	}
	required("title", p.Title != nil)
	required("price", p.Price != nil)
	required("description", p.Description != nil)
	required("condition", p.Condition != nil)
	required("category", p.Category != nil)
	required("brand", p.Brand != nil)
	required("model_name", p.ModelName != nil)

	text := func(field string, s *string, limit int) {
		if s == nil {
			return
		}
		if *s == "" {
			v.Add(field, "This field may not be blank.")
		} else if len([]rune(*s)) > limit {
			v.Add(field, "Ensure this field has no more than "+strconv.Itoa(limit)+" characters.")
		}
	}
	text("title", p.Title, 200)
	text("brand", p.Brand, 100)
	text("model_name", p.ModelName, 100)
	if p.Description != nil && *p.Description == "" {
		v.Add("description", "This field may not be blank.")
	}
	if p.Price != nil && *p.Price < 0 {
		v.Add("price", "Ensure this value is greater than or equal to 0.")
	}
	if p.Condition != nil && !p.Condition.Valid() {
		v.Add("condition", `"`+string(*p.Condition)+`" is not a valid choice.`)
	}
	if p.Status != nil && !p.Status.Valid() {
		v.Add("status", `"`+string(*p.Status)+`" is not a valid choice.`)
	}
	if p.Category != nil && !p.Category.Valid() {
		v.Add("category", `"`+string(*p.Category)+`" is not a valid choice.`)
	}
	if v.Empty() {
		return nil
	}
	return v
}

// ProductFilter drives both the public listing and the admin search. Zero
// values mean "no constraint"; Limit 0 returns everything.
type ProductFilter struct {
	SellerID  string
	Status    Status
	Condition Condition
	Category  Category
	Q         string
	Sort      SortKey
	Offset    int
	Limit     int
}

// ImageUpdate describes the image side of a product update. NewImages are
// appended after the current highest position. At most one of MainNew
// (index into NewImages) and MainID is honoured, MainNew first.
type ImageUpdate struct {
	NewImages []ProductImage
	MainNew   int
	MainID    string
}

func NoImageUpdate() ImageUpdate { return ImageUpdate{MainNew: -1} }

func (u ImageUpdate) Empty() bool {
	return len(u.NewImages) == 0 && u.MainNew < 0 && u.MainID == ""
}

type ProductRepository interface {
	CreateWithImages(ctx context.Context, p *Product, images []ProductImage) error
	FindByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	IncrementViews(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, id string, patch ProductPatch, img ImageUpdate) error
	Delete(ctx context.Context, id string) (bool, error)
}

type ImageView struct {
	ID        string    `json:"id"`
	Image     string    `json:"image"`
	URL       string    `json:"url"`
	IsMain    bool      `json:"is_main"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductView struct {
	ID          string      `json:"id"`
	Seller      string      `json:"seller"`
	SellerID    string      `json:"seller_id"`
	Title       string      `json:"title"`
	Price       int64       `json:"price"`
	Description string      `json:"description"`
	Condition   Condition   `json:"condition"`
	Status      Status      `json:"status"`
	Category    Category    `json:"category"`
	Brand       string      `json:"brand"`
	ModelName   string      `json:"model_name"`
	Views       int64       `json:"views"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Images      []ImageView `json:"images"`
}

func NewProductView(p *Product, url func(string) string) ProductView {
	v := ProductView{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		Condition:   p.Condition,
		Status:      p.Status,
		Category:    p.Category,
		Brand:       p.Brand,
		ModelName:   p.ModelName,
		Views:       p.Views,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Images:      make([]ImageView, 0, len(p.Images)),
	}
	if p.Seller != nil {
		v.Seller = p.Seller.Username
	}
	imgs := append([]ProductImage(nil), p.Images...)
	SortImagesForDisplay(imgs)
	for _, im := range imgs {
		v.Images = append(v.Images, ImageView{
			ID:        im.ID,
			Image:     im.Image,
			URL:       url(im.Image),
			IsMain:    im.IsMain,
			Position:  im.Position,
			CreatedAt: im.CreatedAt,
		})
	}
	return v
}

func NewProductViews(ps []Product, url func(string) string) []ProductView {
	out := make([]ProductView, 0, len(ps))
	for i := range ps {
		out = append(out, NewProductView(&ps[i], url))
	}
	return out
}
