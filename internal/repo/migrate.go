package repo

import (
	"gorm.io/gorm"

	"gear-market/internal/domain"
)

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{}, &domain.Product{}, &domain.ProductImage{})
}
