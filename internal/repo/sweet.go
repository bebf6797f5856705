package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sweetshop/sweet-shop/internal/models"
)

var ErrInsufficientStock = errors.New("not enough stock")

// SweetFilter is the conjunctive filter set for searching sweets.
// Empty strings and nil bounds impose no constraint.
type SweetFilter struct {
	Name     string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

func (r *GormRepo) CreateSweet(ctx context.Context, sweet *models.Sweet) error {
	return r.DB.WithContext(ctx).Create(sweet).Error
}

func (r *GormRepo) GetSweet(ctx context.Context, id uint) (*models.Sweet, error) {
	var sweet models.Sweet
	if err := r.DB.WithContext(ctx).First(&sweet, id).Error; err != nil {
		return nil, err
	}
	return &sweet, nil
}

func (r *GormRepo) ListSweets(ctx context.Context) ([]models.Sweet, error) {
	var items []models.Sweet
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) SearchSweets(ctx context.Context, f SweetFilter) ([]models.Sweet, error) {
	q := r.DB.WithContext(ctx).Model(&models.Sweet{})

	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) LIKE ?", "%"+strings.ToLower(f.Category)+"%")
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}

	items := []models.Sweet{}
	if err := q.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateSweet replaces all four mutable fields of an existing sweet.
func (r *GormRepo) UpdateSweet(ctx context.Context, id uint, fields models.Sweet) (*models.Sweet, error) {
	var sweet models.Sweet
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sweet, id).Error; err != nil {
			return err
		}

		sweet.Name = fields.Name
		sweet.Category = fields.Category
		sweet.Price = fields.Price
		sweet.Quantity = fields.Quantity

		return tx.Save(&sweet).Error
	})
	if err != nil {
		return nil, err
	}
	return &sweet, nil
}

func (r *GormRepo) DeleteSweet(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Sweet{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurchaseSweet decrements quantity by amount. The stock check and the
// decrement are a single guarded UPDATE, so quantity can never go
// negative under concurrent purchases. The re-read runs in the same
// transaction while the UPDATE still holds the row lock, so the reply
// is this purchase's result, not a later writer's.
func (r *GormRepo) PurchaseSweet(ctx context.Context, id uint, amount int) (*models.Sweet, error) {
	var sweet models.Sweet
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Sweet{}).
			Where("id = ? AND quantity >= ?", id, amount).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", amount))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// Either the sweet is gone or the stock ran out.
			if err := tx.First(&sweet, id).Error; err != nil {
				return err
			}
			return ErrInsufficientStock
		}

		return tx.First(&sweet, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &sweet, nil
}

// RestockSweet increments quantity by amount. No upper bound.
func (r *GormRepo) RestockSweet(ctx context.Context, id uint, amount int) (*models.Sweet, error) {
	var sweet models.Sweet
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Sweet{}).
			Where("id = ?", id).
			UpdateColumn("quantity", gorm.Expr("quantity + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.First(&sweet, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &sweet, nil
}
