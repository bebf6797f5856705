package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sweetshop/sweet-shop/internal/models"
)

var ErrUserAlreadyExist = errors.New("user already exist")

// CreateUser persists a new user. The first user ever inserted becomes
// admin; everyone after that is a regular user. The decision and the
// insert happen under regMu and a transaction, so only one registrant
// can observe an empty table.
func (r *GormRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("email = ?", user.Email).First(&existing).Error
		if err == nil {
			return ErrUserAlreadyExist
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		user.IsAdmin = count == 0

		return tx.Create(user).Error
	})
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
