package repo

import (
	"sync"

	"gorm.io/gorm"
)

// GormRepo is the durable store for users and sweets.
type GormRepo struct {
	DB *gorm.DB

	// regMu serializes count-then-insert during registration so that
	// concurrent registrations against an empty table cannot both
	// become admin.
	regMu sync.Mutex
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}
