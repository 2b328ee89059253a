package repository

import (
	"github.com/shravanlabs/shravan/app/models"
	"gorm.io/gorm"
)

// UserRepository provides the user lookups the engine needs: resolving
// provider user references and authenticating streaming clients by API key.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	TouchAPIKeyUsage(userID uint) error
}

// Repositories bundles all repository instances.
type Repositories struct {
	User UserRepository
}

// NewRepositories creates all repositories sharing one DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
	}
}
