package repository

import (
	"time"

	"github.com/shravanlabs/shravan/app/models"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("api_key_hash = ?", hash).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) TouchAPIKeyUsage(userID uint) error {
	now := time.Now()
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"api_key_last_used_at": now}).Error
}
