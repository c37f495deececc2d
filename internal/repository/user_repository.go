package repository

import (
	"github.com/pulsegrid/notify-backend/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	return &user, err
}

// FindAdmins returns every admin-role user, used to resolve recipients for
// admin-wide alerts.
func (r *UserRepository) FindAdmins() ([]models.User, error) {
	var users []models.User
	err := r.db.Where("role = ?", models.RoleAdmin).Find(&users).Error
	return users, err
}

// FindAllIDs returns every user id, used to resolve recipients for
// system-wide broadcasts.
func (r *UserRepository) FindAllIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Pluck("id", &ids).Error
	return ids, err
}
