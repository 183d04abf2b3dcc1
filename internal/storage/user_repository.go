package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"harmony-go/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// FindIDByEmail resolves a non-deleted user's id from their email.
	// It returns 0 and no error when no such user exists.
	FindIDByEmail(ctx context.Context, email string) (uint, error)
	GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error)
	Update(ctx context.Context, user *models.User) error
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a non-deleted user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("deleted = ?", false).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a non-deleted user by their email.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ? AND deleted = ?", email, false).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindIDByEmail resolves a non-deleted user's id from their email. Missing
// users are reported as (0, nil) so callers can surface their own business
// error instead of inspecting gorm sentinels.
func (r *gormUserRepository) FindIDByEmail(ctx context.Context, email string) (uint, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return user.ID, nil
}

// GetBasicInfoByID retrieves minimal public user info by ID.
func (r *gormUserRepository) GetBasicInfoByID(ctx context.Context, id uint) (*models.UserBasicInfo, error) {
	var basicInfo models.UserBasicInfo
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username", "email", "profile_url").
		Where("id = ? AND deleted = ?", id, false).
		First(&basicInfo).Error
	if err != nil {
		return nil, err
	}
	return &basicInfo, nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}
