package storage

import (
	"context"

	"gorm.io/gorm"

	"harmony-go/internal/models"
)

// UserLinkRepository defines the interface for friend-link data operations.
type UserLinkRepository interface {
	Create(ctx context.Context, link *models.UserLink) error
	// AreLinked reports whether a non-deleted link exists between the two
	// users, in either direction.
	AreLinked(ctx context.Context, userID1, userID2 uint) (bool, error)
	// FindLinksFor returns all non-deleted links involving the user.
	FindLinksFor(ctx context.Context, userID uint) ([]models.UserLink, error)
}

type gormUserLinkRepository struct {
	db *gorm.DB
}

// NewGormUserLinkRepository creates a new GORM-based UserLinkRepository.
func NewGormUserLinkRepository(db *gorm.DB) UserLinkRepository {
	return &gormUserLinkRepository{db: db}
}

func (r *gormUserLinkRepository) Create(ctx context.Context, link *models.UserLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *gormUserLinkRepository) AreLinked(ctx context.Context, userID1, userID2 uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserLink{}).
		Where("((user_id1 = ? AND user_id2 = ?) OR (user_id1 = ? AND user_id2 = ?)) AND deleted = ?",
			userID1, userID2, userID2, userID1, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormUserLinkRepository) FindLinksFor(ctx context.Context, userID uint) ([]models.UserLink, error) {
	var links []models.UserLink
	err := r.db.WithContext(ctx).
		Where("(user_id1 = ? OR user_id2 = ?) AND deleted = ?", userID, userID, false).
		Find(&links).Error
	return links, err
}
