package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"harmony-go/internal/models"
)

// ErrAlreadyResolved is returned by MarkResolved when the target request has
// already reached a terminal state. A double resolve must surface as an error,
// not repeat silently, so the caller never materializes a relationship twice.
var ErrAlreadyResolved = errors.New("request already resolved")

// RequestRepository defines the interface for request data operations.
type RequestRepository interface {
	Create(ctx context.Context, request *models.Request) error
	// FindByUID retrieves a request by its external identifier regardless of
	// its deleted flag, so resolved requests can still be reported as such.
	FindByUID(ctx context.Context, uid string) (*models.Request, error)
	// UIDExists reports whether a non-deleted request already uses the uid.
	UIDExists(ctx context.Context, uid string) (bool, error)
	// FindPendingForReceiver lists open requests of one operation kind
	// addressed to the receiver, oldest first.
	FindPendingForReceiver(ctx context.Context, receiverID uint, op models.RequestOperation) ([]models.Request, error)
	// MarkResolved writes the terminal status, the deleted flag and the
	// resolution timestamp in a single conditional update. It returns
	// ErrAlreadyResolved when the request is already terminal, which makes
	// concurrent double resolves race to exactly one winner.
	MarkResolved(ctx context.Context, uid string, status models.RequestStatus) error
}

type gormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GORM-based RequestRepository.
func NewGormRequestRepository(db *gorm.DB) RequestRepository {
	return &gormRequestRepository{db: db}
}

func (r *gormRequestRepository) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *gormRequestRepository) FindByUID(ctx context.Context, uid string) (*models.Request, error) {
	var request models.Request
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *gormRequestRepository) UIDExists(ctx context.Context, uid string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("uid = ? AND deleted = ?", uid, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRequestRepository) FindPendingForReceiver(ctx context.Context, receiverID uint, op models.RequestOperation) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND operation = ? AND status = ? AND deleted = ?",
			receiverID, op, models.RequestStatusPending, false).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

// MarkResolved flips the request to a terminal state. Status, deleted and
// time_resolved change together in one statement; the deleted = false guard
// means an already-terminal row matches nothing and the loser of a concurrent
// resolve sees ErrAlreadyResolved.
func (r *gormRequestRepository) MarkResolved(ctx context.Context, uid string, status models.RequestStatus) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("uid = ? AND deleted = ?", uid, false).
		Updates(map[string]interface{}{
			"status":        status,
			"deleted":       true,
			"time_resolved": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}
