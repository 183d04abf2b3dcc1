package storage

import (
	"context"

	"gorm.io/gorm"
)

// TxRepositories bundles the repositories a unit of work needs, all bound to
// the same transaction handle.
type TxRepositories struct {
	Requests  RequestRepository
	UserLinks UserLinkRepository
	Teams     TeamRepository
}

// TxManager runs a function inside a database transaction, handing it
// repositories scoped to that transaction. The transaction commits when the
// function returns nil and rolls back otherwise.
type TxManager interface {
	RunInTransaction(ctx context.Context, fn func(repos TxRepositories) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a TxManager backed by gorm transactions.
func NewGormTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) RunInTransaction(ctx context.Context, fn func(repos TxRepositories) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(TxRepositories{
			Requests:  NewGormRequestRepository(tx),
			UserLinks: NewGormUserLinkRepository(tx),
			Teams:     NewGormTeamRepository(tx),
		})
	})
}
