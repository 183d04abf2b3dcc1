package models

import (
	"strconv"
	"time"
)

// BaseModel defines the common fields for all models: an auto-incrementing
// surrogate key plus creation and update timestamps.
//
// Soft deletion is modelled with an explicit Deleted flag on the tables that
// need it rather than gorm's DeletedAt, because soft-deleted rows must stay
// queryable (a resolved request is soft-deleted but still looked up by uid).
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IDString returns the ID as a string.
func (b *BaseModel) IDString() string {
	return strconv.FormatUint(uint64(b.ID), 10)
}
