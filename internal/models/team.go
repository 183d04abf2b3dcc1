package models

// Team represents a collaboration team. Teams are addressed externally by the
// (uid, name) pair; the numeric id never leaves the backend.
type Team struct {
	BaseModel
	UID      string `gorm:"type:varchar(255);index;not null" json:"uid"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID  uint   `gorm:"not null" json:"ownerId"`
	CallLink string `gorm:"type:varchar(1020)" json:"callLink,omitempty"`
	Deleted  bool   `gorm:"not null;default:false" json:"-"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// TableName specifies the table name for the Team model.
func (Team) TableName() string {
	return "teams"
}

// TeamLink records a user's membership in a team. It is created when the user
// accepts a team invite (or immediately for the owner at team creation).
type TeamLink struct {
	BaseModel
	TeamID  uint `gorm:"not null;index:idx_teamslinks_member" json:"teamId"`
	UserID  uint `gorm:"column:add_user;not null;index:idx_teamslinks_member" json:"userId"`
	Deleted bool `gorm:"not null;default:false" json:"-"`
}

// TableName specifies the table name for the TeamLink model.
func (TeamLink) TableName() string {
	return "teamslinks"
}
