package models

// UserLink represents an undirected friend relationship between two users.
// It is created only as a side effect of accepting a friend request, with
// UserID1 the request sender and UserID2 the receiver.
type UserLink struct {
	BaseModel
	UserID1 uint `gorm:"not null;index:idx_userslinks_pair" json:"userId1"`
	UserID2 uint `gorm:"not null;index:idx_userslinks_pair" json:"userId2"`
	Blocked bool `gorm:"not null;default:false" json:"blocked"`
	Deleted bool `gorm:"not null;default:false" json:"-"`
}

// TableName specifies the table name for the UserLink model.
func (UserLink) TableName() string {
	return "userslinks"
}

// Involves reports whether the link connects the given user, in either
// direction.
func (l *UserLink) Involves(userID uint) bool {
	return l.UserID1 == userID || l.UserID2 == userID
}

// OtherUser returns the counterpart of the given user in the link. If the
// user is not part of the link, it returns 0.
func (l *UserLink) OtherUser(userID uint) uint {
	switch userID {
	case l.UserID1:
		return l.UserID2
	case l.UserID2:
		return l.UserID1
	default:
		return 0
	}
}
