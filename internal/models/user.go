package models

// User represents an account in the system. The email is the human-readable
// reference other users supply when sending requests.
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string `gorm:"type:varchar(255);not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	ProfileURL   string `gorm:"type:varchar(765);default:''" json:"profileUrl,omitempty"`
	CallLink     string `gorm:"type:varchar(1020)" json:"callLink,omitempty"`
	Deleted      bool   `gorm:"not null;default:false" json:"-"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// UserBasicInfo holds minimal public information about a user.
// Used when listing friends or showing who sent a request.
type UserBasicInfo struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfileURL string `json:"profileUrl,omitempty"`
}
