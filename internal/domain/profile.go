package domain

import "time"

// Profile Model
type Profile struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password    string    `gorm:"not null" json:"-"` // bcrypt hash
	DisplayName string    `json:"display_name"`
	Bio         string    `gorm:"type:text" json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Role        string    `gorm:"type:varchar(16);default:user" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin reports whether the profile has the admin role
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Profile roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
