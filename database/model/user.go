package model

import "time"

// Role is the account-level role tag. Only admins bypass module permissions.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStandard
}

type User struct {
	Id                 int        `json:"id" gorm:"primaryKey;autoIncrement"`
	Username           string     `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName        string     `json:"displayName"`
	PasswordHash       string     `json:"-" gorm:"column:password_hash;not null"`
	Role               Role       `json:"role" gorm:"size:16;not null"`
	Active             bool       `json:"active" gorm:"not null"`
	TokenVersion       int        `json:"-" gorm:"not null"`
	MustChangePassword bool       `json:"mustChangePassword" gorm:"not null"`
	TotpSecret         string     `json:"-"`
	LastLoginAt        *time.Time `json:"lastLoginAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
