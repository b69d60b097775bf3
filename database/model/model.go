// Package model holds the gorm models of the portal core.
package model

// Module is a functional area of the portal gated by the permission matrix.
type Module struct {
	Id        int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string `json:"name" gorm:"uniqueIndex;size:64;not null"`
	Title     string `json:"title"`
	Position  int    `json:"position" gorm:"not null"`
	AdminOnly bool   `json:"adminOnly" gorm:"not null"`
	Active    bool   `json:"active" gorm:"not null"`
}

// Permission grants a standard user capabilities on one module. Rows are
// never written or consulted for admins.
type Permission struct {
	Id        int  `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId    int  `json:"userId" gorm:"uniqueIndex:idx_permission_user_module;not null"`
	ModuleId  int  `json:"moduleId" gorm:"uniqueIndex:idx_permission_user_module;not null"`
	CanView   bool `json:"canView" gorm:"not null"`
	CanCreate bool `json:"canCreate" gorm:"not null"`
	CanEdit   bool `json:"canEdit" gorm:"not null"`
	CanDelete bool `json:"canDelete" gorm:"not null"`
}

// Setting is a key/value row for values generated at first start, such as
// the token signing secret.
type Setting struct {
	Id    int    `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" form:"key" gorm:"uniqueIndex;not null"`
	Value string `json:"value" form:"value"`
}
