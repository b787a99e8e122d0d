package models

import (
	"time"

	"gorm.io/gorm"
)

// Role decides which tenant a user's data belongs to.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
)

// User represents a user in the system. Owners are tenants; collaborators
// work inside their parent owner's tenant.
type User struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	Email        string         `json:"email" gorm:"uniqueIndex;not null"`
	Name         string         `json:"name"`
	Password     string         `json:"-" gorm:"not null"`
	Role         Role           `json:"role" gorm:"not null"`
	ParentUserID *string        `json:"parentUserId,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// TenantID is the owner id for collaborators and the user's own id otherwise.
// It does not verify that the parent still exists.
func (u User) TenantID() string {
	if u.Role == RoleCollaborator && u.ParentUserID != nil && *u.ParentUserID != "" {
		return *u.ParentUserID
	}
	return u.ID
}
