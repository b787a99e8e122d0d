package models

import (
	"time"

	"gorm.io/gorm"
)

// CostCenter is tenant-scoped; every query must filter on TenantID.
type CostCenter struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	TenantID    string         `json:"tenantId" gorm:"index;not null"`
	Code        string         `json:"code" gorm:"not null"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (CostCenter) TableName() string {
	return "cost_centers"
}
