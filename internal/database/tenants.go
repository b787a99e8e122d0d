package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrOrphanCollaborator means a collaborator's parent is gone or is not an owner.
	ErrOrphanCollaborator = errors.New("collaborator has no valid owner")
)

// TenantDirectory answers which tenant a user's data lives under.
type TenantDirectory struct {
	db *gorm.DB
}

func NewTenantDirectory(db *gorm.DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

// ResolveTenant returns the user's own id for owners and the parent owner's
// id for collaborators.
func (d *TenantDirectory) ResolveTenant(ctx context.Context, userID string) (string, error) {
	user, err := d.user(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Role != models.RoleCollaborator {
		return user.ID, nil
	}

	if user.ParentUserID == nil || *user.ParentUserID == "" {
		return "", fmt.Errorf("%w: %s", ErrOrphanCollaborator, user.ID)
	}
	parent, err := d.user(ctx, *user.ParentUserID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrphanCollaborator, err)
	}
	if parent.Role != models.RoleOwner {
		return "", fmt.Errorf("%w: parent %s is a %s", ErrOrphanCollaborator, parent.ID, parent.Role)
	}
	return parent.ID, nil
}

func (d *TenantDirectory) user(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
