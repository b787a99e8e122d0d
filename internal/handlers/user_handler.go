package handlers

import (
	"net/http"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/middleware"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/models"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"github.com/gin-gonic/gin"
)

type UserResponse struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         models.Role `json:"role"`
	ParentUserID *string     `json:"parentUserId,omitempty"`
	TenantID     string      `json:"tenantId,omitempty"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		ParentUserID: u.ParentUserID,
	}
}

// CreateCollaboratorRequest represents the payload for inviting a collaborator.
type CreateCollaboratorRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// GetUsers handles GET /api/users
// Returns the tenant's owner and its collaborators.
func (h *Handler) GetUsers(c *gin.Context) {
	tenantID := c.GetString(middleware.TenantIDKey)

	var users []models.User
	err := h.db.
		Where("id = ? OR (role = ? AND parent_user_id = ?)", tenantID, models.RoleCollaborator, tenantID).
		Order("created_at asc").
		Find(&users).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	// Map to safe response payload
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}

// CreateCollaborator handles POST /api/collaborators
// Only tenant owners may add collaborators; the new user joins the owner's tenant.
func (h *Handler) CreateCollaborator(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	tenantID := c.GetString(middleware.TenantIDKey)
	if userID != tenantID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only owners can add collaborators"})
		return
	}

	var req CreateCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parent := tenantID
	user, err := h.createUser(req.Email, req.Name, req.Password, models.RoleCollaborator, &parent)
	if err != nil {
		h.writeCreateUserError(c, err)
		return
	}

	resp := toUserResponse(user)
	h.notify(tenantID, ResourceUsers, protocol.ActionCreated, resp)
	c.JSON(http.StatusCreated, resp)
}
