package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/middleware"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterRequest represents the sign-up payload. Every sign-up creates an owner.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token   string       `json:"token"`
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// Register handles POST /api/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.createUser(req.Email, req.Name, req.Password, models.RoleOwner, nil)
	if err != nil {
		h.writeCreateUserError(c, err)
		return
	}

	h.issueSession(c, http.StatusCreated, user, "Registration successful")
}

// Login handles POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Email and password are required.",
		})
		return
	}

	var user models.User
	err := h.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	h.issueSession(c, http.StatusOK, user, "Login successful")
}

// Logout handles POST /api/logout by clearing the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.tokens.SessionCookie("", h.cookieSecure))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /api/me
func (h *Handler) Me(c *gin.Context) {
	var user models.User
	if err := h.db.Where("id = ?", c.GetString(middleware.UserIDKey)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		}
		return
	}
	resp := toUserResponse(user)
	resp.TenantID = c.GetString(middleware.TenantIDKey)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) issueSession(c *gin.Context, status int, user models.User, message string) {
	token, err := h.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("generate token", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	http.SetCookie(c.Writer, h.tokens.SessionCookie(token, h.cookieSecure))
	c.JSON(status, LoginResponse{
		Token:   token,
		User:    toUserResponse(user),
		Message: message,
	})
}

var errEmailTaken = errors.New("email already registered")

func (h *Handler) createUser(email, name, password string, role models.Role, parentID *string) (models.User, error) {
	email = normalizeEmail(email)

	var existing int64
	if err := h.db.Model(&models.User{}).Unscoped().Where("email = ?", email).Count(&existing).Error; err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		Password:     string(hash),
		Role:         role,
		ParentUserID: parentID,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (h *Handler) writeCreateUserError(c *gin.Context, err error) {
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}
	h.logger.Error("create user", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
