// Package http 提供身份服务的 REST 接口。
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/goerp/internal/identity/application"
	"github.com/wyfcoding/goerp/internal/identity/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// IdentityHandler HTTP 处理器
type IdentityHandler struct {
	service *application.IdentityService
}

// NewIdentityHandler 创建 HTTP 处理器实例
func NewIdentityHandler(service *application.IdentityService) *IdentityHandler {
	return &IdentityHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *IdentityHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/users", h.RegisterUser)
	r.GET("/users/:username", h.GetUser)
}

// RegisterUserRequest 注册账号请求
type RegisterUserRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=admin employee"`
}

// RegisterUser 注册账号
func (h *IdentityHandler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), application.RegisterUserCommand{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "failed to register user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	})
}

// GetUser 按用户名查询账号
func (h *IdentityHandler) GetUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	})
}
