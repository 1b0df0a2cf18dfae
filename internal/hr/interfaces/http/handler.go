// Package http 提供人力服务的 REST 接口。
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/goerp/internal/hr/application"
	"github.com/wyfcoding/goerp/internal/hr/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// HRHandler HTTP 处理器
type HRHandler struct {
	service *application.HRService
}

// NewHRHandler 创建 HTTP 处理器实例
func NewHRHandler(service *application.HRService) *HRHandler {
	return &HRHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *HRHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/employees", h.CreateEmployee)
	r.GET("/employees", h.ListEmployees)
	r.GET("/employees/:id", h.GetEmployee)
}

// CreateEmployeeRequest 录入员工请求
type CreateEmployeeRequest struct {
	Email       string `json:"email" binding:"required,email"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Department  string `json:"department" binding:"required"`
	JoiningDate string `json:"joining_date"` // 可选，RFC3339 日期
}

// CreateEmployee 录入员工档案
func (h *HRHandler) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := application.CreateEmployeeCommand{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
	}
	if req.JoiningDate != "" {
		joining, err := time.Parse(time.RFC3339, req.JoiningDate)
		if err != nil {
			joining, err = time.Parse("2006-01-02", req.JoiningDate)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid joining_date"})
			return
		}
		cmd.JoiningDate = joining
	}

	employee, err := h.service.CreateEmployee(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrEmployeeExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "failed to create employee", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           employee.ID,
		"email":        employee.Email,
		"department":   employee.Department,
		"status":       employee.Status,
		"joining_date": employee.JoiningDate,
	})
}

// GetEmployee 按 ID 查询档案
func (h *HRHandler) GetEmployee(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return
	}

	employee, err := h.service.GetEmployee(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get employee", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if employee == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	c.JSON(http.StatusOK, employeeView(employee))
}

// ListEmployees 列出档案
func (h *HRHandler) ListEmployees(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	employees, err := h.service.ListEmployees(c.Request.Context(), limit)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list employees", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(employees))
	for i := range employees {
		views = append(views, employeeView(&employees[i]))
	}
	c.JSON(http.StatusOK, gin.H{"employees": views, "count": len(views)})
}

// employeeView 档案的 JSON 视图
func employeeView(e *domain.Employee) gin.H {
	return gin.H{
		"id":           e.ID,
		"user_id":      e.UserID,
		"email":        e.Email,
		"first_name":   e.FirstName,
		"last_name":    e.LastName,
		"department":   e.Department,
		"status":       e.Status,
		"joining_date": e.JoiningDate,
	}
}
