// Package http 提供薪酬服务的只读 REST 接口。
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/goerp/internal/payroll/application"
	"github.com/wyfcoding/goerp/internal/payroll/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// PayrollHandler HTTP 处理器
type PayrollHandler struct {
	service *application.PayrollService
}

// NewPayrollHandler 创建 HTTP 处理器实例
func NewPayrollHandler(service *application.PayrollService) *PayrollHandler {
	return &PayrollHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *PayrollHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/salaries", h.ListSalaries)
	r.GET("/salaries/:employee_id", h.GetSalary)
}

// GetSalary 按员工 ID 查询工资记录
func (h *PayrollHandler) GetSalary(c *gin.Context) {
	employeeID, err := strconv.Atoi(c.Param("employee_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return
	}

	record, err := h.service.GetSalary(c.Request.Context(), employeeID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get salary record", "employee_id", employeeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "salary record not found"})
		return
	}
	c.JSON(http.StatusOK, salaryView(record))
}

// ListSalaries 列出工资记录
func (h *PayrollHandler) ListSalaries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.service.ListSalaries(c.Request.Context(), limit)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list salary records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(records))
	for i := range records {
		views = append(views, salaryView(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"salaries": views, "count": len(views)})
}

// salaryView 工资记录的 JSON 视图
func salaryView(r *domain.SalaryRecord) gin.H {
	return gin.H{
		"id":             r.ID,
		"employee_id":    r.EmployeeID,
		"email":          r.Email,
		"department":     r.Department,
		"base_salary":    r.BaseSalary.String(),
		"currency":       r.Currency,
		"effective_from": r.EffectiveFrom,
	}
}
