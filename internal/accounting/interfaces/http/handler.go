// Package http 提供会计服务的 REST 接口。
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/accounting/application"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// AccountingHandler HTTP 处理器
type AccountingHandler struct {
	service *application.AccountingService
}

// NewAccountingHandler 创建 HTTP 处理器实例
func NewAccountingHandler(service *application.AccountingService) *AccountingHandler {
	return &AccountingHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *AccountingHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/journal-entries", h.ListJournalEntries)
	r.PUT("/item-costs/:sku", h.SetItemCost)
}

// ListJournalEntries 列出分录
func (h *AccountingHandler) ListJournalEntries(c *gin.Context) {
	entries, err := h.service.ListJournalEntries(c.Request.Context(), 100)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list journal entries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		items = append(items, gin.H{
			"id":             e.ID,
			"source_type":    e.SourceType,
			"source_ref":     e.SourceRef,
			"debit_account":  e.DebitAccount,
			"credit_account": e.CreditAccount,
			"amount":         e.Amount.String(),
			"memo":           e.Memo,
			"flag":           e.Flag,
		})
	}
	c.JSON(http.StatusOK, gin.H{"journal_entries": items})
}

// SetItemCostRequest 设置标准成本请求
type SetItemCostRequest struct {
	UnitCost string `json:"unit_cost" binding:"required"`
}

// SetItemCost 设置物料标准成本
func (h *AccountingHandler) SetItemCost(c *gin.Context) {
	var req SetItemCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit_cost"})
		return
	}

	sku := c.Param("sku")
	if err := h.service.SetItemCost(c.Request.Context(), sku, unitCost); err != nil {
		logger.Error(c.Request.Context(), "failed to set item cost", "sku", sku, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sku": sku, "unit_cost": unitCost.String()})
}
