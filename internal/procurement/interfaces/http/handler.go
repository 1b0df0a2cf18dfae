// Package http 提供采购服务的 REST 接口。
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/procurement/application"
	"github.com/wyfcoding/goerp/internal/procurement/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// ProcurementHandler HTTP 处理器
type ProcurementHandler struct {
	service *application.ProcurementService
}

// NewProcurementHandler 创建 HTTP 处理器实例
func NewProcurementHandler(service *application.ProcurementService) *ProcurementHandler {
	return &ProcurementHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *ProcurementHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/purchase-orders", h.CreatePurchaseOrder)
	r.POST("/purchase-orders/:id/receive", h.ReceivePurchaseOrder)
	r.GET("/purchase-orders/:id", h.GetPurchaseOrder)
}

// CreatePurchaseOrderRequest 新建采购单请求
type CreatePurchaseOrderRequest struct {
	Supplier string `json:"supplier" binding:"required"`
	Lines    []struct {
		ProductSKU string `json:"product_sku" binding:"required"`
		Quantity   int    `json:"quantity" binding:"required,gt=0"`
		UnitPrice  string `json:"unit_price" binding:"required"`
	} `json:"lines" binding:"required,min=1"`
}

// CreatePurchaseOrder 创建采购单
func (h *ProcurementHandler) CreatePurchaseOrder(c *gin.Context) {
	var req CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := application.CreatePurchaseOrderCommand{Supplier: req.Supplier}
	for _, line := range req.Lines {
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit_price for sku " + line.ProductSKU})
			return
		}
		cmd.Lines = append(cmd.Lines, application.CreatePurchaseOrderLine{
			ProductSKU: line.ProductSKU,
			Quantity:   line.Quantity,
			UnitPrice:  price,
		})
	}

	po, err := h.service.CreatePurchaseOrder(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrPOEmptyLines) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "failed to create purchase order", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           po.ID,
		"order_number": po.OrderNumber,
		"status":       po.Status,
		"total_amount": po.TotalAmount().String(),
	})
}

// ReceivePurchaseOrder 整单收货。重复收货返回 409。
func (h *ProcurementHandler) ReceivePurchaseOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase order id"})
		return
	}

	po, err := h.service.ReceivePurchaseOrder(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPONotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyReceived):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.Error(c.Request.Context(), "failed to receive purchase order", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          po.ID,
		"status":      po.Status,
		"received_at": po.ReceivedAt,
	})
}

// GetPurchaseOrder 按 ID 查询采购单
func (h *ProcurementHandler) GetPurchaseOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase order id"})
		return
	}

	po, err := h.service.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get purchase order", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if po == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
		return
	}

	lines := make([]gin.H, 0, len(po.Lines))
	for _, line := range po.Lines {
		lines = append(lines, gin.H{
			"product_sku": line.ProductSKU,
			"quantity":    line.Quantity,
			"unit_price":  line.UnitPrice.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           po.ID,
		"supplier":     po.Supplier,
		"order_number": po.OrderNumber,
		"status":       po.Status,
		"order_date":   po.OrderDate,
		"received_at":  po.ReceivedAt,
		"total_amount": po.TotalAmount().String(),
		"lines":        lines,
	})
}
