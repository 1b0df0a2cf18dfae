// Package http 提供库存服务的 REST 接口。
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/inventory/application"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// InventoryHandler HTTP 处理器
type InventoryHandler struct {
	service *application.InventoryService
}

// NewInventoryHandler 创建 HTTP 处理器实例
func NewInventoryHandler(service *application.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *InventoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/products", h.CreateProduct)
	r.GET("/products/:sku", h.GetProduct)
	r.GET("/shortfalls", h.ListShortfalls)
}

// CreateProductRequest 新建商品请求
type CreateProductRequest struct {
	SKU       string `json:"sku" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"gte=0"`
	CostBasis string `json:"cost_basis"`
}

// CreateProduct 新建商品
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	costBasis := decimal.Zero
	if req.CostBasis != "" {
		var err error
		costBasis, err = decimal.NewFromString(req.CostBasis)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cost_basis"})
			return
		}
	}

	product, err := h.service.CreateProduct(c.Request.Context(), application.CreateProductCommand{
		SKU:       req.SKU,
		Name:      req.Name,
		Quantity:  req.Quantity,
		CostBasis: costBasis,
	})
	if err != nil {
		if errors.Is(err, application.ErrProductExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "failed to create product", "sku", req.SKU, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         product.ID,
		"sku":        product.SKU,
		"name":       product.Name,
		"quantity":   product.Quantity,
		"cost_basis": product.CostBasis.String(),
	})
}

// GetProduct 按 SKU 查询商品
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	sku := c.Param("sku")

	product, err := h.service.GetProduct(c.Request.Context(), sku)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get product", "sku", sku, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         product.ID,
		"sku":        product.SKU,
		"name":       product.Name,
		"quantity":   product.Quantity,
		"cost_basis": product.CostBasis.String(),
	})
}

// ListShortfalls 列出缺货记录
func (h *InventoryHandler) ListShortfalls(c *gin.Context) {
	shortfalls, err := h.service.ListShortfalls(c.Request.Context(), 100)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list shortfalls", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(shortfalls))
	for _, s := range shortfalls {
		items = append(items, gin.H{
			"order_id":  s.OrderID,
			"sku":       s.SKU,
			"requested": s.Requested,
			"available": s.Available,
		})
	}
	c.JSON(http.StatusOK, gin.H{"shortfalls": items})
}
