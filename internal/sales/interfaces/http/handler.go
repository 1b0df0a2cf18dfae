// Package http 提供销售服务的 REST 接口。
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/sales/application"
	"github.com/wyfcoding/goerp/internal/sales/domain"
	"github.com/wyfcoding/goerp/pkg/logger"
)

// SalesHandler HTTP 处理器
type SalesHandler struct {
	service *application.SalesService
}

// NewSalesHandler 创建 HTTP 处理器实例
func NewSalesHandler(service *application.SalesService) *SalesHandler {
	return &SalesHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *SalesHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
}

// CreateOrderRequest 新建订单请求
type CreateOrderRequest struct {
	CustomerID int `json:"customer_id" binding:"required"`
	Items      []struct {
		ProductSKU string `json:"product_sku" binding:"required"`
		Quantity   int    `json:"quantity" binding:"required,gt=0"`
		UnitPrice  string `json:"unit_price" binding:"required"`
	} `json:"items" binding:"required,min=1"`
}

// CreateOrder 创建销售订单。本地提交即返回成功，
// 库存扣减与成本入账经总线异步完成。
func (h *SalesHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := application.CreateOrderCommand{CustomerID: req.CustomerID}
	for _, item := range req.Items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit_price for sku " + item.ProductSKU})
			return
		}
		cmd.Items = append(cmd.Items, application.CreateOrderItem{
			ProductSKU: item.ProductSKU,
			Quantity:   item.Quantity,
			UnitPrice:  price,
		})
	}

	order, err := h.service.CreateOrder(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyOrder) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error(c.Request.Context(), "failed to create order", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount.String(),
		"status":       order.Status,
	})
}

// GetOrder 按 ID 查询订单
func (h *SalesHandler) GetOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get order", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	items := make([]gin.H, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, gin.H{
			"product_sku": item.ProductSKU,
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           order.ID,
		"customer_id":  order.CustomerID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount.String(),
		"status":       order.Status,
		"order_date":   order.OrderDate,
		"items":        items,
	})
}
