package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goerp/internal/inventory/domain"
)

// ErrProductExists SKU 已存在
var ErrProductExists = errors.New("inventory: product already exists")

// CreateProductCommand 新建商品命令
type CreateProductCommand struct {
	SKU       string
	Name      string
	Quantity  int
	CostBasis decimal.Decimal
}

// CreateProduct 新建商品，SKU 唯一
func (s *InventoryService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	var created *domain.Product

	err := s.tx.InTx(ctx, func(store domain.Store) error {
		existing, err := store.ProductBySKU(ctx, cmd.SKU)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %q", ErrProductExists, cmd.SKU)
		}

		product := &domain.Product{
			SKU:       cmd.SKU,
			Name:      cmd.Name,
			Quantity:  cmd.Quantity,
			CostBasis: cmd.CostBasis,
			CreatedAt: time.Now(),
		}
		if err := store.CreateProduct(ctx, product); err != nil {
			return err
		}
		created = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetProduct 按 SKU 查询商品；不存在时返回 (nil, nil)
func (s *InventoryService) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	return s.reader.FindProductBySKU(ctx, sku)
}

// ListShortfalls 列出缺货记录
func (s *InventoryService) ListShortfalls(ctx context.Context, limit int) ([]*domain.Shortfall, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.reader.ListShortfalls(ctx, limit)
}
