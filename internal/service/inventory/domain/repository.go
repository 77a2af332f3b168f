// internal/service/inventory/domain/repository.go
package domain

import "context"

// Repository 定义台账的持久化接口，由基础设施层实现。
//
// 并发契约：FindByProductIDForUpdate 必须在当前事务内对该商品行加排它锁，
// 锁持有到事务结束；Save 在不持行锁的路径上使用乐观版本号，版本不匹配时
// 返回 ErrVersionConflict。
type Repository interface {
	// Transaction 在一个事务内执行 fn，fn 返回错误时整体回滚。
	// fn 收到的 Repository 绑定在该事务上。
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// Create 新建台账行。productId 已存在时返回 ErrAlreadyExists。
	Create(ctx context.Context, record *Record) error

	// FindByProductID 普通读取，不加锁。
	FindByProductID(ctx context.Context, productID int64) (*Record, error)

	// FindByProductIDs 批量读取，不加锁，advisory check 使用。
	FindByProductIDs(ctx context.Context, productIDs []int64) ([]*Record, error)

	// FindByProductIDForUpdate 加排它行锁读取，只能在 Transaction 内调用。
	FindByProductIDForUpdate(ctx context.Context, productID int64) (*Record, error)

	// FindAll 返回全部台账行。
	FindAll(ctx context.Context) ([]*Record, error)

	// Save 写回一行并递增版本号。未持行锁时以乐观版本号防止覆盖并发写。
	Save(ctx context.Context, record *Record) error
}

// ViewCache 是库存视图的读穿缓存端口。
type ViewCache interface {
	Get(ctx context.Context, productID int64) (*View, bool, error)
	Set(ctx context.Context, view *View) error
	Evict(ctx context.Context, productID int64) error
}

// View 是对外暴露的库存只读视图。
type View struct {
	ProductID         int64  `json:"productId"`
	Quantity          int    `json:"quantity"`
	ReservedQuantity  int    `json:"reservedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
	UpdatedAt         string `json:"updatedAt"`
}
