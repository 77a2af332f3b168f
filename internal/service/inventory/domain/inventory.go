// internal/service/inventory/domain/inventory.go
package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Record 是单个商品的库存台账行。
//
// 不变量：在任何可观测时刻 0 <= ReservedQuantity <= Quantity。
// Quantity 是总量，ReservedQuantity 是已被订单预占但尚未扣减的部分，
// 可售余量 = Quantity - ReservedQuantity。
type Record struct {
	ID               uint
	ProductID        int64
	Quantity         int
	ReservedQuantity int
	// Version 是乐观版本号，保护所有不持行锁的读-改-写路径。
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord 为一个商品开账。初始无预占。
func NewRecord(productID int64, quantity int) (*Record, error) {
	if quantity < 0 {
		return nil, errors.New("initial quantity must not be negative")
	}
	return &Record{
		ProductID:        productID,
		Quantity:         quantity,
		ReservedQuantity: 0,
		Version:          1,
	}, nil
}

// Available 返回可售余量。
func (r *Record) Available() int {
	return r.Quantity - r.ReservedQuantity
}

// HasAvailableQuantity 判断可售余量是否满足请求。纯谓词，无副作用。
func (r *Record) HasAvailableQuantity(requested int) bool {
	return r.Available() >= requested
}

// Reserve 预占 amount 个。余量不足时返回 ErrInsufficientAvailability，
// 状态不变。
func (r *Record) Reserve(amount int) error {
	if !r.HasAvailableQuantity(amount) {
		return errors.Wrapf(ErrInsufficientAvailability,
			"product %d has %d available but %d requested", r.ProductID, r.Available(), amount)
	}
	r.ReservedQuantity += amount
	return nil
}

// ReleaseReserved 释放 amount 个预占。预占不足时返回 ErrOverRelease。
func (r *Record) ReleaseReserved(amount int) error {
	if r.ReservedQuantity < amount {
		return errors.Wrapf(ErrOverRelease,
			"product %d has %d reserved but %d released", r.ProductID, r.ReservedQuantity, amount)
	}
	r.ReservedQuantity -= amount
	return nil
}

// Reduce 在提交时真正扣减总量。总量不足时返回 ErrOverReduce。
//
// 扣减后 ReservedQuantity 会被截断到不超过新的 Quantity。返回值是被
// 截断丢弃的预占数：正常的 reserve→commit 序列里它恒为 0，非 0 说明
// 存在未对平的预占，调用方必须将其暴露出去（日志 + 指标）而不是吞掉。
func (r *Record) Reduce(amount int) (clamped int, err error) {
	if r.Quantity < amount {
		return 0, errors.Wrapf(ErrOverReduce,
			"product %d has quantity %d but %d to reduce", r.ProductID, r.Quantity, amount)
	}
	r.Quantity -= amount
	if r.ReservedQuantity > r.Quantity {
		clamped = r.ReservedQuantity - r.Quantity
		r.ReservedQuantity = r.Quantity
	}
	return clamped, nil
}

// Add 无条件增加总量（补货）。
func (r *Record) Add(amount int) {
	r.Quantity += amount
}

// SetQuantity 直接设置总量（运营调账），预占超出部分同样截断。
func (r *Record) SetQuantity(quantity int) (clamped int) {
	r.Quantity = quantity
	if r.ReservedQuantity > r.Quantity {
		clamped = r.ReservedQuantity - r.Quantity
		r.ReservedQuantity = r.Quantity
	}
	return clamped
}
