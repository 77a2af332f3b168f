// internal/service/inventory/domain/errors.go
package domain

import "github.com/pkg/errors"

// 台账错误都是本地同步错误：在一次变更事务内抛出并导致该事务回滚，
// 不会跨越消息边界传播。
var (
	ErrNotFound                 = errors.New("inventory record not found")
	ErrAlreadyExists            = errors.New("inventory record already exists")
	ErrInsufficientAvailability = errors.New("not enough quantity available")
	ErrOverRelease              = errors.New("cannot release more than reserved")
	ErrOverReduce               = errors.New("cannot reduce more than available")
	// ErrVersionConflict 表示一次不持行锁的写入发现版本号已变化。
	ErrVersionConflict = errors.New("inventory record modified concurrently")
)
