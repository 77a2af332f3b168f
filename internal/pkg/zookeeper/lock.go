// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/meridian/locks"

// DistributedLock 是基于临时顺序节点的分布式锁。
// 编号最小的节点持有锁，其余节点只监听自己的前驱，避免惊群。
// 会话断开时临时节点自动删除，锁随之释放。
type DistributedLock struct {
	conn     *Conn
	path     string // 例如 /meridian/locks/saga-timeout-watcher
	lockNode string // 成功获取锁后自己创建的节点
}

// NewDistributedLock 创建一个针对 resourceID 的锁实例。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	if err := conn.EnsurePath("/meridian"); err != nil {
		return nil, err
	}
	if err := conn.EnsurePath(lockRoot); err != nil {
		return nil, err
	}
	path := lockRoot + "/" + resourceID
	if err := conn.EnsurePath(path); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: path}, nil
}

// Lock 阻塞直到获取锁或 ctx 结束。
func (l *DistributedLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential lock node")
	}
	l.lockNode = nodePath

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		sort.Strings(children)

		myName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myName == children[0] {
			return nil // 最小节点，锁到手
		}

		// 找到前驱节点并监听它
		prev := -1
		for i, child := range children {
			if child == myName {
				prev = i - 1
				break
			}
		}
		if prev < 0 {
			return errors.New("own lock node missing from children")
		}
		prevPath := l.path + "/" + children[prev]

		exists, _, eventCh, err := l.conn.ExistsW(prevPath)
		if err != nil {
			return errors.Wrap(err, "watch previous lock node")
		}
		if !exists {
			continue // 前驱刚好消失，重新竞争
		}

		select {
		case ev := <-eventCh:
			if ev.Type == zk.EventNodeDeleted {
				continue
			}
		case <-ctx.Done():
			l.Unlock()
			return ctx.Err()
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return nil
	}
	err := l.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	return nil
}
