// internal/pkg/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"meridian/internal/pkg/logger"
)

// Conn 封装 ZooKeeper 连接。
type Conn struct {
	*zk.Conn
}

// Connect 建立到 ZooKeeper 集群的连接。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	if sessionTimeout <= 0 {
		sessionTimeout = 10 * time.Second
	}
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	logger.L().Info().Strs("servers", servers).Msg("✅ Connected to ZooKeeper")
	return &Conn{Conn: conn}, nil
}

// EnsurePath 逐级创建持久节点，已存在时不报错。
func (c *Conn) EnsurePath(path string) error {
	exists, _, err := c.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "check zk path %s", path)
	}
	if exists {
		return nil
	}
	_, err = c.Create(path, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return errors.Wrapf(err, "create zk path %s", path)
	}
	return nil
}
