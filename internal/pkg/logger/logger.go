// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	base zerolog.Logger
	once sync.Once
)

// Init 初始化全局 logger。serviceName 会附加到每一条日志上。
// 重复调用是安全的，只有第一次生效。
func Init(serviceName string) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		base = zerolog.New(os.Stdout).With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	})
}

// L 返回全局 logger。
func L() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了追踪上下文的 logger。
// 如果 ctx 中存在有效的 Span，日志会自动带上 traceId/spanId，
// 便于在 Jaeger 和日志系统之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &base
	}
	l := base.With().
		Str("traceId", sc.TraceID().String()).
		Str("spanId", sc.SpanID().String()).
		Logger()
	return &l
}
