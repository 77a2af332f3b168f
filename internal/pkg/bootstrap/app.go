// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meridian/internal/pkg/config"
	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/nacos"
	"meridian/internal/pkg/tracing"
)

// Component 是一个随服务生命周期启停的后台组件（Kafka 消费者、定时器等）。
type Component interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
}

// AppCtx 传递给每个服务的组装函数，是每个服务的"组装根"上下文。
type AppCtx struct {
	Mux    *http.ServeMux
	Config config.Config
	Nacos  *nacos.Client

	components []Component
}

// AddComponent 登记一个随服务启停的后台组件（Kafka 消费者、定时器等）。
func (c *AppCtx) AddComponent(component Component) {
	c.components = append(c.components, component)
}

// AppInfo 包含启动一个微服务所需的全部特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 是服务的组装函数：注册自己的 HTTP 路由，
	// 并通过 AddComponent 登记后台组件。
	RegisterHandlers func(appCtx *AppCtx)
}

// Run 封装所有微服务共同的启动与优雅关停逻辑：
// 配置 -> 日志 -> 追踪 -> Nacos 注册 -> HTTP -> 后台组件 -> 等待信号 -> 逆序清理。
func Run(info AppInfo) {
	logger.Init(info.ServiceName)

	cfg, err := config.Load(os.Getenv("MERIDIAN_CONFIG"))
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	nacosClient, err := nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	ip, err := outboundIP()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to resolve outbound IP")
	}
	if err := nacosClient.Register(info.ServiceName, ip, info.Port); err != nil {
		logger.L().Fatal().Err(err).Msg("failed to register service with nacos")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	appCtx := &AppCtx{Mux: mux, Config: cfg, Nacos: nacosClient}
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(appCtx)
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.L().Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	runCtx, cancelComponents := context.WithCancel(context.Background())
	for _, c := range appCtx.components {
		c.Start(runCtx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 逆序清理：先摘流量，再停组件，最后停 HTTP 和 Tracer
	if err := nacosClient.Deregister(info.ServiceName, ip, info.Port); err != nil {
		logger.L().Error().Err(err).Msg("error deregistering from nacos")
	}

	cancelComponents()
	for i := len(appCtx.components) - 1; i >= 0; i-- {
		appCtx.components[i].Stop(ctx)
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("error shutting down http server")
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("error shutting down tracer provider")
	}

	logger.L().Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// outboundIP 返回本机对外通信使用的 IP，用于服务注册。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
