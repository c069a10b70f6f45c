// Package web 将 Gin HTTP 主机接入 autowire 注册表：
// 主机注册为 "web.host"，停止经由销毁方法 Stop(force) 托管
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/logging"
	"github.com/gocrud/autowire/runtime"
)

// Controller 路由挂载接口
type Controller interface {
	MountRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	port   int
	engine *gin.Engine
}

func newBuilder() *Builder {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Builder{
		port:   8080,
		engine: engine,
	}
}

// UsePort 设置端口，0 表示随机可用端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.GET(path, handlers...)
	return b
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.POST(path, handlers...)
	return b
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PUT(path, handlers...)
	return b
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.DELETE(path, handlers...)
	return b
}

// Group 创建路由组
func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// NoRoute 处理 404
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// AddController 挂载控制器路由
func (b *Builder) AddController(ctrl Controller) *Builder {
	ctrl.MountRoutes(b.engine)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Host Web 主机
type Host struct {
	engine *gin.Engine
	server *http.Server
	logger logging.Logger

	listener net.Listener
}

// Engine 获取 Gin 引擎
func (h *Host) Engine() *gin.Engine {
	return h.engine
}

// Addr 实际监听地址，Start 之后有效
func (h *Host) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.server.Addr
}

// Start 启动监听，端口占用等错误同步返回，服务循环在后台运行
func (h *Host) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("web: listen on %s: %w", h.server.Addr, err)
	}
	h.listener = ln

	h.logger.Info("web host started",
		logging.Field{Key: "address", Value: ln.Addr().String()})

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("web host error",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}()
	return nil
}

// Stop 停止主机：force 立即断开连接，否则优雅退场（至多等待 5 秒）
func (h *Host) Stop(force bool) error {
	if h.listener == nil {
		return nil
	}

	if force {
		h.logger.Info("web host stopping (forced)")
		return h.server.Close()
	}

	h.logger.Info("web host stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("web host shutdown failed",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	h.logger.Info("web host stopped")
	return nil
}

// Configure 返回 Web 配置器，主机注册为 "web.host"
// 端口默认取配置键 "web.port"；销毁方法 Stop 带单个 bool 参数，
// 注册表关闭时以强制方式调用
func Configure(options func(*autowire.BuildContext, *Builder)) autowire.Configurator {
	return func(ctx *autowire.BuildContext) error {
		builder := newBuilder()
		if cfg := ctx.Configuration(); cfg != nil {
			if port, err := cfg.GetInt("web.port"); err == nil {
				builder.port = port
			}
		}
		if options != nil {
			options(ctx, builder)
		}

		host := &Host{
			engine: builder.engine,
			logger: ctx.Logger(),
			server: &http.Server{
				Addr:    fmt.Sprintf(":%d", builder.port),
				Handler: builder.engine,
			},
		}
		ctx.Add(runtime.NewDefinition("web.host", autowire.TypeOf[*Host](),
			runtime.WithInstance(host),
			runtime.WithDestroyMethods("Stop")))

		ctx.Logger().Info("web host configured",
			logging.Field{Key: "port", Value: builder.port})
		return nil
	}
}
