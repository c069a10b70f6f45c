// Package autowire 提供标记驱动的依赖注入运行时：
// 结构体标签声明注入点，注册表负责解析与生命周期编排
package autowire

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gocrud/autowire/config"
	"github.com/gocrud/autowire/hosting"
	"github.com/gocrud/autowire/injection"
	"github.com/gocrud/autowire/logging"
	"github.com/gocrud/autowire/runtime"
)

// BuildContext 配置器可见的装配上下文
type BuildContext struct {
	logger logging.Logger
	cfg    config.Configuration
	defs   []*runtime.Definition
}

// Logger 返回装配期日志器
func (ctx *BuildContext) Logger() logging.Logger { return ctx.logger }

// Configuration 返回应用配置（未配置时为 nil）
func (ctx *BuildContext) Configuration() config.Configuration { return ctx.cfg }

// Add 注册组件定义
func (ctx *BuildContext) Add(def *runtime.Definition) {
	ctx.defs = append(ctx.defs, def)
}

// Configurator 装配期配置器：集成包（redis、database 等）以此
// 把外设组件注册进注册表
type Configurator func(*BuildContext) error

// Builder 应用构建器，装配日志、配置、标记与组件定义
type Builder struct {
	logger        logging.Logger
	cfg           config.Configuration
	markers       []injection.Marker
	processors    []injection.DestructionProcessor
	defs          []*runtime.Definition
	configurators []Configurator
	err           error
}

// NewBuilder 创建应用构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// UseLogger 指定日志器
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// UseConfiguration 指定配置；配置键即表达式取值源，
// `autowire.markers` 节（可选）声明额外标记
func (b *Builder) UseConfiguration(cfg config.Configuration) *Builder {
	b.cfg = cfg
	return b
}

// AddMarker 注册额外的注入标记
func (b *Builder) AddMarker(m injection.Marker) *Builder {
	b.markers = append(b.markers, m)
	return b
}

// AddDestructionProcessor 追加销毁前处理器
func (b *Builder) AddDestructionProcessor(p injection.DestructionProcessor) *Builder {
	b.processors = append(b.processors, p)
	return b
}

// Add 注册组件定义
func (b *Builder) Add(def *runtime.Definition) *Builder {
	b.defs = append(b.defs, def)
	return b
}

// Configure 追加配置器，Build 时在日志与配置就绪后执行
func (b *Builder) Configure(c Configurator) *Builder {
	b.configurators = append(b.configurators, c)
	return b
}

// markerConfig `autowire.markers` 配置节的条目形状
type markerConfig struct {
	Name       string `json:"name"`
	Tag        string `json:"tag"`
	Optional   bool   `json:"optional"`
	Expression bool   `json:"expression"`
}

// Build 装配应用
func (b *Builder) Build() (*App, error) {
	if b.err != nil {
		return nil, b.err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.NewLogger()
	}

	markers := injection.NewMarkerRegistry()
	for _, m := range b.markers {
		if err := markers.Add(m); err != nil {
			return nil, err
		}
	}
	if b.cfg != nil {
		var declared []markerConfig
		if _, ok := b.cfg.Value("autowire.markers"); ok {
			if err := b.cfg.Bind("autowire.markers", &declared); err != nil {
				return nil, err
			}
			for _, mc := range declared {
				m := injection.Marker{
					Name:              mc.Name,
					Tag:               mc.Tag,
					RequiredByDefault: !mc.Optional,
					Expression:        mc.Expression,
				}
				if m.Tag == "" {
					m.Tag = m.Name
				}
				if err := markers.Add(m); err != nil {
					return nil, err
				}
			}
		}
	}

	opts := []runtime.RegistryOption{
		runtime.WithRegistryLogger(logger),
		runtime.WithRegistryMarkers(markers),
	}
	if b.cfg != nil {
		opts = append(opts, runtime.WithValueSource(b.cfg))
	}
	if len(b.processors) > 0 {
		opts = append(opts, runtime.WithDestructionProcessors(b.processors...))
	}

	ctx := &BuildContext{logger: logger, cfg: b.cfg, defs: b.defs}
	for _, c := range b.configurators {
		if err := c(ctx); err != nil {
			return nil, err
		}
	}

	registry := runtime.NewRegistry(opts...)
	for _, def := range ctx.defs {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}

	return &App{registry: registry, cfg: b.cfg, logger: logger}, nil
}

// App 装配完成的应用
type App struct {
	registry *runtime.Registry
	cfg      config.Configuration
	logger   logging.Logger
}

// Registry 返回组件注册表
func (a *App) Registry() *runtime.Registry { return a.registry }

// Configuration 返回应用配置（未配置时为 nil）
func (a *App) Configuration() config.Configuration { return a.cfg }

// Logger 返回应用日志器
func (a *App) Logger() logging.Logger { return a.logger }

// Close 按依赖反序销毁全部实例
func (a *App) Close() {
	a.registry.Close()
}

// Run 解析并启动指名的后台服务，阻塞至上下文取消或收到退出信号，
// 随后销毁全部实例。服务的停止逻辑由各自的销毁方法承担
func (a *App) Run(ctx context.Context, services ...string) error {
	runner := hosting.NewRunner(a.logger)
	for _, name := range services {
		v, err := a.registry.GetInstance(name, TypeOf[hosting.Service]())
		if err != nil {
			return err
		}
		runner.Add(name, v.(hosting.Service))
	}
	if err := runner.StartAll(); err != nil {
		a.Close()
		return err
	}
	runner.Wait(ctx)
	a.Close()
	return nil
}

// TypeOf 返回 T 的反射类型（*T 组件写作 TypeOf[*T]()）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register 以名称注册 T 类型的组件定义
func Register[T any](b *Builder, name string, opts ...runtime.DefinitionOption) *Builder {
	return b.Add(runtime.NewDefinition(name, TypeOf[T](), opts...))
}

// Resolve 按名解析并断言为 T
func Resolve[T any](a *App, name string) (T, error) {
	var zero T
	v, err := a.registry.GetInstance(name, TypeOf[T]())
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("autowire: instance '%s' is %T, not %s", name, v, TypeOf[T]())
	}
	return t, nil
}

// ResolveType 按类型解析唯一候选
func ResolveType[T any](a *App) (T, error) {
	var zero T
	v, err := a.registry.Resolve(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
