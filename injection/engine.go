package injection

import (
	"reflect"
	"sync"

	"github.com/gocrud/autowire/logging"
)

// Engine 注入引擎门面，供实例生命周期编排器使用
// 聚合标记注册表、元数据缓存、构造函数选择器、注入器与销毁方法推断缓存
type Engine struct {
	markers  *MarkerRegistry
	builder  *Builder
	cache    *MetadataCache
	selector *ConstructorSelector
	injector *Injector
	resolver *destroyMethodResolver
	logger   logging.Logger

	members       MemberSet
	lookupChecked sync.Map // 实例名 -> struct{}，覆写元数据单次安装标记
}

// EngineOption 引擎选项
type EngineOption func(*engineConfig)

type engineConfig struct {
	markers   *MarkerRegistry
	logger    logging.Logger
	converter TypeConverter
	primary   PrimaryHook
}

// WithMarkers 指定标记注册表
func WithMarkers(markers *MarkerRegistry) EngineOption {
	return func(c *engineConfig) { c.markers = markers }
}

// WithLogger 指定日志器
func WithLogger(logger logging.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = logger }
}

// WithConverter 指定类型转换器
func WithConverter(converter TypeConverter) EngineOption {
	return func(c *engineConfig) { c.converter = converter }
}

// WithPrimaryHook 指定主构造函数判定钩子
func WithPrimaryHook(hook PrimaryHook) EngineOption {
	return func(c *engineConfig) { c.primary = hook }
}

// NewEngine 创建注入引擎。registry 是唯一必需的协作者
func NewEngine(registry Registry, opts ...EngineOption) *Engine {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.markers == nil {
		cfg.markers = NewMarkerRegistry()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewLogger()
	}

	e := &Engine{
		markers:  cfg.markers,
		logger:   cfg.logger,
		resolver: &destroyMethodResolver{},
	}
	e.builder = NewBuilder(cfg.markers, cfg.logger)
	e.cache = NewMetadataCache(e.builder)
	e.selector = NewConstructorSelector(cfg.logger, cfg.primary)
	e.injector = NewInjector(registry, cfg.converter, cfg.logger)
	return e
}

// Markers 返回引擎的标记注册表
func (e *Engine) Markers() *MarkerRegistry { return e.markers }

// BuildMetadata 查找或构建类型的注入元数据（经缓存）
func (e *Engine) BuildMetadata(name string, t reflect.Type) *Metadata {
	return e.cache.Find(name, t)
}

// CheckAgainstDefinition 向引擎级成员集认领元数据各点的成员，
// 防止第二套扫描机制对同一层级重复注入
func (e *Engine) CheckAgainstDefinition(md *Metadata) {
	md.CheckMembers(&e.members)
}

// Inject 填充目标实例
func (e *Engine) Inject(md *Metadata, target any, name string, values ExplicitValues) error {
	return e.injector.Inject(md, target, name, values)
}

// SelectConstructors 对类型执行构造函数选择算法（经备忘）
func (e *Engine) SelectConstructors(t reflect.Type, declared []*Constructor) (*Candidates, error) {
	return e.selector.Select(t, declared)
}

// NewDisposalAdapter 为实例创建销毁适配器，共享引擎级的推断缓存
func (e *Engine) NewDisposalAdapter(instance any, name string, methodNames []string, processors []DestructionProcessor, opts ...DisposalOption) (*DisposalAdapter, error) {
	opts = append([]DisposalOption{
		WithDisposalLogger(e.logger),
		withResolver(e.resolver),
	}, opts...)
	return NewDisposalAdapter(instance, name, methodNames, processors, opts...)
}

// MarkLookupChecked 标记实例名的覆写元数据已安装
// 返回 true 表示本次是首个标记者（checked-then-add，竞争安全）
func (e *Engine) MarkLookupChecked(name string) bool {
	_, loaded := e.lookupChecked.LoadOrStore(name, struct{}{})
	return !loaded
}

// ResetCacheFor 使指定实例名相关的全部缓存失效：
// 注入元数据、构造函数选择结果与覆写安装标记
func (e *Engine) ResetCacheFor(name string, t reflect.Type) {
	e.cache.Invalidate(name, t)
	if t != nil {
		e.selector.Invalidate(t)
	}
	e.lookupChecked.Delete(name)
}
