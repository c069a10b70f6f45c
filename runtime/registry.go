package runtime

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gocrud/autowire/injection"
	"github.com/gocrud/autowire/logging"
)

// ValueSource 表达式取值源（通常由配置层适配）
type ValueSource interface {
	Value(key string) (any, bool)
}

// Registry 进程内组件注册表与生命周期编排器
// 实现 injection.Registry 协作者契约：按名/按类型匹配、表达式求值、
// 依赖边登记，并在 Close 时按依赖反序执行销毁适配器
type Registry struct {
	engine *injection.Engine
	logger logging.Logger

	mu          sync.Mutex
	definitions map[string]*Definition
	instances   map[string]any
	creating    map[string]*inflight
	order       []string                              // 创建顺序
	adapters    map[string]*injection.DisposalAdapter // 名称 -> 销毁适配器
	dependents  map[string][]string                   // 依赖名 -> 依赖它的实例名
	closed      bool

	processors []injection.DestructionProcessor
	values     ValueSource
}

// RegistryOption 注册表选项
type RegistryOption func(*registryConfig)

type registryConfig struct {
	logger     logging.Logger
	markers    *injection.MarkerRegistry
	primary    injection.PrimaryHook
	processors []injection.DestructionProcessor
	values     ValueSource
}

// WithRegistryLogger 指定日志器
func WithRegistryLogger(logger logging.Logger) RegistryOption {
	return func(c *registryConfig) { c.logger = logger }
}

// WithRegistryMarkers 指定标记注册表
func WithRegistryMarkers(markers *injection.MarkerRegistry) RegistryOption {
	return func(c *registryConfig) { c.markers = markers }
}

// WithDestructionProcessors 追加销毁前处理器，按注册顺序回调
func WithDestructionProcessors(processors ...injection.DestructionProcessor) RegistryOption {
	return func(c *registryConfig) { c.processors = append(c.processors, processors...) }
}

// WithValueSource 指定表达式取值源
func WithValueSource(source ValueSource) RegistryOption {
	return func(c *registryConfig) { c.values = source }
}

// WithPrimaryConstructorHook 指定主构造函数判定钩子
func WithPrimaryConstructorHook(hook injection.PrimaryHook) RegistryOption {
	return func(c *registryConfig) { c.primary = hook }
}

// NewRegistry 创建注册表并装配注入引擎
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewLogger()
	}

	r := &Registry{
		logger:      cfg.logger,
		definitions: map[string]*Definition{},
		instances:   map[string]any{},
		creating:    map[string]*inflight{},
		adapters:    map[string]*injection.DisposalAdapter{},
		dependents:  map[string][]string{},
		processors:  cfg.processors,
		values:      cfg.values,
	}

	engineOpts := []injection.EngineOption{
		injection.WithLogger(cfg.logger),
		injection.WithConverter(defaultConverter{}),
	}
	if cfg.markers != nil {
		engineOpts = append(engineOpts, injection.WithMarkers(cfg.markers))
	}
	if cfg.primary != nil {
		engineOpts = append(engineOpts, injection.WithPrimaryHook(cfg.primary))
	}
	r.engine = injection.NewEngine(r, engineOpts...)
	return r
}

// Engine 返回底层注入引擎
func (r *Registry) Engine() *injection.Engine { return r.engine }

// Register 注册组件定义。同名重注册会重置相关缓存并丢弃旧定义
func (r *Registry) Register(def *Definition) error {
	if def.err != nil {
		return def.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.definitions[def.name]; ok {
		r.engine.ResetCacheFor(def.name, old.typ)
		delete(r.instances, def.name)
		delete(r.adapters, def.name)
	}
	r.definitions[def.name] = def
	return nil
}

// Deregister 移除组件定义与已创建的实例，并使相关缓存失效
// 已创建实例的销毁适配器不再被 Close 调用，动态移除即放弃托管销毁
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.definitions[name]
	if !ok {
		return
	}
	delete(r.definitions, name)
	delete(r.instances, name)
	delete(r.adapters, name)
	r.engine.ResetCacheFor(name, def.typ)
}

// Contains 名称是否已注册
func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.definitions[name]
	if !ok {
		_, ok = r.instances[name]
	}
	return ok
}

// IsTypeMatch 名称对应的条目是否与类型兼容
func (r *Registry) IsTypeMatch(name string, typ reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typeOfLocked(name, typ)
}

func (r *Registry) typeOfLocked(name string, typ reflect.Type) bool {
	if v, ok := r.instances[name]; ok {
		return reflect.TypeOf(v).AssignableTo(typ)
	}
	if def, ok := r.definitions[name]; ok {
		return def.typ != nil && def.typ.AssignableTo(typ)
	}
	return false
}

// GetInstance 按名取实例，未创建时触发创建
// 名称不存在返回 *injection.NoSuchInstanceError
func (r *Registry) GetInstance(name string, typ reflect.Type) (any, error) {
	v, err := r.getOrCreate(name, "")
	if err != nil {
		return nil, err
	}
	if typ != nil && !reflect.TypeOf(v).AssignableTo(typ) {
		return nil, injection.NewResolutionErrorf(
			"instance '%s' of type %s does not match requested type %s",
			name, reflect.TypeOf(v), typ)
	}
	return v, nil
}

// Resolve 按类型解析唯一候选（歧义或缺失返回错误）
func (r *Registry) Resolve(typ reflect.Type) (any, error) {
	v, _, err := r.ResolveDependency(&injection.Descriptor{
		Type:           typ,
		Required:       true,
		ParameterIndex: -1,
	}, "")
	return v, err
}

// ResolveDependency 实现注入引擎的依赖解析契约
func (r *Registry) ResolveDependency(d *injection.Descriptor, requesterName string) (any, string, error) {
	if d.Expression != "" {
		v, err := r.evalExpression(d)
		return v, "", err
	}

	if d.Name != "" {
		v, err := r.getOrCreate(d.Name, requesterName)
		if err != nil {
			var missing *injection.NoSuchInstanceError
			if errors.As(err, &missing) && !d.Required {
				return nil, "", nil
			}
			return nil, "", err
		}
		return v, d.Name, nil
	}

	name, err := r.matchByType(d)
	if err != nil {
		return nil, "", err
	}
	if name == "" {
		if d.Required {
			return nil, "", injection.NewResolutionErrorf(
				"no candidate of type %s for %s", d.Type, d.Member)
		}
		return nil, "", nil
	}

	v, err := r.getOrCreate(name, requesterName)
	if err != nil {
		return nil, "", err
	}
	return v, name, nil
}

// matchByType 按类型收集候选：恰好一个直接命中；多个时要求唯一 primary
func (r *Registry) matchByType(d *injection.Descriptor) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates, primaries []string
	for name, def := range r.definitions {
		if !r.typeOfLocked(name, d.Type) {
			continue
		}
		candidates = append(candidates, name)
		if def.primary {
			primaries = append(primaries, name)
		}
	}

	switch {
	case len(candidates) == 0:
		return "", nil
	case len(candidates) == 1:
		return candidates[0], nil
	case len(primaries) == 1:
		return primaries[0], nil
	default:
		return "", injection.NewResolutionErrorf(
			"ambiguous candidates of type %s: %s", d.Type, strings.Join(candidates, ", "))
	}
}

// RegisterDependencyEdge 登记依赖边：requester 依赖 dependency，
// 销毁时 requester 先于 dependency
func (r *Registry) RegisterDependencyEdge(dependencyName, requesterName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.dependents[dependencyName] {
		if existing == requesterName {
			return
		}
	}
	r.dependents[dependencyName] = append(r.dependents[dependencyName], requesterName)
}

// inflight 在建实例的同步点。parent 串联同一解析链上的在建名，
// 用于区分真正的环与无关的并发请求；done 供并发请求者等待首建结果
type inflight struct {
	parent   string
	done     chan struct{}
	instance any
	err      error
}

// getOrCreate 取或创建实例，覆盖完整生命周期：
// 构造函数选择 → 实例化 → 元数据构建与认领 → 注入 → 登记销毁适配器
// requester 为触发本次创建的在建实例名（外部调用为空），
// 仅当请求者的在建链途经 name 本身才判定为环；
// 其余并发请求者等待首建完成并共享其结果
func (r *Registry) getOrCreate(name, requester string) (any, error) {
	r.mu.Lock()
	if v, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return v, nil
	}
	def, ok := r.definitions[name]
	if !ok {
		r.mu.Unlock()
		return nil, &injection.NoSuchInstanceError{Name: name}
	}
	if fl, ok := r.creating[name]; ok {
		for cur := requester; cur != ""; {
			if cur == name {
				r.mu.Unlock()
				return nil, injection.NewResolutionErrorf("circular dependency while creating '%s'", name)
			}
			parent, ok := r.creating[cur]
			if !ok {
				break
			}
			cur = parent.parent
		}
		r.mu.Unlock()
		<-fl.done
		if fl.err != nil {
			return nil, fl.err
		}
		return fl.instance, nil
	}
	fl := &inflight{parent: requester, done: make(chan struct{})}
	r.creating[name] = fl
	r.mu.Unlock()

	instance, err := r.create(def)

	var adapter *injection.DisposalAdapter
	if err == nil {
		// 适配器先于发布创建：失败时不留下无适配器的已发布实例
		adapter, err = r.engine.NewDisposalAdapter(instance, name, def.destroys, r.processors)
	}

	r.mu.Lock()
	delete(r.creating, name)
	if err != nil {
		fl.err = err
		close(fl.done)
		r.mu.Unlock()
		return nil, err
	}
	r.instances[name] = instance
	r.order = append(r.order, name)
	r.adapters[name] = adapter
	fl.instance = instance
	close(fl.done)
	r.mu.Unlock()

	return instance, nil
}

func (r *Registry) create(def *Definition) (any, error) {
	instance, err := r.instantiate(def)
	if err != nil {
		return nil, err
	}

	md := r.engine.BuildMetadata(def.name, reflect.TypeOf(instance))
	r.engine.CheckAgainstDefinition(md)
	if err := r.engine.Inject(md, instance, def.name, def.properties); err != nil {
		return nil, err
	}
	return instance, nil
}

// instantiate 实例化：现成实例直接复用；有候选构造时按序尝试，
// 前一个候选因依赖缺失失败则回退下一个；无候选时走默认实例化策略
func (r *Registry) instantiate(def *Definition) (any, error) {
	if def.hasInstance {
		return def.instance, nil
	}

	candidates, err := r.engine.SelectConstructors(def.typ, def.declaredConstructors())
	if err != nil {
		return nil, err
	}

	if candidates.Empty() {
		return defaultInstantiate(def.typ)
	}

	var lastErr error
	for _, c := range candidates.Constructors {
		instance, err := r.invokeConstructor(def.name, c)
		if err == nil {
			return instance, nil
		}
		lastErr = err
		r.logger.Debug("constructor candidate failed, trying next",
			logging.Field{Key: "instance", Value: def.name},
			logging.Field{Key: "constructor", Value: c.Name()},
			logging.Field{Key: "error", Value: err.Error()})
	}
	return nil, lastErr
}

// invokeConstructor 按类型解析每个参数后调用构造函数
func (r *Registry) invokeConstructor(name string, c *injection.Constructor) (any, error) {
	fnType := c.Type()
	args := make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		d := &injection.Descriptor{
			Type:           fnType.In(i),
			Required:       true,
			ParameterIndex: i,
		}
		v, usedName, err := r.ResolveDependency(d, name)
		if err != nil {
			return nil, err
		}
		if usedName != "" {
			r.RegisterDependencyEdge(usedName, name)
		}
		args[i] = reflect.ValueOf(v)
	}

	results := reflect.ValueOf(c.Fn()).Call(args)
	last := results[len(results)-1]
	if last.Type() == errType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	if len(results) == 0 {
		return nil, injection.ErrNoReturnValue
	}
	return results[0].Interface(), nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// defaultInstantiate 默认实例化策略：结构体指针类型零值分配
func defaultInstantiate(typ reflect.Type) (any, error) {
	if typ == nil || typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, injection.NewResolutionErrorf(
			"no constructor candidates and type %v has no default instantiation strategy", typ)
	}
	return reflect.New(typ.Elem()).Interface(), nil
}

// Close 按依赖反序销毁全部实例：依赖者先于被依赖者，
// 每个适配器恰好调用一次，幂等由此处保证
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true

	order := append([]string(nil), r.order...)
	dependents := make(map[string][]string, len(r.dependents))
	for k, v := range r.dependents {
		dependents[k] = append([]string(nil), v...)
	}
	adapters := make(map[string]*injection.DisposalAdapter, len(r.adapters))
	for k, v := range r.adapters {
		adapters[k] = v
	}
	r.mu.Unlock()

	destroyed := map[string]bool{}
	var destroyOne func(name string)
	destroyOne = func(name string) {
		if destroyed[name] {
			return
		}
		destroyed[name] = true
		for _, dep := range dependents[name] {
			destroyOne(dep)
		}
		if a, ok := adapters[name]; ok {
			a.Destroy()
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		destroyOne(order[i])
	}
}
