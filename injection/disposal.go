package injection

import (
	"io"
	"reflect"
	"sync"

	"github.com/gocrud/autowire/logging"
)

// InferDestroyMethod 销毁方法名的推断哨兵
// 配置该值时销毁方法名由类型形状推断，而非显式指定
const InferDestroyMethod = "(inferred)"

// Disposable 自销毁能力：实现该接口的实例在编排关停时被调用
type Disposable interface {
	Destroy() error
}

// DestructionProcessor 销毁前处理器，在原生销毁步骤之前按注册顺序回调
type DestructionProcessor interface {
	// RequiresDestruction 实例是否需要该处理器参与销毁
	RequiresDestruction(instance any) bool
	// BeforeDestruction 销毁前回调。返回的错误只记录，不中断后续步骤
	BeforeDestruction(instance any, name string) error
}

// destroyMethodResolver 按类型缓存推断出的销毁方法名（可能为空），
// 推断对每个类型至多执行一次
type destroyMethodResolver struct {
	cache sync.Map // reflect.Type -> string

	// onInfer 推断实际发生时的回调，测试观察推断次数用
	onInfer func(t reflect.Type, inferred string)
}

var defaultResolver = &destroyMethodResolver{}

func (r *destroyMethodResolver) resolve(instance any) string {
	t := reflect.TypeOf(instance)
	if v, ok := r.cache.Load(t); ok {
		return v.(string)
	}

	inferred := inferDestroyMethod(instance)
	if r.onInfer != nil {
		r.onInfer(t, inferred)
	}
	actual, _ := r.cache.LoadOrStore(t, inferred)
	return actual.(string)
}

// inferDestroyMethod 推断规则：可关闭且不自销毁的类型推断 Close；
// 否则按名查找无参的 Close、Shutdown 方法；都没有则为空
func inferDestroyMethod(instance any) string {
	_, closeable := instance.(io.Closer)
	_, disposable := instance.(Disposable)
	if closeable && !disposable {
		return "Close"
	}

	t := reflect.TypeOf(instance)
	for _, name := range []string{"Close", "Shutdown"} {
		if m, ok := t.MethodByName(name); ok && m.Type.NumIn() == 1 {
			return name
		}
	}
	return ""
}

// destroyMethod 已解析的自定义销毁方法句柄
type destroyMethod struct {
	name     string
	fn       reflect.Value
	withBool bool // 单布尔参数重载，调用时传 true
}

// DisposalAdapter 单个实例的销毁协调器
// 创建于实例填充成功之后，编排关停时恰好调用一次 Destroy；
// 销毁全程尽力而为：任一步骤失败只记录，绝不中断其余步骤
type DisposalAdapter struct {
	instance   any
	name       string
	processors []DestructionProcessor
	logger     logging.Logger

	invokeDisposable bool
	invokeCloser     bool
	methods          []destroyMethod
}

// DisposalOption 销毁适配器选项
type DisposalOption func(*disposalConfig)

type disposalConfig struct {
	strict   bool
	logger   logging.Logger
	resolver *destroyMethodResolver
}

// WithStrictDestroy 严格模式：配置的销毁方法在类型上不存在时报配置错误
func WithStrictDestroy() DisposalOption {
	return func(c *disposalConfig) { c.strict = true }
}

// WithDisposalLogger 指定销毁日志器
func WithDisposalLogger(logger logging.Logger) DisposalOption {
	return func(c *disposalConfig) { c.logger = logger }
}

func withResolver(r *destroyMethodResolver) DisposalOption {
	return func(c *disposalConfig) { c.resolver = r }
}

// NewDisposalAdapter 为实例创建销毁适配器
// methodNames 为配置的销毁方法名（支持多个，按声明顺序调用；
// 支持 InferDestroyMethod 哨兵）；processors 在此按适用性过滤
func NewDisposalAdapter(instance any, name string, methodNames []string, processors []DestructionProcessor, opts ...DisposalOption) (*DisposalAdapter, error) {
	cfg := disposalConfig{logger: logging.NewLogger(), resolver: defaultResolver}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &DisposalAdapter{instance: instance, name: name, logger: cfg.logger}
	for _, p := range processors {
		if p.RequiresDestruction(instance) {
			a.processors = append(a.processors, p)
		}
	}

	names := make([]string, 0, len(methodNames))
	for _, n := range methodNames {
		if n == InferDestroyMethod {
			n = cfg.resolver.resolve(instance)
			if n == "" {
				continue
			}
		}
		names = append(names, n)
	}

	_, disposable := instance.(Disposable)
	_, closeable := instance.(io.Closer)

	// 自销毁能力优先，除非同名销毁方法已被显式接管
	a.invokeDisposable = disposable && !containsName(names, "Destroy")
	if !a.invokeDisposable && closeable && containsName(names, "Close") {
		a.invokeCloser = true
	}

	if !a.invokeDisposable && !a.invokeCloser {
		for _, n := range names {
			m, err := resolveDestroyMethod(instance, n)
			if err != nil {
				if cfg.strict {
					return nil, err
				}
				cfg.logger.Warn("configured destroy method not found on type",
					logging.Field{Key: "instance", Value: name},
					logging.Field{Key: "method", Value: n})
				continue
			}
			a.methods = append(a.methods, m)
		}
	}
	return a, nil
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// resolveDestroyMethod 解析最具体的可调用重载：优先无参，回退单布尔参
func resolveDestroyMethod(instance any, name string) (destroyMethod, error) {
	rv := reflect.ValueOf(instance)
	m := rv.MethodByName(name)
	if !m.IsValid() {
		return destroyMethod{}, newConfigurationErrorf(
			"destroy method %s not found on type %s", name, reflect.TypeOf(instance).String())
	}

	t := m.Type()
	switch {
	case t.NumIn() == 0:
		return destroyMethod{name: name, fn: m}, nil
	case t.NumIn() == 1 && t.In(0).Kind() == reflect.Bool:
		return destroyMethod{name: name, fn: m, withBool: true}, nil
	default:
		return destroyMethod{}, newConfigurationErrorf(
			"destroy method %s on type %s has unsupported signature %s",
			name, reflect.TypeOf(instance).String(), t.String())
	}
}

// Destroy 执行四步有序销毁：处理器 → 自销毁 → 关闭 → 自定义方法
// 每一步失败都只记录告警；本方法设计为恰好调用一次，幂等由调用方保证
func (a *DisposalAdapter) Destroy() {
	for _, p := range a.processors {
		if err := p.BeforeDestruction(a.instance, a.name); err != nil {
			a.logger.Warn("destruction processor failed",
				logging.Field{Key: "instance", Value: a.name},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	switch {
	case a.invokeDisposable:
		if err := a.instance.(Disposable).Destroy(); err != nil {
			a.warnStep("Destroy", err)
		}
	case a.invokeCloser:
		if err := a.instance.(io.Closer).Close(); err != nil {
			a.warnStep("Close", err)
		}
	default:
		for _, m := range a.methods {
			a.invokeDestroyMethod(m)
		}
	}
}

func (a *DisposalAdapter) invokeDestroyMethod(m destroyMethod) {
	var args []reflect.Value
	if m.withBool {
		args = []reflect.Value{reflect.ValueOf(true)}
	}

	results := m.fn.Call(args)
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			a.warnStep(m.name, last.Interface().(error))
		}
	}
}

func (a *DisposalAdapter) warnStep(step string, err error) {
	a.logger.Warn("destroy step failed",
		logging.Field{Key: "instance", Value: a.name},
		logging.Field{Key: "step", Value: step},
		logging.Field{Key: "error", Value: err.Error()})
}
