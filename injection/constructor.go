package injection

import (
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/gocrud/autowire/logging"
)

// Constructor 一个已注册的构造函数及其声明属性
type Constructor struct {
	fn     any
	fnType reflect.Type
	name   string

	// Marked 构造函数是否携带注入标记
	Marked bool
	// Required 标记是否声明 required（仅 Marked 时有意义）
	Required bool
	// Synthetic 是否为框架合成（如为结构体自动生成的零参构造）
	Synthetic bool
}

// ConstructorOption 构造函数声明选项
type ConstructorOption func(*Constructor)

// WithMarked 声明构造函数携带注入标记；required 指定标记的必需属性
func WithMarked(required bool) ConstructorOption {
	return func(c *Constructor) {
		c.Marked = true
		c.Required = required
	}
}

// WithSynthetic 声明构造函数为框架合成
func WithSynthetic() ConstructorOption {
	return func(c *Constructor) { c.Synthetic = true }
}

// NewConstructor 包装构造函数。fn 必须是至少有一个返回值的函数
func NewConstructor(fn any, opts ...ConstructorOption) (*Constructor, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, ErrNotAFunction
	}
	if t.NumOut() == 0 {
		return nil, ErrNoReturnValue
	}

	c := &Constructor{fn: fn, fnType: t, name: funcName(fn)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fn 返回底层函数值
func (c *Constructor) Fn() any { return c.fn }

// Type 返回函数类型
func (c *Constructor) Type() reflect.Type { return c.fnType }

// Name 返回函数短名（不含包路径）
func (c *Constructor) Name() string { return c.name }

// NumParams 返回参数个数
func (c *Constructor) NumParams() int { return c.fnType.NumIn() }

// IsZeroArg 是否零参构造
func (c *Constructor) IsZeroArg() bool { return c.fnType.NumIn() == 0 }

// funcName 取函数的短名：runtime 全名截去包路径与接收者前缀
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// Candidates 构造函数选择结果
// 空列表表示"无候选"：调用方回退到自己的默认实例化策略；
// 这与"唯一候选恰好是零参构造"是两个不同的结果
type Candidates struct {
	Constructors []*Constructor
}

// Empty 是否无候选
func (c *Candidates) Empty() bool { return len(c.Constructors) == 0 }

// PrimaryHook 主构造函数判定钩子，独立于注入标记
type PrimaryHook func(t reflect.Type, ctors []*Constructor) *Constructor

// DefaultPrimaryHook 默认约定：名为 "New"+类型名 的构造函数为主构造
func DefaultPrimaryHook(t reflect.Type, ctors []*Constructor) *Constructor {
	st := normalizeStructType(t)
	if st == nil || st.Name() == "" {
		return nil
	}
	want := "New" + st.Name()
	for _, c := range ctors {
		if c.Name() == want {
			return c
		}
	}
	return nil
}

// ConstructorSelector 构造函数选择器，结果按类型备忘
// 缓存纪律与元数据缓存相同：sync.Map 快路径 + 互斥锁下双重检查，
// 两个缓存使用各自独立的锁，互不竞争
type ConstructorSelector struct {
	logger  logging.Logger
	primary PrimaryHook

	mu    sync.Mutex
	cache sync.Map // reflect.Type -> *Candidates
}

// NewConstructorSelector 创建选择器；hook 为 nil 时使用默认主构造约定
func NewConstructorSelector(logger logging.Logger, hook PrimaryHook) *ConstructorSelector {
	if hook == nil {
		hook = DefaultPrimaryHook
	}
	return &ConstructorSelector{logger: logger, primary: hook}
}

// Select 对类型的已声明构造函数执行选择算法，结果备忘
func (s *ConstructorSelector) Select(t reflect.Type, declared []*Constructor) (*Candidates, error) {
	if v, ok := s.cache.Load(t); ok {
		return v.(*Candidates), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Load(t); ok {
		return v.(*Candidates), nil
	}

	result, err := s.compute(t, declared)
	if err != nil {
		return nil, err
	}
	s.cache.Store(t, result)
	return result, nil
}

// Invalidate 逐出类型的备忘结果
func (s *ConstructorSelector) Invalidate(t reflect.Type) {
	s.cache.Delete(t)
}

// compute 选择算法本体
// required 构造一旦判定即为唯一候选，零参兜底不再追加；
// 未标记时仅统计非合成构造：合成零参构造不改变"唯一带参构造"的判定
func (s *ConstructorSelector) compute(t reflect.Type, declared []*Constructor) (*Candidates, error) {
	primary := s.primary(t, declared)

	var (
		marked   []*Constructor
		required *Constructor
		zeroArg  *Constructor
	)
	nonSynthetic := make([]*Constructor, 0, len(declared))

	for _, c := range declared {
		if !c.Synthetic {
			nonSynthetic = append(nonSynthetic, c)
		}
		if zeroArg == nil && c.IsZeroArg() {
			zeroArg = c
		}
		// 合成构造不参与标记收集，除非连主构造都无法判定
		if c.Synthetic && primary != nil {
			continue
		}
		if !c.Marked {
			continue
		}
		if c.Required {
			if required != nil {
				return nil, newConfigurationErrorf(
					"type %s declares two required constructors: %s and %s",
					t.String(), required.Name(), c.Name())
			}
			required = c
		}
		marked = append(marked, c)
	}

	if required != nil {
		// required 构造彻底胜出：其余标记构造与零参兜底都不再参与
		return &Candidates{Constructors: []*Constructor{required}}, nil
	}

	if len(marked) > 0 {
		candidates := append([]*Constructor(nil), marked...)
		if zeroArg != nil {
			candidates = append(candidates, zeroArg)
		} else if len(marked) == 1 {
			s.logger.Warn("single non-required constructor marked without zero-arg fallback, treating as mandatory",
				logging.Field{Key: "type", Value: t.String()},
				logging.Field{Key: "constructor", Value: marked[0].Name()})
		}
		return &Candidates{Constructors: candidates}, nil
	}

	switch {
	case len(nonSynthetic) == 1 && nonSynthetic[0].NumParams() > 0:
		return &Candidates{Constructors: []*Constructor{nonSynthetic[0]}}, nil
	case len(nonSynthetic) == 2 && primary != nil && zeroArg != nil && primary != zeroArg:
		return &Candidates{Constructors: []*Constructor{primary, zeroArg}}, nil
	case len(nonSynthetic) == 1 && primary != nil:
		return &Candidates{Constructors: []*Constructor{primary}}, nil
	default:
		return &Candidates{}, nil
	}
}
