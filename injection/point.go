package injection

import (
	"reflect"
	"sync"
)

// Shortcut 缓存的直接按名引用，绕过完整的依赖匹配路径
// 将压倒性的常见情形（单例依赖注入到瞬态目标）从 O(候选扫描) 优化为 O(1) 名称查找
type Shortcut struct {
	Name string
	Type reflect.Type
}

// InjectionPoint 一个待填充的字段或方法参数集
//
// 每个点持有一个点级小状态机：Uncached → Cached(Shortcut) | Cached(NoShortcut)，
// 由点级锁保护——十个不相关的点在十个实例上并发解析时绝不串行在同一把锁上。
// 一旦 cached 为 true，捷径决策固定不变，直到所属 Metadata 失效
type InjectionPoint struct {
	member     *Member
	required   bool
	marker     Marker
	targetName string // 标签显式指定的目标实例名
	expression string // 表达式标记的原始负载
	property   string // 显式属性跳过检查使用的属性名（方法点）

	mu       sync.Mutex
	cached   bool
	shortcut *Shortcut
	skip     *bool
}

func newFieldPoint(member *Member, marker Marker, dir directive) *InjectionPoint {
	return &InjectionPoint{
		member:     member,
		required:   dir.Required,
		marker:     marker,
		targetName: dir.Name,
		expression: dir.Expression,
	}
}

func newMethodPoint(member *Member, marker Marker, dir directive) *InjectionPoint {
	return &InjectionPoint{
		member:     member,
		required:   dir.Required,
		marker:     marker,
		targetName: dir.Name,
		property:   propertyNameOf(member.Name()),
	}
}

// Member 返回点引用的成员
func (p *InjectionPoint) Member() *Member { return p.member }

// Required 返回该点是否必需
func (p *InjectionPoint) Required() bool { return p.required }

// Equal 两个点相等当且仅当引用同一成员
func (p *InjectionPoint) Equal(other *InjectionPoint) bool {
	return other != nil && p.member.Key() == other.member.Key()
}

// Descriptor 为第 i 个参数（字段点固定为 0）构建依赖描述符
func (p *InjectionPoint) Descriptor(paramIndex int) *Descriptor {
	d := &Descriptor{
		Member:         p.member,
		Required:       p.required,
		Name:           p.targetName,
		Marker:         p.marker.Name,
		Expression:     p.expression,
		ParameterIndex: -1,
	}
	if p.member.Kind() == MemberField {
		d.Type = p.member.FieldType()
	} else {
		d.Type = p.member.ParamTypes()[paramIndex]
		d.ParameterIndex = paramIndex
	}
	return d
}

// loadShortcut 读取缓存状态：返回捷径（可为 nil，表示"总是完整解析"）与是否已缓存
func (p *InjectionPoint) loadShortcut() (*Shortcut, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shortcut, p.cached
}

// storeResolution 完成一次 cached: false → true 的状态迁移
// 已缓存的点不再改写决策（并发首次解析时先到者胜出）
func (p *InjectionPoint) storeResolution(sc *Shortcut) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached {
		return
	}
	p.shortcut = sc
	p.cached = true
}

// checkSkip 显式属性跳过检查：目标属性已由外部属性集显式提供时跳过该点
// 结果在点级锁下惰性计算一次；显式配置优先于标记驱动的注入
func (p *InjectionPoint) checkSkip(values ExplicitValues) bool {
	if values == nil || p.property == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.skip != nil {
		return *p.skip
	}

	skip := values.Contains(p.property)
	if skip {
		values.MarkProcessed(p.property)
	}
	p.skip = &skip
	return skip
}

// ClearCache 清空捷径与跳过备忘
// 所属 Metadata 被逐出或显式属性容器被清空（元数据重建场景）时调用；
// 指向已销毁依赖的陈旧捷径会解析出错误结果，必须随失效一并清除
func (p *InjectionPoint) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = false
	p.shortcut = nil
	p.skip = nil
}
