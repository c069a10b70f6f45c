package injection

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Marker 标识一个被识别为"该成员需要注入"的结构体标签
type Marker struct {
	// Name 标记的标识名，例如 "autowire"
	Name string
	// Tag 结构体标签键
	Tag string
	// RequiredByDefault 未显式声明时成员是否必需，默认 true
	RequiredByDefault bool
	// Expression 标签负载是否为表达式（交由 Registry 求值），而非实例名
	Expression bool
}

// DefaultMarkers 返回默认的标记集合：autowire、inject、value
func DefaultMarkers() []Marker {
	return []Marker{
		{Name: "autowire", Tag: "autowire", RequiredByDefault: true},
		{Name: "inject", Tag: "inject", RequiredByDefault: true},
		{Name: "value", Tag: "value", RequiredByDefault: true, Expression: true},
	}
}

// MarkerRegistry 有序的注入标记集合
// 进程级配置，首次扫描后冻结，此后只读，无并发风险
type MarkerRegistry struct {
	mu      sync.Mutex
	frozen  atomic.Bool
	markers []Marker
}

// NewMarkerRegistry 创建标记注册表；不传参时使用默认标记
func NewMarkerRegistry(markers ...Marker) *MarkerRegistry {
	if len(markers) == 0 {
		markers = DefaultMarkers()
	}
	return &MarkerRegistry{markers: markers}
}

// Add 追加标记。注册表冻结后返回 ErrMarkersFrozen
func (r *MarkerRegistry) Add(m Marker) error {
	if r.frozen.Load() {
		return ErrMarkersFrozen
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrMarkersFrozen
	}
	r.markers = append(r.markers, m)
	return nil
}

// Markers 返回标记列表并冻结注册表
func (r *MarkerRegistry) Markers() []Marker {
	r.freeze()
	return r.markers
}

func (r *MarkerRegistry) freeze() {
	r.frozen.Store(true)
}

// Find 按注册顺序查找字段上的第一个标记，返回标记、标签负载与是否命中
func (r *MarkerRegistry) Find(field reflect.StructField) (Marker, string, bool) {
	r.freeze()
	for _, m := range r.markers {
		if payload, ok := field.Tag.Lookup(m.Tag); ok {
			return m, payload, true
		}
	}
	return Marker{}, "", false
}

// IsCandidate 快速预检：类型（含内嵌层级）的任一字段是否携带任一标记标签
// 扫描成本是 O(成员数 × 层级数)，该短路是必须的性能保护
func (r *MarkerRegistry) IsCandidate(t reflect.Type) bool {
	r.freeze()
	t = normalizeStructType(t)
	if t == nil {
		return false
	}

	queue := []reflect.Type{t}
	for len(queue) > 0 {
		typ := queue[0]
		queue = queue[1:]

		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			for _, m := range r.markers {
				if _, ok := field.Tag.Lookup(m.Tag); ok {
					return true
				}
			}
			if embedded := embeddedStructType(field); embedded != nil {
				queue = append(queue, embedded)
			}
		}
	}
	return false
}

// directive 解析后的标签负载
type directive struct {
	// Name 显式指定的目标实例名（可为空，表示按类型解析）
	Name string
	// Method 方法注入点声明（载体字段形式 method=SetXxx）
	Method string
	// Required 是否必需，由标记默认值与 optional/required 选项共同决定
	Required bool
	// Expression 表达式标记的原始负载
	Expression string
}

// parseDirective 解析标签负载
// 负载语法（与 di 标签一致）：`name[,optional][,required]` 或 `method=SetXxx[,optional]`
// 首段为 "optional" 或 "?" 时视为匿名可选依赖
func parseDirective(m Marker, payload string) directive {
	dir := directive{Required: m.RequiredByDefault}

	if m.Expression {
		dir.Expression = payload
		return dir
	}

	parts := strings.Split(payload, ",")
	head := strings.TrimSpace(parts[0])

	switch {
	case head == "optional" || head == "?":
		dir.Required = false
	case strings.HasPrefix(head, "method="):
		dir.Method = strings.TrimPrefix(head, "method=")
	default:
		dir.Name = head
	}

	for _, part := range parts[1:] {
		switch strings.TrimSpace(part) {
		case "optional", "?":
			dir.Required = false
		case "required":
			dir.Required = true
		}
	}
	return dir
}
