package injection

import "reflect"

// Descriptor 一次依赖解析的完整描述：成员、目标类型、必需性与标记信息
// 引擎把匹配策略完全委托给 Registry，自己只负责发现注入点与落值
type Descriptor struct {
	// Member 发起解析的成员
	Member *Member
	// Type 期望的依赖类型
	Type reflect.Type
	// Required 是否必需。必需缺失时 Registry 返回 ResolutionError；
	// 可选缺失时返回 (nil, "", nil)
	Required bool
	// Name 标签显式指定的目标实例名；为空表示按类型解析
	Name string
	// Marker 命中的标记名
	Marker string
	// Expression 表达式标记的原始负载；非空时 Registry 应求值而非匹配实例
	Expression string
	// ParameterIndex 方法点的参数序号；字段点为 -1
	ParameterIndex int
}

// Registry 依赖解析协作者。引擎对"容器"的全部认知就是这一个接口
type Registry interface {
	// ResolveDependency 按描述符解析依赖
	// 返回解析到的值、命中的实例名（用于捷径缓存；匿名值返回空串）
	// 与错误。可选依赖缺失时返回 (nil, "", nil)
	ResolveDependency(d *Descriptor, requesterName string) (any, string, error)

	// GetInstance 按名直接取实例，捷径路径使用
	// 名称不存在时必须返回 *NoSuchInstanceError
	GetInstance(name string, typ reflect.Type) (any, error)

	// Contains 名称是否已注册
	Contains(name string) bool

	// IsTypeMatch 名称对应的条目是否与类型兼容
	IsTypeMatch(name string, typ reflect.Type) bool

	// RegisterDependencyEdge 登记依赖关系边（requester 依赖 dependency），
	// 供销毁排序使用
	RegisterDependencyEdge(dependencyName, requesterName string)
}

// TypeConverter 类型转换协作者，解析值与成员类型不严格一致时使用
type TypeConverter interface {
	// Convert 将 value 转换为 target 类型；无法转换时返回错误
	Convert(value any, target reflect.Type) (any, error)
}

// ExplicitValues 外部显式属性集。显式配置优先于标记驱动的注入
type ExplicitValues interface {
	// Contains 属性是否已显式提供
	Contains(property string) bool
	// MarkProcessed 标记属性已被注入流程认领
	MarkProcessed(property string)
}
