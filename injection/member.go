package injection

import (
	"fmt"
	"reflect"
	"strings"
)

// MemberKind 成员种类
type MemberKind int

const (
	// MemberField 字段成员
	MemberField MemberKind = iota
	// MemberMethod 方法成员
	MemberMethod
)

// Member 对反射成员的抽象：核心引擎只依赖该值类型与其 Set/Invoke 能力，
// 不直接触碰 reflect.StructField / reflect.Method
type Member struct {
	kind  MemberKind
	name  string
	owner reflect.Type // 声明该成员的层级类型
	root  reflect.Type // 最外层目标结构体类型，索引路径相对于它

	index      []int          // 字段索引路径（字段成员）
	fieldType  reflect.Type   // 字段类型（字段成员）
	method     reflect.Method // 来自 root 指针方法集的方法（方法成员）
	paramTypes []reflect.Type // 方法参数类型（不含接收者）
}

func newFieldMember(root, owner reflect.Type, field reflect.StructField, index []int) *Member {
	return &Member{
		kind:      MemberField,
		name:      field.Name,
		owner:     owner,
		root:      root,
		index:     index,
		fieldType: field.Type,
	}
}

func newMethodMember(root, owner reflect.Type, method reflect.Method) *Member {
	params := make([]reflect.Type, 0, method.Type.NumIn()-1)
	for i := 1; i < method.Type.NumIn(); i++ {
		params = append(params, method.Type.In(i))
	}
	return &Member{
		kind:       MemberMethod,
		name:       method.Name,
		owner:      owner,
		root:       root,
		method:     method,
		paramTypes: params,
	}
}

// Kind 返回成员种类
func (m *Member) Kind() MemberKind { return m.kind }

// Name 返回成员名
func (m *Member) Name() string { return m.name }

// Owner 返回声明该成员的层级类型
func (m *Member) Owner() reflect.Type { return m.owner }

// FieldType 返回字段类型（字段成员）
func (m *Member) FieldType() reflect.Type { return m.fieldType }

// ParamTypes 返回方法参数类型（方法成员）
func (m *Member) ParamTypes() []reflect.Type { return m.paramTypes }

// Key 成员的等值键：两个注入点引用同一成员当且仅当 Key 相同
// 用于与"已由其他机制配置"的成员集合去重，避免重复注入
func (m *Member) Key() string {
	return fmt.Sprintf("%d|%s|%s", m.kind, m.owner.String(), m.name)
}

// String 返回成员的可读标识，嵌入错误信息以便定位
func (m *Member) String() string {
	if m == nil {
		return "unknown member"
	}
	if m.kind == MemberField {
		return fmt.Sprintf("field %s.%s", m.owner.String(), m.name)
	}
	sig := make([]string, len(m.paramTypes))
	for i, p := range m.paramTypes {
		sig[i] = p.String()
	}
	return fmt.Sprintf("method %s.%s(%s)", m.owner.String(), m.name, strings.Join(sig, ", "))
}

// Set 将值写入目标实例的字段。target 必须是指向 root 结构体的指针
func (m *Member) Set(target any, value any) error {
	if m.kind != MemberField {
		return fmt.Errorf("injection: %s is not a field", m)
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("injection: target for %s must be a non-nil pointer", m)
	}

	fv := rv.Elem().FieldByIndex(m.index)
	if !fv.CanSet() {
		return fmt.Errorf("injection: %s is not settable", m)
	}

	fv.Set(reflect.ValueOf(value))
	return nil
}

// Invoke 在目标实例上调用方法成员。若方法最后一个返回值是非 nil 的 error 则上抛
func (m *Member) Invoke(target any, args []reflect.Value) error {
	if m.kind != MemberMethod {
		return fmt.Errorf("injection: %s is not a method", m)
	}

	callArgs := append([]reflect.Value{reflect.ValueOf(target)}, args...)
	results := m.method.Func.Call(callArgs)

	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// normalizeStructType 将指针类型解包到结构体类型；非结构体返回 nil
func normalizeStructType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// embeddedStructType 若字段是匿名内嵌的值类型结构体，返回其类型
// 内嵌链即"父类链"：遇到非结构体内嵌即停止（通用根排除）
// 指针内嵌不参与：索引路径穿过 nil 指针无法安全寻址
func embeddedStructType(field reflect.StructField) reflect.Type {
	if !field.Anonymous || field.Type.Kind() != reflect.Struct {
		return nil
	}
	return field.Type
}

// lowerFirst 首字母小写，用于由成员名推导属性名
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// propertyNameOf 由方法名推导属性名：剥除 Set 前缀后首字母小写
func propertyNameOf(methodName string) string {
	name := strings.TrimPrefix(methodName, "Set")
	if name == "" {
		name = methodName
	}
	return lowerFirst(name)
}
