package runtime

import (
	"reflect"

	"github.com/gocrud/autowire/injection"
)

// Definition 包含注册组件的元数据：名称、实现类型、已声明的构造函数、
// 销毁方法名与显式属性值
type Definition struct {
	name         string
	typ          reflect.Type
	instance     any // 预先提供的实例（值注册）
	hasInstance  bool
	constructors []*injection.Constructor
	destroys     []string
	properties   *PropertyValues
	primary      bool
	err          error // 选项装配阶段捕获的首个错误，Register 时上抛
}

// DefinitionOption 组件定义选项
type DefinitionOption func(*Definition)

// WithConstructor 注册一个未标记的构造函数
func WithConstructor(fn any) DefinitionOption {
	return addConstructor(fn)
}

// WithMarkedConstructor 注册一个携带注入标记的构造函数
func WithMarkedConstructor(fn any, required bool) DefinitionOption {
	return addConstructor(fn, injection.WithMarked(required))
}

func addConstructor(fn any, opts ...injection.ConstructorOption) DefinitionOption {
	return func(d *Definition) {
		c, err := injection.NewConstructor(fn, opts...)
		if err != nil {
			if d.err == nil {
				d.err = err
			}
			return
		}
		d.constructors = append(d.constructors, c)
	}
}

// WithInstance 以现成实例注册（跳过构造阶段，仍参与注入与销毁）
func WithInstance(v any) DefinitionOption {
	return func(d *Definition) {
		d.instance = v
		d.hasInstance = true
	}
}

// WithDestroyMethods 声明销毁方法名，按声明顺序调用
// 支持 injection.InferDestroyMethod 哨兵
func WithDestroyMethods(names ...string) DefinitionOption {
	return func(d *Definition) {
		d.destroys = append(d.destroys, names...)
	}
}

// WithProperty 显式提供一个属性值；显式配置优先于标记驱动的注入
func WithProperty(name string, value any) DefinitionOption {
	return func(d *Definition) {
		d.properties.Add(name, value)
	}
}

// WithPrimary 标记为同类型多候选中的首选
func WithPrimary() DefinitionOption {
	return func(d *Definition) { d.primary = true }
}

// NewDefinition 创建组件定义。typ 应为 *T 形式的实现类型
func NewDefinition(name string, typ reflect.Type, opts ...DefinitionOption) *Definition {
	d := &Definition{
		name:       name,
		typ:        typ,
		properties: NewPropertyValues(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name 返回组件名
func (d *Definition) Name() string { return d.name }

// Type 返回实现类型
func (d *Definition) Type() reflect.Type { return d.typ }

// Properties 返回显式属性集
func (d *Definition) Properties() *PropertyValues { return d.properties }

// DestroyMethods 返回配置的销毁方法名
func (d *Definition) DestroyMethods() []string { return d.destroys }

// declaredConstructors 返回参与选择的构造函数：
// 已注册的全部构造，外加结构体类型的合成零参构造（未显式注册零参构造时）
func (d *Definition) declaredConstructors() []*injection.Constructor {
	ctors := d.constructors
	for _, c := range ctors {
		if c.IsZeroArg() {
			return ctors
		}
	}

	if synthetic := syntheticConstructor(d.typ); synthetic != nil {
		ctors = append(append([]*injection.Constructor(nil), ctors...), synthetic)
	}
	return ctors
}

// syntheticConstructor 为 *T 结构体类型合成零参构造 func() *T
func syntheticConstructor(typ reflect.Type) *injection.Constructor {
	if typ == nil || typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil
	}

	fnType := reflect.FuncOf(nil, []reflect.Type{typ}, false)
	fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		return []reflect.Value{reflect.New(typ.Elem())}
	})

	c, err := injection.NewConstructor(fn.Interface(), injection.WithSynthetic())
	if err != nil {
		return nil
	}
	return c
}
