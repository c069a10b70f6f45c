package injection

import (
	"fmt"
	"reflect"

	"github.com/gocrud/autowire/logging"
)

// Injector 按元数据填充目标实例
// 匹配策略完全委托给 Registry 协作者；这里只负责遍历点、
// 维护捷径缓存并把解析结果落到字段或方法调用上
type Injector struct {
	registry  Registry
	converter TypeConverter
	logger    logging.Logger
}

// NewInjector 创建注入器
func NewInjector(registry Registry, converter TypeConverter, logger logging.Logger) *Injector {
	return &Injector{registry: registry, converter: converter, logger: logger}
}

// Inject 按元数据固定的顺序填充目标实例的全部有效注入点
// required 点解析失败时返回携带成员标识与实例名的 CreationError
func (inj *Injector) Inject(md *Metadata, target any, name string, values ExplicitValues) error {
	for _, p := range md.effectivePoints() {
		if err := inj.injectPoint(p, target, name, values); err != nil {
			return &CreationError{InstanceName: name, Member: p.Member().String(), Err: err}
		}
	}
	return nil
}

func (inj *Injector) injectPoint(p *InjectionPoint, target any, name string, values ExplicitValues) error {
	if p.Member().Kind() == MemberField {
		return inj.injectField(p, target, name)
	}

	// 显式配置优先：属性已由外部属性集提供时整点跳过
	if p.checkSkip(values) {
		return nil
	}
	return inj.injectMethod(p, target, name)
}

// injectField 解析并写入字段点
func (inj *Injector) injectField(p *InjectionPoint, target any, name string) error {
	member := p.Member()

	if sc, cached := p.loadShortcut(); cached {
		if sc != nil {
			value, err := inj.registry.GetInstance(sc.Name, sc.Type)
			switch {
			case err == nil:
				return inj.setField(member, target, value)
			case isNoSuchInstance(err):
				// 捷径目标已从注册表消失：本次静默回退完整解析，缓存保持不变
				inj.logger.Debug("shortcut target vanished, falling back to full resolution",
					logging.Field{Key: "member", Value: member.String()},
					logging.Field{Key: "shortcut", Value: sc.Name})
			default:
				return err
			}
		}
		value, _, err := inj.resolve(p, 0, name)
		if err != nil {
			return err
		}
		if value == nil {
			return inj.missingValue(p)
		}
		return inj.setField(member, target, value)
	}

	value, usedName, err := inj.resolve(p, 0, name)
	if err != nil {
		return err
	}
	inj.cacheDecision(p, usedName, member.FieldType(), value != nil)
	if value == nil {
		return inj.missingValue(p)
	}
	return inj.setField(member, target, value)
}

// injectMethod 解析全部参数并调用方法点
// 任一非必需参数缺失即跳过整个方法调用（方法级全有或全无）
func (inj *Injector) injectMethod(p *InjectionPoint, target any, name string) error {
	member := p.Member()
	params := member.ParamTypes()

	if sc, cached := p.loadShortcut(); cached && sc != nil {
		value, err := inj.registry.GetInstance(sc.Name, sc.Type)
		switch {
		case err == nil:
			arg, cerr := inj.coerce(value, params[0])
			if cerr != nil {
				return cerr
			}
			return member.Invoke(target, []reflect.Value{arg})
		case isNoSuchInstance(err):
			inj.logger.Debug("shortcut target vanished, falling back to full resolution",
				logging.Field{Key: "member", Value: member.String()},
				logging.Field{Key: "shortcut", Value: sc.Name})
		default:
			return err
		}
	}
	_, cached := p.loadShortcut()

	args := make([]reflect.Value, len(params))
	singleName := ""
	for i, paramType := range params {
		value, usedName, err := inj.resolve(p, i, name)
		if err != nil {
			return err
		}
		if value == nil {
			if p.Required() {
				return inj.missingValue(p)
			}
			if !cached {
				p.storeResolution(nil)
			}
			return nil
		}
		if len(params) == 1 {
			singleName = usedName
		}
		arg, err := inj.coerce(value, paramType)
		if err != nil {
			return err
		}
		args[i] = arg
	}

	if !cached {
		// 仅单参数方法才有按名捷径；多参数方法总是完整解析
		if len(params) == 1 {
			inj.cacheDecision(p, singleName, params[0], true)
		} else {
			p.storeResolution(nil)
		}
	}
	return member.Invoke(target, args)
}

// resolve 完整解析一个参数位，成功后登记依赖边
func (inj *Injector) resolve(p *InjectionPoint, paramIndex int, requesterName string) (any, string, error) {
	d := p.Descriptor(paramIndex)
	value, usedName, err := inj.registry.ResolveDependency(d, requesterName)
	if err != nil {
		return nil, "", err
	}
	if value != nil && usedName != "" && requesterName != "" {
		inj.registry.RegisterDependencyEdge(usedName, requesterName)
	}
	return value, usedName, nil
}

// cacheDecision 首次解析后的缓存决策：恰好命中一个存活且类型匹配的具名条目
// 时缓存按名捷径，否则缓存"总是完整解析"
func (inj *Injector) cacheDecision(p *InjectionPoint, usedName string, typ reflect.Type, resolved bool) {
	if resolved && usedName != "" &&
		inj.registry.Contains(usedName) && inj.registry.IsTypeMatch(usedName, typ) {
		p.storeResolution(&Shortcut{Name: usedName, Type: typ})
		return
	}
	p.storeResolution(nil)
}

func (inj *Injector) setField(member *Member, target any, value any) error {
	v, err := inj.coerce(value, member.FieldType())
	if err != nil {
		return err
	}
	return member.Set(target, v.Interface())
}

// coerce 将解析值适配到目标类型，不可直接赋值时经由类型转换器
func (inj *Injector) coerce(value any, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if rv.IsValid() && rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if inj.converter != nil {
		converted, err := inj.converter.Convert(value, target)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(converted), nil
	}
	return reflect.Value{}, fmt.Errorf("injection: value of type %T is not assignable to %s", value, target)
}

// missingValue 必需点无值是注册表违约，仍转成解析错误上抛；可选点静默跳过
func (inj *Injector) missingValue(p *InjectionPoint) error {
	if p.Required() {
		return NewResolutionErrorf("no value resolved for required %s", p.Member())
	}
	return nil
}
