package runtime

import (
	"fmt"
	"reflect"
)

// defaultConverter 默认类型转换器：可直接赋值的原样返回，
// 可转换的（数值宽化、字符串别名等）经 reflect 转换，其余报错
type defaultConverter struct{}

func (defaultConverter) Convert(value any, target reflect.Type) (any, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil, fmt.Errorf("runtime: cannot convert nil to %s", target)
	}
	if rv.Type().AssignableTo(target) {
		return value, nil
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target).Interface(), nil
	}
	return nil, fmt.Errorf("runtime: cannot convert %s to %s", rv.Type(), target)
}
