package runtime

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gocrud/autowire/injection"
)

// evalExpression 求值 value 标记的表达式负载
// 语法：`${key}` 或 `${key:default}` 从取值源读取；其余按字面量处理。
// 字面量与字符串取值按成员类型做基本类型解析
func (r *Registry) evalExpression(d *injection.Descriptor) (any, error) {
	expr := d.Expression

	if strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		key := expr[2 : len(expr)-1]
		fallback := ""
		hasFallback := false
		if i := strings.Index(key, ":"); i >= 0 {
			key, fallback, hasFallback = key[:i], key[i+1:], true
		}

		if r.values != nil {
			if v, ok := r.values.Value(key); ok {
				return coerceExpressionValue(v, d)
			}
		}
		if hasFallback {
			return parseLiteral(fallback, d)
		}
		if d.Required {
			return nil, injection.NewResolutionErrorf(
				"no value for expression key '%s' at %s", key, d.Member)
		}
		return nil, nil
	}

	return parseLiteral(expr, d)
}

func coerceExpressionValue(v any, d *injection.Descriptor) (any, error) {
	if s, ok := v.(string); ok && d.Type.Kind() != reflect.String {
		return parseLiteral(s, d)
	}
	return v, nil
}

// parseLiteral 将字符串字面量解析为成员类型的值
func parseLiteral(s string, d *injection.Descriptor) (any, error) {
	target := d.Type

	if target == reflect.TypeOf(time.Duration(0)) {
		v, err := time.ParseDuration(s)
		if err != nil {
			return nil, injection.NewResolutionErrorf("invalid duration '%s' for %s", s, d.Member)
		}
		return v, nil
	}

	switch target.Kind() {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, injection.NewResolutionErrorf("invalid bool '%s' for %s", s, d.Member)
		}
		return v, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, injection.NewResolutionErrorf("invalid integer '%s' for %s", s, d.Member)
		}
		return reflect.ValueOf(v).Convert(target).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, injection.NewResolutionErrorf("invalid unsigned integer '%s' for %s", s, d.Member)
		}
		return reflect.ValueOf(v).Convert(target).Interface(), nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, injection.NewResolutionErrorf("invalid float '%s' for %s", s, d.Member)
		}
		return reflect.ValueOf(v).Convert(target).Interface(), nil
	default:
		return nil, injection.NewResolutionErrorf(
			"cannot parse literal '%s' into %s for %s", s, target, d.Member)
	}
}
