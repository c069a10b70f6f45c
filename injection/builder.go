package injection

import (
	"reflect"

	"github.com/gocrud/autowire/logging"
)

// Builder 扫描目标类型，发现全部注入点并产出 Metadata
// 扫描是纯函数式的逐层折叠：每一层（类型本身 → 各级值内嵌）独立产出点列表，
// 再按外层优先的顺序拼接，不共享可变累加器
type Builder struct {
	markers *MarkerRegistry
	logger  logging.Logger
}

// NewBuilder 创建元数据构建器
func NewBuilder(markers *MarkerRegistry, logger logging.Logger) *Builder {
	return &Builder{markers: markers, logger: logger}
}

// level 内嵌链上的一层：类型与相对最外层的字段索引前缀
type level struct {
	typ    reflect.Type
	prefix []int
}

// Build 构建类型的注入元数据
// 点的顺序确定：外层点在前、内嵌层点在后，同层按声明顺序；
// 同一方法名只保留最外层的声明（提升语义下最外层覆盖内层）
func (b *Builder) Build(t reflect.Type) *Metadata {
	// 快速预检短路：全类型扫描是 O(成员数 × 层级数)，无标记类型直接返回共享空元数据
	if !b.markers.IsCandidate(t) {
		return EmptyMetadata
	}
	root := normalizeStructType(t)
	if root == nil {
		return EmptyMetadata
	}

	var points []*InjectionPoint
	seenMethods := map[string]bool{}

	queue := []level{{typ: root}}
	for len(queue) > 0 {
		lvl := queue[0]
		queue = queue[1:]

		for i := 0; i < lvl.typ.NumField(); i++ {
			field := lvl.typ.Field(i)
			index := append(append([]int(nil), lvl.prefix...), i)

			marker, payload, found := b.markers.Find(field)
			if !found {
				if embedded := embeddedStructType(field); embedded != nil {
					queue = append(queue, level{typ: embedded, prefix: index})
				}
				continue
			}

			dir := parseDirective(marker, payload)
			if dir.Method != "" {
				if p := b.buildMethodPoint(root, lvl.typ, marker, dir, seenMethods); p != nil {
					points = append(points, p)
				}
				continue
			}

			if field.PkgPath != "" {
				b.logger.Warn("skipping unexported field with injection marker",
					logging.Field{Key: "type", Value: lvl.typ.String()},
					logging.Field{Key: "field", Value: field.Name})
				continue
			}

			member := newFieldMember(root, lvl.typ, field, index)
			points = append(points, newFieldPoint(member, marker, dir))
		}
	}

	return newMetadata(t, points)
}

// buildMethodPoint 解析载体字段声明的方法注入点
// 方法从最外层类型的指针方法集查找：内嵌提升与外层覆盖由方法集天然给出
func (b *Builder) buildMethodPoint(root, owner reflect.Type, marker Marker, dir directive, seen map[string]bool) *InjectionPoint {
	if seen[dir.Method] {
		return nil
	}
	seen[dir.Method] = true

	method, ok := reflect.PointerTo(root).MethodByName(dir.Method)
	if !ok {
		b.logger.Warn("skipping injection marker on missing method",
			logging.Field{Key: "type", Value: owner.String()},
			logging.Field{Key: "method", Value: dir.Method})
		return nil
	}
	if method.Type.NumIn() <= 1 {
		b.logger.Warn("injection marker on method without parameters",
			logging.Field{Key: "type", Value: owner.String()},
			logging.Field{Key: "method", Value: dir.Method})
		return nil
	}

	member := newMethodMember(root, owner, method)
	return newMethodPoint(member, marker, dir)
}
