package injection

import (
	"reflect"
	"sync"
)

// MemberSet 已被某个配置机制认领的成员集合，跨实例共享
// 同一成员只允许被认领一次，避免字段被注入两遍
type MemberSet struct {
	members sync.Map // member key -> struct{}
}

// Claim 认领成员。首次认领返回 true，已被认领返回 false
func (s *MemberSet) Claim(m *Member) bool {
	_, loaded := s.members.LoadOrStore(m.Key(), struct{}{})
	return !loaded
}

// Contains 成员是否已被认领
func (s *MemberSet) Contains(m *Member) bool {
	_, ok := s.members.Load(m.Key())
	return ok
}

// Metadata 一个目标类型的全部注入点，构建一次后跨该类型的所有实例复用
// 自身不可变；可变状态（捷径、跳过备忘）都在点级
type Metadata struct {
	targetType reflect.Type
	points     []*InjectionPoint

	mu      sync.Mutex
	checked []*InjectionPoint // CheckMembers 过滤后的有效点集
	claimed bool
}

// EmptyMetadata 零注入点类型共享的空元数据，避免为无点类型反复分配
// 永不过期：空元数据对任何类型都成立
var EmptyMetadata = &Metadata{}

func newMetadata(targetType reflect.Type, points []*InjectionPoint) *Metadata {
	if len(points) == 0 {
		return EmptyMetadata
	}
	return &Metadata{targetType: targetType, points: points}
}

// TargetType 返回元数据所属的目标类型
func (md *Metadata) TargetType() reflect.Type { return md.targetType }

// Points 返回发现的注入点（按外层优先、声明顺序排列）
func (md *Metadata) Points() []*InjectionPoint { return md.points }

// NeedsRefresh 缓存条目是否已过期：目标类型与请求类型不一致即过期
// 同名条目换了类型（动态重定义）时必须重建，否则索引路径会错位
func (md *Metadata) NeedsRefresh(t reflect.Type) bool {
	if md == EmptyMetadata {
		return false
	}
	return md.targetType != t
}

// CheckMembers 向共享成员集认领各点引用的成员
// 已被其他机制认领的成员从有效点集中剔除；幂等，重复调用不改变结果
func (md *Metadata) CheckMembers(set *MemberSet) {
	md.mu.Lock()
	defer md.mu.Unlock()
	if md.claimed {
		return
	}

	checked := make([]*InjectionPoint, 0, len(md.points))
	for _, p := range md.points {
		if set.Claim(p.Member()) {
			checked = append(checked, p)
		}
	}
	md.checked = checked
	md.claimed = true
}

// effectivePoints 返回注入时实际遍历的点集：认领后为 checked，否则为全部
func (md *Metadata) effectivePoints() []*InjectionPoint {
	md.mu.Lock()
	defer md.mu.Unlock()
	if md.claimed {
		return md.checked
	}
	return md.points
}

// Clear 清空所有点级缓存（捷径与显式属性跳过备忘）
// 显式属性容器被替换或条目失效时调用
func (md *Metadata) Clear() {
	for _, p := range md.points {
		p.ClearCache()
	}
}
