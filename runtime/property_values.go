package runtime

import "sync"

// PropertyValues 组件的显式属性集，实现 injection.ExplicitValues
// 注入流程认领过的属性被标记为已处理，供外部配置机制区分剩余属性
type PropertyValues struct {
	mu        sync.Mutex
	values    map[string]any
	processed map[string]bool
}

// NewPropertyValues 创建空属性集
func NewPropertyValues() *PropertyValues {
	return &PropertyValues{
		values:    map[string]any{},
		processed: map[string]bool{},
	}
}

// Add 设置属性值
func (pv *PropertyValues) Add(name string, value any) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	pv.values[name] = value
}

// Get 读取属性值
func (pv *PropertyValues) Get(name string) (any, bool) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	v, ok := pv.values[name]
	return v, ok
}

// Contains 属性是否已显式提供
func (pv *PropertyValues) Contains(name string) bool {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	_, ok := pv.values[name]
	return ok
}

// MarkProcessed 标记属性已被注入流程认领
func (pv *PropertyValues) MarkProcessed(name string) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	pv.processed[name] = true
}

// Processed 属性是否已被认领
func (pv *PropertyValues) Processed(name string) bool {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	return pv.processed[name]
}

// Len 属性个数
func (pv *PropertyValues) Len() int {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	return len(pv.values)
}

// Clear 清空属性与认领标记；关联元数据的点级跳过备忘由调用方一并清理
func (pv *PropertyValues) Clear() {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	pv.values = map[string]any{}
	pv.processed = map[string]bool{}
}
