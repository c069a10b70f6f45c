package injection

import (
	"reflect"
	"sync"
)

// MetadataCache 类型元数据缓存
// 读路径走 sync.Map 无锁命中；未命中或过期时在互斥锁下双重检查后重建，
// 保证同一键的并发构建只发生一次
type MetadataCache struct {
	builder *Builder

	mu    sync.Mutex
	cache sync.Map // key -> *Metadata
}

// NewMetadataCache 创建元数据缓存
func NewMetadataCache(builder *Builder) *MetadataCache {
	return &MetadataCache{builder: builder}
}

// cacheKey 缓存键：优先实例名，匿名实例退化为类型标识
func cacheKey(name string, t reflect.Type) string {
	if name != "" {
		return name
	}
	return t.String()
}

// Find 查找或构建类型的注入元数据
// 同名条目换了类型时视为过期：旧元数据的点级缓存一并清空后重建
func (c *MetadataCache) Find(name string, t reflect.Type) *Metadata {
	key := cacheKey(name, t)

	if v, ok := c.cache.Load(key); ok {
		md := v.(*Metadata)
		if !md.NeedsRefresh(t) {
			return md
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Load(key); ok {
		md := v.(*Metadata)
		if !md.NeedsRefresh(t) {
			return md
		}
		md.Clear()
	}

	md := c.builder.Build(t)
	c.cache.Store(key, md)
	return md
}

// Invalidate 逐出条目并清空其点级缓存
// 定义被移除或重注册时调用，防止陈旧捷径指向已销毁的依赖
func (c *MetadataCache) Invalidate(name string, t reflect.Type) {
	key := cacheKey(name, t)
	if v, ok := c.cache.LoadAndDelete(key); ok {
		v.(*Metadata).Clear()
	}
}

// Reset 清空整个缓存
func (c *MetadataCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Range(func(key, v any) bool {
		v.(*Metadata).Clear()
		c.cache.Delete(key)
		return true
	})
}
