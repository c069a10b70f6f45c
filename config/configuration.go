package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Configuration 分层配置的只读视图
// Value 方法同时满足运行时的表达式取值源契约，配置键可直接被
// `value:"${...}"` 标记引用
type Configuration interface {
	// Get 读取字符串值，不存在返回空串
	Get(key string) string
	// GetWithDefault 读取字符串值，不存在返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 读取整数值
	GetInt(key string) (int, error)
	// GetBool 读取布尔值
	GetBool(key string) (bool, error)
	// GetDuration 读取时长值（"5s" 形式）
	GetDuration(key string) (time.Duration, error)
	// Value 读取原始值与是否存在
	Value(key string) (any, bool)
	// Section 返回子配置节
	Section(key string) Configuration
	// Bind 将配置节绑定到结构体
	Bind(key string, target any) error
	// All 返回全部配置的副本
	All() map[string]any
}

// pathCache 路径片段解析缓存，支持 ":" 与 "." 两种分隔符
var pathCache sync.Map // string -> []string

func pathSegments(path string) []string {
	if v, ok := pathCache.Load(path); ok {
		return v.([]string)
	}
	parts := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	pathCache.Store(path, parts)
	return parts
}

// configuration 基于原子快照的配置实现：读取无锁，重载整体替换
type configuration struct {
	snapshot atomic.Value // map[string]any
}

func newConfiguration(data map[string]any) *configuration {
	c := &configuration{}
	c.snapshot.Store(data)
	return c
}

func (c *configuration) data() map[string]any {
	return c.snapshot.Load().(map[string]any)
}

func (c *configuration) lookup(key string) any {
	if key == "" {
		return c.data()
	}

	var current any = c.data()
	for _, part := range pathSegments(key) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func (c *configuration) Get(key string) string {
	v := c.lookup(key)
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (c *configuration) GetInt(key string) (int, error) {
	v := c.lookup(key)
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("config: key %s not found", key)
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("config: cannot convert %v to int", v)
	}
}

func (c *configuration) GetBool(key string) (bool, error) {
	v := c.lookup(key)
	switch t := v.(type) {
	case nil:
		return false, fmt.Errorf("config: key %s not found", key)
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	default:
		return false, fmt.Errorf("config: cannot convert %v to bool", v)
	}
}

func (c *configuration) GetDuration(key string) (time.Duration, error) {
	v := c.lookup(key)
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("config: key %s not found", key)
	case string:
		return time.ParseDuration(t)
	case int:
		return time.Duration(t) * time.Second, nil
	default:
		return 0, fmt.Errorf("config: cannot convert %v to duration", v)
	}
}

func (c *configuration) Value(key string) (any, bool) {
	v := c.lookup(key)
	return v, v != nil
}

func (c *configuration) Section(key string) Configuration {
	if m, ok := c.lookup(key).(map[string]any); ok {
		return newConfiguration(m)
	}
	return newConfiguration(map[string]any{})
}

// Bind 通过 JSON 序列化往返把配置节绑定到结构体
func (c *configuration) Bind(key string, target any) error {
	var data any
	if key == "" {
		data = c.data()
	} else {
		data = c.lookup(key)
	}
	if data == nil {
		return fmt.Errorf("config: key %s not found", key)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("config: marshal section %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: bind section %s: %w", key, err)
	}
	return nil
}

func (c *configuration) All() map[string]any {
	out := map[string]any{}
	merge(out, c.data())
	return out
}

// merge 深合并：同键的嵌套 map 递归合并，其余后者覆盖前者
func merge(dst, src map[string]any) {
	for k, v := range src {
		if dm, ok := dst[k].(map[string]any); ok {
			if sm, ok := v.(map[string]any); ok {
				merge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

// Load 绑定指定节到结构体 T 的泛型辅助
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}
