package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source 配置源：加载一棵嵌套键值树
type Source interface {
	Load() (map[string]any, error)
	Name() string
}

// Builder 配置构建器，按添加顺序加载配置源，后者覆盖前者
type Builder struct {
	sources []Source
}

// NewBuilder 创建配置构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// Add 添加配置源
func (b *Builder) Add(source Source) *Builder {
	b.sources = append(b.sources, source)
	return b
}

// AddYamlFile 添加 YAML 文件配置源
func (b *Builder) AddYamlFile(path string, optional ...bool) *Builder {
	return b.Add(&fileSource{path: path, optional: len(optional) > 0 && optional[0], yaml: true})
}

// AddJsonFile 添加 JSON 文件配置源
func (b *Builder) AddJsonFile(path string, optional ...bool) *Builder {
	return b.Add(&fileSource{path: path, optional: len(optional) > 0 && optional[0]})
}

// AddEnvironment 添加环境变量配置源，prefix 为空时导入全部变量
func (b *Builder) AddEnvironment(prefix string) *Builder {
	return b.Add(&envSource{prefix: prefix})
}

// AddMap 添加内存配置源
func (b *Builder) AddMap(data map[string]any) *Builder {
	return b.Add(&mapSource{data: data})
}

// Build 加载全部配置源并合并
func (b *Builder) Build() (Configuration, error) {
	data := map[string]any{}
	for _, source := range b.sources {
		loaded, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("config: load source %s: %w", source.Name(), err)
		}
		merge(data, loaded)
	}
	return newConfiguration(data), nil
}

// fileSource YAML/JSON 文件配置源
type fileSource struct {
	path     string
	optional bool
	yaml     bool
}

func (s *fileSource) Name() string {
	if s.yaml {
		return fmt.Sprintf("YamlFile(%s)", s.path)
	}
	return fmt.Sprintf("JsonFile(%s)", s.path)
}

func (s *fileSource) Load() (map[string]any, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if s.optional && os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	result := map[string]any{}
	if s.yaml {
		err = yaml.Unmarshal(raw, &result)
	} else {
		err = json.Unmarshal(raw, &result)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return result, nil
}

// envSource 环境变量配置源：前缀剥除、小写化、下划线转层级
type envSource struct {
	prefix string
}

func (s *envSource) Name() string {
	return fmt.Sprintf("Environment(%s)", s.prefix)
}

func (s *envSource) Load() (map[string]any, error) {
	result := map[string]any{}
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if s.prefix != "" {
			if !strings.HasPrefix(key, s.prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.prefix)
		}
		key = strings.ReplaceAll(strings.ToLower(key), "_", ":")
		setNested(result, key, value)
	}
	return result, nil
}

// mapSource 内存配置源
type mapSource struct {
	data map[string]any
}

func (s *mapSource) Name() string { return "Map" }

func (s *mapSource) Load() (map[string]any, error) {
	result := map[string]any{}
	merge(result, s.data)
	return result, nil
}

// setNested 沿 ":" 分隔的路径写入嵌套值，字符串值做基本类型探测
func setNested(data map[string]any, path string, value any) {
	parts := strings.Split(path, ":")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			if _, exists := current[part]; exists {
				return
			}
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}

	if s, ok := value.(string); ok {
		if i, err := strconv.Atoi(s); err == nil {
			value = i
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			value = f
		} else if b, err := strconv.ParseBool(s); err == nil {
			value = b
		}
	}
	current[parts[len(parts)-1]] = value
}
