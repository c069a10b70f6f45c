package injection

import (
	"errors"
	"fmt"
)

var (
	// ErrMarkersFrozen 标记注册表在首次使用后即冻结，禁止再修改
	ErrMarkersFrozen = errors.New("injection: marker registry is frozen after first use")

	// ErrNotAFunction 构造函数必须是 func 类型
	ErrNotAFunction = errors.New("injection: constructor must be a function")

	// ErrNoReturnValue 构造函数必须至少有一个返回值
	ErrNoReturnValue = errors.New("injection: constructor must return at least one value")
)

// ConfigurationError 致命的配置错误，立即上抛，不重试
// 例如：同一类型声明了两个 required 构造函数；严格模式下销毁方法缺失
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "injection: " + e.Message
}

func newConfigurationErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ResolutionError 依赖解析失败（required 缺失或歧义），由 Registry 协作者产生
type ResolutionError struct {
	Message string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return "injection: " + e.Message + ": " + e.Err.Error()
	}
	return "injection: " + e.Message
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// NewResolutionErrorf 创建解析错误（供 Registry 实现方使用）
func NewResolutionErrorf(format string, args ...any) *ResolutionError {
	return &ResolutionError{Message: fmt.Sprintf(format, args...)}
}

// CreationError 实例创建失败，携带失败成员标识与实例名，便于定位
type CreationError struct {
	InstanceName string
	Member       string
	Err          error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("injection: failed to populate instance '%s' at %s: %v",
		e.InstanceName, e.Member, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// NoSuchInstanceError 注册表中不存在指定名称的条目
// 捷径解析命中该错误时静默回退到完整解析（瞬时缓存失效，不上抛）
type NoSuchInstanceError struct {
	Name string
}

func (e *NoSuchInstanceError) Error() string {
	return fmt.Sprintf("injection: no instance named '%s'", e.Name)
}

// isNoSuchInstance 判断错误链中是否为"条目不存在"
func isNoSuchInstance(err error) bool {
	var nse *NoSuchInstanceError
	return errors.As(err, &nse)
}
