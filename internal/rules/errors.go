package rules

import "fmt"

// ConfigError 代表规则文件中的一处配置错误，始终指明出错的字段
// 规则加载失败发生在任何帧处理开始之前
type ConfigError struct {
	Field  string // 出错字段，例如 limits[0x123] 或 actions.drop
	Reason string // 人类可读的失败原因
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("rules: %s: %s", e.Field, e.Reason)
}

// newConfigError 创建新的配置错误实例
func newConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}
