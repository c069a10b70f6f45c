package logging

import (
	"sync"
)

// MemoryLoggerProvider 内存日志提供者
// 将日志条目保存在内存中，主要用于测试中断言告警行为
type MemoryLoggerProvider struct {
	entries      []LogEntry
	minimumLevel LogLevel
	mu           sync.Mutex
}

// NewMemoryLoggerProvider 创建内存日志提供者
func NewMemoryLoggerProvider() *MemoryLoggerProvider {
	return &MemoryLoggerProvider{
		minimumLevel: LogLevelTrace,
	}
}

func (p *MemoryLoggerProvider) CreateLogger(category string) Logger {
	return &memoryLogger{provider: p, category: category}
}

func (p *MemoryLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

// Entries 返回已记录条目的副本
func (p *MemoryLoggerProvider) Entries() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LogEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// CountAtLevel 统计指定级别的条目数量
func (p *MemoryLoggerProvider) CountAtLevel(level LogLevel) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset 清空已记录的条目
func (p *MemoryLoggerProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

func (p *MemoryLoggerProvider) append(entry LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry.Level < p.minimumLevel {
		return
	}
	p.entries = append(p.entries, entry)
}

// memoryLogger 内存日志实现
type memoryLogger struct {
	provider *MemoryLoggerProvider
	category string
	fields   []Field
}

func (l *memoryLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *memoryLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *memoryLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *memoryLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *memoryLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

// Fatal 在内存记录器中不退出进程，仅记录（测试场景）
func (l *memoryLogger) Fatal(msg string, fields ...Field) { l.Log(LogLevelFatal, msg, fields...) }

func (l *memoryLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.provider.append(LogEntry{
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   append(l.fields, fields...),
	})
}

func (l *memoryLogger) WithFields(fields ...Field) Logger {
	return &memoryLogger{
		provider: l.provider,
		category: l.category,
		fields:   append(l.fields, fields...),
	}
}

func (l *memoryLogger) WithCategory(category string) Logger {
	return &memoryLogger{
		provider: l.provider,
		category: category,
		fields:   l.fields,
	}
}

// NewMemoryLogger 创建内存 Logger 及其提供者（测试辅助）
func NewMemoryLogger() (Logger, *MemoryLoggerProvider) {
	provider := NewMemoryLoggerProvider()
	return provider.CreateLogger("test"), provider
}
