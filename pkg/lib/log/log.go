// Package log 提供 chainnet 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件返回懒加载 logger。
//
// 环境变量：
//   - CHAINNET_LOG_LEVEL: debug / info / warn / error（默认 info）
//   - CHAINNET_LOG_FORMAT: text / json（默认 text）
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// 环境变量名
const (
	EnvLogLevel  = "CHAINNET_LOG_LEVEL"
	EnvLogFormat = "CHAINNET_LOG_FORMAT"
)

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// Default 返回默认 logger
func Default() *slog.Logger {
	return slog.Default()
}

// New 创建文本格式 logger
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSON 创建 JSON 格式的 logger
func NewJSON(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetOutputWithLevel 同时设置日志输出目标和级别
//
// 示例：
//
//	file, _ := os.OpenFile("node.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutputWithLevel(file, slog.LevelDebug, false)
func SetOutputWithLevel(w io.Writer, level slog.Level, json bool) {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		slog.SetDefault(NewJSON(w, opts))
		return
	}
	slog.SetDefault(New(w, opts))
}

// ParseLevel 解析日志级别字符串，无法识别时返回 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var logger = log.Logger("core/session")
//	logger.Info("会话已建立", "peer", peerID.ShortString())
type LazyLogger struct {
	component string
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.base().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.base().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.base().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.base().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
//
// 用于避免在日志中直接使用 id[:8] 导致 slice bounds out of range。
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

// ============================================================================
//                              初始化
// ============================================================================

func init() {
	level := ParseLevel(os.Getenv(EnvLogLevel))
	json := strings.EqualFold(os.Getenv(EnvLogFormat), "json")
	SetOutputWithLevel(os.Stderr, level, json)
}
