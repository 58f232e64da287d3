// 包 logger：统一初始化与获取日志器，避免各模块重复配置；级别与格式由配置决定
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// 默认日志器：进程级复用
var defaultLogger *slog.Logger

// Options 日志配置；Output 为空时写标准错误
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// ParseLevel：未识别的级别回退到 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup：按配置初始化默认日志器并设为 slog 默认
// 约束：format 仅识别 json，其余一律文本输出
func Setup(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(o.Level)}
	var h slog.Handler
	if strings.EqualFold(o.Format, "json") {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	defaultLogger = slog.New(h)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// Discard 丢弃全部输出，测试用
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// L：获取默认日志器；未初始化时按环境变量兜底
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup(Options{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})
	}
	return defaultLogger
}
