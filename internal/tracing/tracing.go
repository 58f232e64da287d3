// 包 tracing：OpenTelemetry TracerProvider 初始化（stdout 或 OTLP/HTTP 导出）
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ShutdownFunc 刷新并关闭导出器
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// 文档注释：安装全局 TracerProvider
// 背景：exporter 为 none 时保持 otel 默认的空实现，不产生任何开销；stdout 便于本地排查，otlp 端点读取 OTEL_EXPORTER_OTLP_* 标准变量。
// 约束：w 仅用于 stdout 导出，为空时写标准输出。
func Setup(ctx context.Context, exporter, service, version string, w io.Writer) (ShutdownFunc, error) {
	var exp sdktrace.SpanExporter
	var err error
	switch strings.ToLower(strings.TrimSpace(exporter)) {
	case "", ExporterNone:
		return noop, nil
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		exp, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", exporter, err)
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(service),
		semconv.ServiceVersion(version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
