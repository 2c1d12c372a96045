package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProductionLogger implements ComponentAwareLogger on top of zap.
// JSON output in production, colored console output in development.
// Context variants attach trace_id/span_id when a span is active.
type ProductionLogger struct {
	zl        *zap.Logger
	service   string
	component string
}

// NewProductionLogger builds a logger from the logging section of cfg.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) (*ProductionLogger, error) {
	var zcfg zap.Config
	if dev.Enabled || strings.EqualFold(logging.Format, "text") {
		zcfg = zap.NewDevelopmentConfig()
		if dev.PrettyLogs {
			zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}

	level, err := zapcore.ParseLevel(logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logging.Level, ErrInvalidConfiguration)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := zcfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewZapLogger(zl, serviceName), nil
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(zl *zap.Logger, serviceName string) *ProductionLogger {
	if serviceName != "" {
		zl = zl.With(zap.String("service", serviceName))
	}
	return &ProductionLogger{zl: zl, service: serviceName}
}

// WithComponent returns a child logger tagged with component.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		zl:        p.zl.With(zap.String("component", component)),
		service:   p.service,
		component: component,
	}
}

// Sync flushes buffered entries.
func (p *ProductionLogger) Sync() error {
	return p.zl.Sync()
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.log(context.Background(), zapcore.InfoLevel, msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.log(context.Background(), zapcore.ErrorLevel, msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.log(context.Background(), zapcore.WarnLevel, msg, fields)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.log(context.Background(), zapcore.DebugLevel, msg, fields)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (p *ProductionLogger) log(ctx context.Context, level zapcore.Level, msg string, fields map[string]interface{}) {
	ce := p.zl.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(toZapFields(ctx, fields)...)
}

// toZapFields converts the map form used across the codebase into zap
// fields, sorted by key so output is stable.
func toZapFields(ctx context.Context, fields map[string]interface{}) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+2)
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			out = append(out,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return out
}
