package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey      = "otel:span"
	startTimeKey = "otel:start_time"

	maxStatementLength = 500
)

var (
	// 数据库相关指标，未初始化时不记录
	dbQueriesTotal  metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
)

// InitDatabaseMetrics 初始化数据库指标
func InitDatabaseMetrics(meter metric.Meter) error {
	var err error

	dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
	)
	return err
}

// OTELPlugin 为 GORM 的每次操作创建 Span
type OTELPlugin struct {
	tracer      trace.Tracer
	serviceName string
}

func NewOTELPlugin(serviceName string) *OTELPlugin {
	return &OTELPlugin{
		tracer:      otel.Tracer(serviceName + ".gorm"),
		serviceName: serviceName,
	}
}

// Name 实现 gorm.Plugin 接口
func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

// Initialize 注册回调
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	registrations := []func() error{
		func() error { return cb.Query().Before("gorm:query").Register("otel:before_query", p.before("db.select")) },
		func() error { return cb.Query().After("gorm:query").Register("otel:after_query", p.after) },
		func() error { return cb.Create().Before("gorm:create").Register("otel:before_create", p.before("db.insert")) },
		func() error { return cb.Create().After("gorm:create").Register("otel:after_create", p.after) },
		func() error { return cb.Update().Before("gorm:update").Register("otel:before_update", p.before("db.update")) },
		func() error { return cb.Update().After("gorm:update").Register("otel:after_update", p.after) },
		func() error { return cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("db.delete")) },
		func() error { return cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after) },
		func() error { return cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("db.raw")) },
		func() error { return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after) },
	}

	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func (p *OTELPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				attribute.String("db.operation", operation),
			),
		)
		db.InstanceSet(startTimeKey, time.Now())
		db.InstanceSet(spanKey, span)
		db.Statement.Context = ctx
	}
}

func (p *OTELPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if table := db.Statement.Table; table != "" {
		span.SetAttributes(semconv.DBSQLTable(table))
	}
	span.SetAttributes(
		semconv.DBStatement(truncate(db.Statement.SQL.String())),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	)

	status := "success"
	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		span.SetStatus(codes.Ok, "record not found")
	default:
		status = "error"
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, _ := db.InstanceGet(startTimeKey)
	if startTime, ok := start.(time.Time); ok {
		recordMetrics(db.Statement.Context, db.Statement.Table, status, time.Since(startTime))
	}
}

func recordMetrics(ctx context.Context, table, status string, d time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("db.table", table),
		attribute.String("db.status", status),
	)
	if dbQueriesTotal != nil {
		dbQueriesTotal.Add(ctx, 1, labels)
	}
	if dbQueryDuration != nil {
		dbQueryDuration.Record(ctx, d.Seconds(), labels)
	}
}

// truncate 语句中使用占位符，参数值不会进入 Span
func truncate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if len(stmt) > maxStatementLength {
		return stmt[:maxStatementLength] + "..."
	}
	return stmt
}

// WithOTELPlugin 为 GORM 添加 OpenTelemetry 插件
func WithOTELPlugin(db *gorm.DB, serviceName string) error {
	return db.Use(NewOTELPlugin(serviceName))
}
