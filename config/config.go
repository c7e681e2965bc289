package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"127.0.0.1"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"safearrival"`
	DeviceID    string `env:"DEVICE_ID" envDefault:"device-1"`

	// 行程窗口配置
	CheckWindow        time.Duration `env:"CHECK_WINDOW" envDefault:"1m"`
	WarningWindow      time.Duration `env:"WARNING_WINDOW" envDefault:"1m"`
	MaxJourneyDuration time.Duration `env:"MAX_JOURNEY_DURATION" envDefault:"24h"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`

	// 通知调度配置
	NotifyScheduler  string        `env:"NOTIFY_SCHEDULER" envDefault:"timer"` // timer, queue
	NotifySink       string        `env:"NOTIFY_SINK" envDefault:"log"`        // log, webhook
	NotifyWebhookURL string        `env:"NOTIFY_WEBHOOK_URL"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	// SOS 配置
	SOSContactPhone     string        `env:"SOS_CONTACT_PHONE"`
	SOSLocationTimeout  time.Duration `env:"SOS_LOCATION_TIMEOUT" envDefault:"15s"`
	SOSSendTimeout      time.Duration `env:"SOS_SEND_TIMEOUT" envDefault:"20s"`
	LocationProvider    string        `env:"LOCATION_PROVIDER" envDefault:"static"` // static, http
	LocationEndpoint    string        `env:"LOCATION_ENDPOINT" envDefault:"http://127.0.0.1:8899/v1/position"`
	StaticLatitude      float64       `env:"STATIC_LATITUDE"`
	StaticLongitude     float64       `env:"STATIC_LONGITUDE"`
	StaticLocationKnown bool          `env:"STATIC_LOCATION_KNOWN" envDefault:"false"`

	// PostgreSQL 配置，仅在开启历史记录时使用
	HistoryEnabled     bool   `env:"HISTORY_ENABLED" envDefault:"false"`
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"safearrival"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"2"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"5"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"sa"`

	// RabbitMQ 配置，仅 NOTIFY_SCHEDULER=queue 时使用
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// 设备令牌配置
	APIAuthEnabled   bool   `env:"API_AUTH_ENABLED" envDefault:"false"`
	JWTSecret        string `env:"JWT_SECRET"`
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"43200"`
	DeviceTokenPath  string `env:"DEVICE_TOKEN_PATH" envDefault:"./device.token"`

	// 短信网关配置
	// AccessKey 通过阿里云 SDK 的环境变量自动获取：
	// ALIBABA_CLOUD_ACCESS_KEY_ID 和 ALIBABA_CLOUD_ACCESS_KEY_SECRET
	SMSProvider     string `env:"SMS_PROVIDER" envDefault:"mock"` // aliyun, mock
	SMSSignName     string `env:"SMS_SIGN_NAME"`
	SMSTemplateCode string `env:"SMS_TEMPLATE_CODE"`

	// 手机号哈希盐值，用于审计记录
	PhoneHashSalt string `env:"PHONEHASH_SALT"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	for _, w := range Cfg.Validate() {
		log.Printf("WARN: %s", w)
	}
}

// Validate 返回配置中的问题，均为警告，不阻止启动
func (c *Config) Validate() []string {
	var warnings []string

	if c.CheckWindow <= 0 {
		warnings = append(warnings, "CHECK_WINDOW must be positive, falling back to 1m")
		c.CheckWindow = time.Minute
	}
	if c.WarningWindow <= 0 {
		warnings = append(warnings, "WARNING_WINDOW must be positive, falling back to 1m")
		c.WarningWindow = time.Minute
	}
	if c.ReconcileInterval <= 0 {
		warnings = append(warnings, "RECONCILE_INTERVAL must be positive, falling back to 30s")
		c.ReconcileInterval = 30 * time.Second
	}

	if c.SOSContactPhone == "" {
		warnings = append(warnings, "SOS_CONTACT_PHONE is not set, SOS alerts cannot reach anyone")
	}

	if c.APIAuthEnabled && c.JWTSecret == "" {
		warnings = append(warnings, "API_AUTH_ENABLED is set but JWT_SECRET is empty, auth will be disabled")
		c.APIAuthEnabled = false
	}

	if c.SMSProvider == "aliyun" {
		if c.SMSSignName == "" {
			warnings = append(warnings, "SMS_SIGN_NAME is not set, SMS service may not work properly")
		}
		if c.SMSTemplateCode == "" {
			warnings = append(warnings, "SMS_TEMPLATE_CODE is not set, SMS service may not work properly")
		}
	}

	if c.NotifySink == "webhook" && c.NotifyWebhookURL == "" {
		warnings = append(warnings, "NOTIFY_WEBHOOK_URL is not set, falling back to log sink")
		c.NotifySink = "log"
	}

	return warnings
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
