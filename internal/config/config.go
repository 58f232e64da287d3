// 包 config：进程配置（.env → YAML 文件 → 环境变量，后者覆盖前者）
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// envPrefix：带前缀的变量优先，如 GAZETTEER_ADDR；未设置时读取无前缀的 ADDR
const envPrefix = "gazetteer"

type Config struct {
	Addr      string `yaml:"addr"      envconfig:"ADDR"`
	APIBase   string `yaml:"apiBase"   envconfig:"API_BASE"`
	LogLevel  string `yaml:"logLevel"  envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"logFormat" envconfig:"LOG_FORMAT"`

	DBDriver       string `yaml:"dbDriver"       envconfig:"DB_DRIVER"`
	SQLitePath     string `yaml:"sqlitePath"     envconfig:"SQLITE_PATH"`
	PGHost         string `yaml:"pgHost"         envconfig:"PG_HOST"`
	PGPort         string `yaml:"pgPort"         envconfig:"PG_PORT"`
	PGUser         string `yaml:"pgUser"         envconfig:"PG_USER"`
	PGPassword     string `yaml:"pgPassword"     envconfig:"PG_PASSWORD"`
	PGDB           string `yaml:"pgDb"           envconfig:"PG_DB"`
	PGSSLMode      string `yaml:"pgSslMode"      envconfig:"PG_SSLMODE"`
	PGMaxOpenConns int    `yaml:"pgMaxOpenConns" envconfig:"PG_MAX_OPEN_CONNS"`
	PGMaxIdleConns int    `yaml:"pgMaxIdleConns" envconfig:"PG_MAX_IDLE_CONNS"`
	SearchIndex    bool   `yaml:"searchIndex"    envconfig:"SEARCH_INDEX"`

	RedisEnabled bool          `yaml:"redisEnabled" envconfig:"REDIS_ENABLED"`
	RedisHost    string        `yaml:"redisHost"    envconfig:"REDIS_HOST"`
	RedisPort    string        `yaml:"redisPort"    envconfig:"REDIS_PORT"`
	RedisPass    string        `yaml:"redisPass"    envconfig:"REDIS_PASS"`
	RedisDB      int           `yaml:"redisDb"      envconfig:"REDIS_DB"`
	CacheLRUSize int           `yaml:"cacheLruSize" envconfig:"CACHE_LRU_SIZE"`
	CacheTTL     time.Duration `yaml:"cacheTtl"     envconfig:"CACHE_TTL"`

	RateLimitEnabled bool `yaml:"rateLimitEnabled" envconfig:"RATE_LIMIT_ENABLED"`
	RateLimitQPS     int  `yaml:"rateLimitQps"     envconfig:"RATE_LIMIT_QPS"`

	TLSEnable   bool   `yaml:"tlsEnable"   envconfig:"TLS_ENABLE"`
	TLSCertPath string `yaml:"tlsCertPath" envconfig:"TLS_CERT_PATH"`
	TLSKeyPath  string `yaml:"tlsKeyPath"  envconfig:"TLS_KEY_PATH"`

	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" envconfig:"READ_HEADER_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"      envconfig:"WRITE_TIMEOUT"`
	SiblingsLimit     int           `yaml:"siblingsLimit"     envconfig:"SIBLINGS_LIMIT"`

	// TracingExporter：none | stdout | otlp（otlp 端点取 OTEL_EXPORTER_OTLP_* 标准变量）
	TracingExporter string `yaml:"tracingExporter" envconfig:"TRACING_EXPORTER"`
}

func Default() *Config {
	return &Config{
		Addr:              ":8080",
		APIBase:           "/api",
		LogLevel:          "info",
		LogFormat:         "text",
		DBDriver:          DriverSQLite,
		SQLitePath:        "gazetteer.db",
		PGHost:            "localhost",
		PGPort:            "5432",
		PGUser:            "postgres",
		PGDB:              "gazetteer",
		PGSSLMode:         "disable",
		PGMaxOpenConns:    50,
		PGMaxIdleConns:    25,
		SearchIndex:       true,
		RedisHost:         "127.0.0.1",
		RedisPort:         "6379",
		CacheLRUSize:      4096,
		CacheTTL:          10 * time.Minute,
		RateLimitQPS:      200,
		TLSCertPath:       "certs/server.crt",
		TLSKeyPath:        "certs/server.key",
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		SiblingsLimit:     10,
		TracingExporter:   "none",
	}
}

// 文档注释：加载配置
// 背景：先读取 .env（缺失忽略），再合并 YAML（path 为空时取 CONFIG_FILE），最后由环境变量覆盖。
// 约束：YAML 文件显式指定但不存在视为错误；未知驱动与非法数值在此处拒绝。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q (must be postgres or sqlite)", c.DBDriver)
	}
	if c.DBDriver == DriverSQLite && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for the sqlite driver")
	}
	if c.SiblingsLimit < 1 {
		return fmt.Errorf("invalid SIBLINGS_LIMIT %d", c.SiblingsLimit)
	}
	if c.RateLimitEnabled && c.RateLimitQPS < 1 {
		return fmt.Errorf("invalid RATE_LIMIT_QPS %d", c.RateLimitQPS)
	}
	c.APIBase = "/" + strings.Trim(c.APIBase, "/")
	if c.APIBase == "/" {
		c.APIBase = ""
	}
	return nil
}

// PostgresDSN 由分项配置拼接连接串；用户名与密码经 URL 转义，可含 @ : / 等字符
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(c.PGUser),
		Host:     net.JoinHostPort(c.PGHost, c.PGPort),
		Path:     "/" + c.PGDB,
		RawQuery: url.Values{"sslmode": {c.PGSSLMode}}.Encode(),
	}
	if c.PGPassword != "" {
		u.User = url.UserPassword(c.PGUser, c.PGPassword)
	}
	return u.String()
}

func (c *Config) RedisAddr() string { return c.RedisHost + ":" + c.RedisPort }
