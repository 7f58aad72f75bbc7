// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Widget        WidgetConfig        `mapstructure:"widget"`
	Session       SessionConfig       `mapstructure:"session"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// BackendConfig 存储问答后端服务的配置。
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ResponsePath   string `mapstructure:"response_path"`
	CategoryPath   string `mapstructure:"category_path"`
	HistoryPath    string `mapstructure:"history_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout 返回后端请求的传输层超时。
func (c BackendConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WidgetConfig 存储聊天组件展示相关的配置。
type WidgetConfig struct {
	AssistantName  string `mapstructure:"assistant_name"`
	WelcomeMessage string `mapstructure:"welcome_message"`
	LogoURL        string `mapstructure:"logo_url"`
	PageSize       int    `mapstructure:"page_size"`
}

// SessionConfig 存储会话句柄（JWT Cookie）相关的配置。
type SessionConfig struct {
	CookieName  string `mapstructure:"cookie_name"`
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
	TTLHours    int    `mapstructure:"ttl_hours"`
}

// AdminConfig 存储管理接口的 Basic Auth 配置，密码为 bcrypt 哈希。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// setDefaults 设置未在配置文件中出现的默认值。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("backend.response_path", "/get-response")
	v.SetDefault("backend.category_path", "/set-category")
	v.SetDefault("backend.history_path", "/get-chat-history")
	v.SetDefault("backend.timeout_seconds", 120)
	v.SetDefault("widget.assistant_name", "JIA")
	v.SetDefault("widget.welcome_message", "Hi! Welcome to JMB Group, I am JIA - JMB Intelligent Assistant. How can I help you today?")
	v.SetDefault("widget.logo_url", "/static/image/logo.svg")
	v.SetDefault("widget.page_size", 10)
	v.SetDefault("session.cookie_name", "widget_session")
	v.SetDefault("session.expire_hours", 24)
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("kafka.group_id", "chat-widget-archiver")
}

// Load 从指定路径读取 YAML 配置，并允许 WIDGET_ 前缀的环境变量覆盖。
func Load(configPath string) (*viper.Viper, Config, error) {
	// .env 文件是可选的，仅用于本地开发时注入环境变量
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WIDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return nil, cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return v, cfg, nil
}

// Init 初始化配置加载，解析到 Conf 变量中。
func Init(configPath string) *viper.Viper {
	v, cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
	return v
}

// Watch 监听配置文件变化，变化后重新解析并回调（目前用于热更新日志级别）。
func Watch(v *viper.Viper, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		Conf = cfg
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
