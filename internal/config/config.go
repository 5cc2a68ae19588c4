package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`      // debug, release
	APIToken string `mapstructure:"api_token"` // 为空时不启用认证
}

type DatabaseConfig struct {
	Type       string `mapstructure:"type"` // mysql, sqlite
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"db_name"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN MySQL 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Queue    string `mapstructure:"queue"`
}

// URL AMQP 连接地址
func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", r.User, r.Password, r.Host, r.Port, r.VHost)
}

// ParserConfig APK 解析器配置
type ParserConfig struct {
	UseDecoder  bool     `mapstructure:"use_decoder"`  // 是否尝试 aapt2
	DecoderPath string   `mapstructure:"decoder_path"` // 显式指定 aapt2 路径，为空时自动查找
	SearchDirs  []string `mapstructure:"search_dirs"`  // 额外的 aapt2 搜索目录
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"` // Worker 数量
	QueueSize   int `mapstructure:"queue_size"`  // 任务队列大小
}

// WatcherConfig 投递目录监听配置
type WatcherConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"` // glob, 例如 *.apk

	ScanExisting bool `mapstructure:"scan_existing"` // 启动时投递目录中已有的文件
}

// UploadConfig 上传配置
type UploadConfig struct {
	Dir       string `mapstructure:"dir"`
	MaxSizeMB int64  `mapstructure:"max_size_mb"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Default 无配置文件时使用的默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Database: DatabaseConfig{
			Type:       "sqlite",
			Host:       "localhost",
			Port:       3306,
			DBName:     "apk_inspector",
			SQLitePath: "data/apk_inspector.db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:  "localhost",
			Port:  5672,
			User:  "guest",
			VHost: "",
			Queue: "apk_parse_jobs",
		},
		Parser:  ParserConfig{UseDecoder: true},
		Worker:  WorkerConfig{Concurrency: 2, QueueSize: 100},
		Watcher: WatcherConfig{Dir: "inbox", Pattern: "*.apk"},
		Upload:  UploadConfig{Dir: "uploads", MaxSizeMB: 500},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Namespace: "apk_inspector"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.api_token", d.Server.APIToken)
	v.SetDefault("database.type", d.Database.Type)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.db_name", d.Database.DBName)
	v.SetDefault("database.sqlite_path", d.Database.SQLitePath)
	v.SetDefault("rabbitmq.host", d.RabbitMQ.Host)
	v.SetDefault("rabbitmq.port", d.RabbitMQ.Port)
	v.SetDefault("rabbitmq.user", d.RabbitMQ.User)
	v.SetDefault("rabbitmq.queue", d.RabbitMQ.Queue)
	v.SetDefault("parser.use_decoder", d.Parser.UseDecoder)
	v.SetDefault("worker.concurrency", d.Worker.Concurrency)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
	v.SetDefault("watcher.dir", d.Watcher.Dir)
	v.SetDefault("watcher.pattern", d.Watcher.Pattern)
	v.SetDefault("upload.dir", d.Upload.Dir)
	v.SetDefault("upload.max_size_mb", d.Upload.MaxSizeMB)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖（支持嵌套配置）
	v.AutomaticEnv()

	// RabbitMQ
	v.BindEnv("rabbitmq.host", "RABBITMQ_HOST")
	v.BindEnv("rabbitmq.port", "RABBITMQ_PORT")
	v.BindEnv("rabbitmq.user", "RABBITMQ_USER")
	v.BindEnv("rabbitmq.password", "RABBITMQ_PASS")

	// Database
	v.BindEnv("database.host", "MYSQL_HOST")
	v.BindEnv("database.port", "MYSQL_PORT")
	v.BindEnv("database.user", "MYSQL_USER")
	v.BindEnv("database.password", "MYSQL_PASS")
	v.BindEnv("database.db_name", "MYSQL_DB")

	// Parser
	v.BindEnv("parser.decoder_path", "AAPT2_PATH")

	// Server
	v.BindEnv("server.api_token", "API_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
