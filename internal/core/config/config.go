package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	BasePath        string
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Rotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate Rotate
}

type JWT struct {
	Secret             string
	RefreshSecret      string
	Issuer             string
	AccessTokenTTLMin  int
	RefreshTokenTTLMin int
}

type Redis struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	ListTTLSec int    `mapstructure:"listTTLSec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Storage selects where uploaded images and avatars live.
type Storage struct {
	Type      string // local | s3
	BasePath  string
	BaseURL   string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type Upload struct {
	MaxBodyMB  int
	MaxImages  int
	MaxImageMB int // 单张图片上限
}

// Password mirrors password.Policy so it can be tuned per environment.
type Password struct {
	MinLength      int
	MaxLength      int // 字节数；bcrypt 只接受 72 字节以内
	RequireLetter  bool
	RequireDigit   bool
	RequireSymbol  bool
	RejectNumeric  bool
	RejectCommon   bool
	RejectUsername bool
}

type Limits struct {
	RPS         float64
	Burst       int
	Concurrency int64
	TimeoutSec  int
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Storage  Storage
	Upload   Upload
	Password Password
	Limits   Limits
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTLMin) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTokenTTLMin) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Limits.TimeoutSec) * time.Second
}

func (c *Config) ListCacheTTL() time.Duration {
	return time.Duration(c.Redis.ListTTLSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gear-market")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.basePath", "/api")
	v.SetDefault("app.http.readTimeoutSec", 10)
	v.SetDefault("app.http.writeTimeoutSec", 30)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.rotate.enable", false)
	v.SetDefault("log.rotate.filename", "logs/gear-market.log")
	v.SetDefault("log.rotate.maxSizeMB", 100)
	v.SetDefault("log.rotate.maxBackups", 7)
	v.SetDefault("log.rotate.maxAgeDays", 30)

	v.SetDefault("jwt.issuer", "gear-market")
	v.SetDefault("jwt.accessTokenTTLMin", 60)
	v.SetDefault("jwt.refreshTokenTTLMin", 24*60)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxOpenConns", 50)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.listTTLSec", 30)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.basePath", "./media")
	v.SetDefault("storage.baseURL", "/media")

	v.SetDefault("upload.maxBodyMB", 32)
	v.SetDefault("upload.maxImages", 10)
	v.SetDefault("upload.maxImageMB", 10)

	v.SetDefault("password.minLength", 8)
	v.SetDefault("password.maxLength", 72)
	v.SetDefault("password.requireLetter", true)
	v.SetDefault("password.requireDigit", true)
	v.SetDefault("password.requireSymbol", false)
	v.SetDefault("password.rejectNumeric", true)
	v.SetDefault("password.rejectCommon", true)
	v.SetDefault("password.rejectUsername", true)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.concurrency", 300)
	v.SetDefault("limits.timeoutSec", 15)
}

// Load reads the YAML file at path (or $CONFIG_PATH, or the local default) and
// overlays APP_* environment variables. It exits the process on failure.
func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return c
}

func Read(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
