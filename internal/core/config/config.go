package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration 缺少或非法的运行配置（启动期致命）
var ErrConfiguration = errors.New("configuration error")

type HTTP struct {
	Host            string
	Port            int
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

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	Audience          string
	AccessTokenTTLMin int
}

type Auth struct {
	RefreshTokenTTLDays int
	BcryptCost          int
	DefaultRole         string
	RequireDefaultRole  bool
	SeedRoles           []string
}

type Redis struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	RoleCacheTTLSec int    `mapstructure:"role_cache_ttl_sec"`
}

type AMQP struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
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

type Config struct {
	App   App
	Log   Log
	JWT   JWT
	Auth  Auth
	DB    DB
	Redis Redis `mapstructure:"redis"`
	AMQP  AMQP  `mapstructure:"amqp"`
}

// AccessTokenTTL 默认 60 分钟
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL 默认 7 天
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenTTLDays) * 24 * time.Hour
}

func (c *Config) RoleCacheTTL() time.Duration {
	return time.Duration(c.Redis.RoleCacheTTLSec) * time.Second
}

// Validate 检查启动必需项，失败返回 ErrConfiguration
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.JWT.Secret) == "" {
		problems = append(problems, "jwt.secret is empty")
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		problems = append(problems, "jwt.accessTokenTTLMin must be > 0")
	}
	if c.Auth.RefreshTokenTTLDays <= 0 {
		problems = append(problems, "auth.refreshTokenTTLDays must be > 0")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		problems = append(problems, "auth.bcryptCost must be within [4,31]")
	}
	if strings.TrimSpace(c.Auth.DefaultRole) == "" {
		problems = append(problems, "auth.defaultRole is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "0.0.0.0")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("jwt.issuer", "atyourdoorstep")
	v.SetDefault("jwt.audience", "atyourdoorstep-clients")
	v.SetDefault("jwt.accesstokenttlmin", 60)
	v.SetDefault("auth.refreshtokenttldays", 7)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("auth.defaultrole", "User")
	v.SetDefault("auth.seedroles", []string{"Admin", "Manager", "User"})
	v.SetDefault("redis.role_cache_ttl_sec", 600)
	v.SetDefault("amqp.queue", "user.registered")
}

// Read 读取配置文件（不做校验，不退出进程）
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
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := c.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	return c
}
