package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env               string `yaml:"env" env:"APP_ENV" env-default:"development"`
	DatabaseConfig    `yaml:"database"`
	RedisConfig       `yaml:"redis"`
	SessionConfig     `yaml:"session"`
	Server            `yaml:"server"`
	RateLimiterConfig `yaml:"rate_limiter"`
	UploadConfig      `yaml:"uploads"`
	OutboundConfig    `yaml:"outbound"`
	RedirectConfig    `yaml:"redirect"`
	LoggerConfig      `yaml:"logger"`
}

// IsProduction reports whether cookies must be Secure and logs JSON.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

type Server struct {
	Port           int           `yaml:"port" env:"SERVER_PORT" env-default:"5000"`
	Host           string        `yaml:"host" env:"SERVER_HOST" env-default:"localhost"`
	Timeout        time.Duration `yaml:"timeout" env:"SERVER_TIMEOUT" env-default:"15s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS" env-separator:"," env-default:"https://yourdomain.com"`
	TemplatesDir   string        `yaml:"templates_dir" env:"SERVER_TEMPLATES_DIR"`
	TrustProxy     bool          `yaml:"trust_proxy" env:"SERVER_TRUST_PROXY" env-default:"false"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Limit is one fixed-window rate limit.
type Limit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type RateLimiterConfig struct {
	Global Limit `yaml:"global"`
	Auth   Limit `yaml:"auth"`
	Upload Limit `yaml:"upload"`
}

type SessionConfig struct {
	Secret     string        `yaml:"secret" env:"SESSION_SECRET"`
	TTL        time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"48h"`
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"sessionID"`
}

type UploadConfig struct {
	Dir           string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	MaxImageBytes int64  `yaml:"max_image_bytes" env:"UPLOAD_MAX_IMAGE_BYTES" env-default:"2097152"`
	MaxXMLBytes   int64  `yaml:"max_xml_bytes" env:"UPLOAD_MAX_XML_BYTES" env-default:"1048576"`
	MaxJSONBytes  string `yaml:"max_json_body" env:"UPLOAD_MAX_JSON_BODY" env-default:"50K"`
}

type OutboundConfig struct {
	Timeout         time.Duration `yaml:"timeout" env:"OUTBOUND_TIMEOUT" env-default:"3s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"OUTBOUND_MAX_BODY_BYTES" env-default:"20480"`
	StatusURL       string        `yaml:"status_url" env:"OUTBOUND_STATUS_URL" env-default:"https://letmegooglethat.com/"`
	StatusBodyBytes int64         `yaml:"status_body_bytes" env:"OUTBOUND_STATUS_BODY_BYTES" env-default:"10240"`
}

type RedirectConfig struct {
	AllowedHosts []string `yaml:"allowed_hosts" env:"REDIRECT_ALLOWED_HOSTS" env-separator:"," env-default:"www.budweiser.com,www.heineken.com,www.coronausa.com"`
}

type LoggerConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// DatabaseConfig selects the gorm dialect. "sqlite" is meant for local runs
// and tests, "postgres" for everything else.
type DatabaseConfig struct {
	Driver     string `yaml:"driver" env:"DATABASE_DIALECT" env-default:"sqlite"`
	Host       string `yaml:"host" env:"DATABASE_HOST" env-default:"localhost"`
	Port       int    `yaml:"port" env:"DATABASE_PORT" env-default:"5432"`
	Username   string `yaml:"username" env:"DATABASE_USERNAME" env-default:"postgres"`
	Password   string `yaml:"password" env:"DATABASE_PASSWORD" env-default:"postgres"`
	Name       string `yaml:"name" env:"DATABASE" env-default:"beershop"`
	SSLMode    string `yaml:"sslmode" env:"DATABASE_SSLMODE" env-default:"disable"`
	SQLitePath string `yaml:"sqlite_path" env:"DATABASE_STORAGE" env-default:"db/db.sqlite"`
}

func (cfg *DatabaseConfig) DSN() string {
	if cfg.Driver == "sqlite" {
		return "file:" + cfg.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return "postgres://" +
		cfg.Username + ":" +
		cfg.Password + "@" +
		cfg.Host + ":" +
		strconv.Itoa(cfg.Port) + "/" +
		cfg.Name + "?sslmode=" + cfg.SSLMode
}

// -------------Get Config Path from Flag or Env --------------
var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the config file")
}

func fetchConfigPath() string {
	var res string

	if !flag.Parsed() {
		flag.Parse()
	}

	res = configPath

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		panic("config path is not provided")
	}

	return res
}

func LoadConfig() Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}
	return LoadConfigFromPath(path)
}

func LoadConfigFromPath(path string) Config {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic(err)
	}
	if err := cfg.finalize(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) finalize() error {
	if c.SessionConfig.Secret == "" {
		if c.IsProduction() {
			return errMissingSecret
		}
		c.SessionConfig.Secret = devSecret()
	}
	c.RateLimiterConfig.Global = withDefault(c.RateLimiterConfig.Global, Limit{Max: 100, Window: 15 * time.Minute})
	c.RateLimiterConfig.Auth = withDefault(c.RateLimiterConfig.Auth, Limit{Max: 5, Window: time.Minute})
	c.RateLimiterConfig.Upload = withDefault(c.RateLimiterConfig.Upload, Limit{Max: 5, Window: time.Minute})
	return nil
}

func withDefault(l, def Limit) Limit {
	if l.Max <= 0 {
		l.Max = def.Max
	}
	if l.Window <= 0 {
		l.Window = def.Window
	}
	return l
}

type configError string

func (e configError) Error() string { return string(e) }

const errMissingSecret = configError("session.secret is required in production")

// devSecret is only ever used outside production; CSRF tokens signed with
// it do not survive a restart.
func devSecret() string {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
