// Package config loads settings for the backend and the field toolkit from
// an optional yaml file, a .env file and CTA_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/cnsr/cta-inspection/internal/geo"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/recognition"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	API       APIConfig       `mapstructure:"api"`
	Plate     PlateConfig     `mapstructure:"plate_recognizer"`
	Nominatim NominatimConfig `mapstructure:"nominatim"`
	Cache     CacheConfig     `mapstructure:"cache"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Centers   []string        `mapstructure:"centers"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// APIConfig is the backend as seen from the field toolkit.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type PlateConfig struct {
	URL     string   `mapstructure:"url"`
	APIKey  string   `mapstructure:"api_key"`
	Regions []string `mapstructure:"regions"`
}

type NominatimConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	Path string `mapstructure:"path"`
}

type PDFConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	ChromePath string        `mapstructure:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AdminConfig is the account created on first start when no
// administrator exists. Empty values disable it.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. A missing .env or config file is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env file")
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("cta")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cta")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("CTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Centers) == 0 {
		cfg.Centers = append([]string(nil), models.DefaultCenters...)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// IsProduction reports whether cfg targets production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// bindLegacyEnv keeps the unprefixed variable names deployments already set.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("mongo.uri", "CTA_MONGO_URI", "MONGO_URI")
	_ = v.BindEnv("jwt.secret", "CTA_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiry", "CTA_JWT_EXPIRY", "JWT_EXPIRY")
	_ = v.BindEnv("server.port", "CTA_SERVER_PORT", "PORT")
	_ = v.BindEnv("plate_recognizer.api_key", "CTA_PLATE_RECOGNIZER_API_KEY", "PLATE_RECOGNIZER_API_KEY")
	_ = v.BindEnv("admin.email", "CTA_ADMIN_EMAIL")
	_ = v.BindEnv("admin.password", "CTA_ADMIN_PASSWORD")
}

func setDefaults(v *viper.Viper) {
	env := os.Getenv("CTA_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cta")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("jwt.secret", "default-secret-key-change-in-production")
	v.SetDefault("jwt.expiry", 24*time.Hour)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "cta-backend")
	v.SetDefault("mqtt.topic_prefix", "cta/fiches")

	v.SetDefault("rate_limit.rps", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("api.base_url", "http://localhost:3000/api")

	v.SetDefault("plate_recognizer.url", recognition.DefaultEndpoint)
	v.SetDefault("plate_recognizer.api_key", "")
	v.SetDefault("plate_recognizer.regions", []string{})

	v.SetDefault("nominatim.url", geo.DefaultNominatimURL)

	v.SetDefault("cache.path", "cta-cache.db")

	v.SetDefault("pdf.enabled", true)
	v.SetDefault("pdf.chrome_path", "")
	v.SetDefault("pdf.timeout", 30*time.Second)

	v.SetDefault("centers", models.DefaultCenters)

	if env == "production" {
		v.SetDefault("log.level", "info")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
}

// SetupLogging applies the log level and format to the standard logrus
// logger.
func SetupLogging(c LogConfig) {
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
