package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yeremiapane/table-service/utils"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Serializer SerializerConfig `mapstructure:"serializer"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port       int      `mapstructure:"port"`
	GinMode    string   `mapstructure:"gin_mode"`
	CORSOrigin string   `mapstructure:"cors_origin"`
	RateLimit  float64  `mapstructure:"rate_limit"`
	RateBurst  int      `mapstructure:"rate_burst"`
	Trusted    []string `mapstructure:"trusted_proxies"`
}

// StoreConfig selects the table store. Driver is one of memory, file,
// mysql, sqlite or mongo.
type StoreConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	DSN             string `mapstructure:"dsn"`
	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// RedisConfig enables the cross-instance table lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// SerializerConfig picks how mutations of one table are serialized: mutex
// or actor.
type SerializerConfig struct {
	Kind string `mapstructure:"kind"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.gin_mode", "debug")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1"})

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.path", "tables.json")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_database", "restaurant")
	v.SetDefault("store.mongo_collection", "tables")
	v.SetDefault("store.max_retries", 3)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 10*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "tables.events")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("serializer.kind", "mutex")
	v.SetDefault("log.level", "info")
}

// Load reads configuration from an optional YAML file, a .env file and the
// environment, in increasing precedence. Keys map to environment variables
// by upper-casing and replacing dots, e.g. store.driver -> STORE_DRIVER.
// PORT, GIN_MODE, DB_DSN and JWT_SECRET are also honoured.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.gin_mode", "SERVER_GIN_MODE", "GIN_MODE")
	_ = v.BindEnv("store.dsn", "STORE_DSN", "DB_DSN")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// comma separated lists from the environment arrive as one element
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Server.Trusted = splitList(cfg.Server.Trusted)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWT.Secret == "" {
		utils.ErrorLogger.Warn("JWT_SECRET is not set, falling back to the built-in development key")
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.Server.GinMode == gin.ReleaseMode {
		return fmt.Errorf("jwt secret is required in release mode")
	}
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverSQLite, DriverMongo:
	case DriverMySQL:
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver mysql needs a dsn")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Serializer.Kind {
	case "mutex", "actor":
	default:
		return fmt.Errorf("unknown serializer %q", c.Serializer.Kind)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka is enabled but no brokers are configured")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
