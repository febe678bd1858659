package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"todohabit/internal/notify"
	"todohabit/pkg/config"
)

const (
	RemotePostgres = "postgres"
	RemoteMongo    = "mongo"

	FallbackSQLite = "sqlite"
	FallbackRedis  = "redis"

	SinkLog = "log"
	SinkMQ  = "mq"
)

type RemoteConfig struct {
	Driver     string             `yaml:"driver"`
	DB         config.DBConfig    `yaml:"db"`
	Mongo      config.MongoConfig `yaml:"mongo"`
	Collection string             `yaml:"collection"`
	Timeout    time.Duration      `yaml:"timeout"`
}

type FallbackConfig struct {
	Driver string `yaml:"driver"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Redis config.RedisConfig `yaml:"redis"`
}

type ReminderConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Dedup enables the shared Redis ledger so one reminder fires once
	// across replicas.
	Dedup    bool               `yaml:"dedup"`
	DedupTTL time.Duration      `yaml:"dedup_ttl"`
	Redis    config.RedisConfig `yaml:"redis"`
}

type NotificationsConfig struct {
	Sink       string `yaml:"sink"`
	Permission string `yaml:"permission"`
}

type CalendarConfig struct {
	Location string `yaml:"location"`
}

type Config struct {
	Server        config.ServerConfig  `yaml:"server"`
	Log           config.LogConfig     `yaml:"log"`
	Remote        RemoteConfig         `yaml:"remote"`
	Fallback      FallbackConfig       `yaml:"fallback"`
	MQ            config.MQConfig      `yaml:"mq"`
	JWT           config.JWTConfig     `yaml:"jwt"`
	Reminder      ReminderConfig       `yaml:"reminder"`
	Notifications NotificationsConfig  `yaml:"notifications"`
	Breaker       config.BreakerConfig `yaml:"breaker"`
	Otel          config.OtelConfig    `yaml:"otel"`
	Calendar      CalendarConfig       `yaml:"calendar"`
}

// Load reads config/<env>.yaml over base.yaml, applies env overrides and
// fills defaults. Empty env and dir fall back to CONFIG_ENV and CONFIG_DIR.
func Load(env, dir string) (*Config, error) {
	if env == "" {
		env = config.GetConfigEnv()
	}
	if dir == "" {
		dir = config.GetEnv("CONFIG_DIR", "config")
	}

	cfgMap, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.Remote.DB)
	config.OverrideMongoFromEnv(&cfg.Remote.Mongo)
	config.OverrideRedisFromEnv(&cfg.Fallback.Redis)
	config.OverrideRedisFromEnv(&cfg.Reminder.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	if path := os.Getenv("FALLBACK_SQLITE_PATH"); path != "" {
		cfg.Fallback.SQLite.Path = path
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Remote.Driver == "" {
		c.Remote.Driver = RemotePostgres
	}
	if c.Remote.Collection == "" {
		c.Remote.Collection = "users"
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 5 * time.Second
	}
	if c.Remote.DB.Port == 0 {
		c.Remote.DB.Port = 5432
	}
	if c.Remote.DB.SSLMode == "" {
		c.Remote.DB.SSLMode = "disable"
	}
	if c.Remote.Mongo.Database == "" {
		c.Remote.Mongo.Database = "todohabit"
	}
	if c.Fallback.Driver == "" {
		c.Fallback.Driver = FallbackSQLite
	}
	if c.Fallback.SQLite.Path == "" {
		c.Fallback.SQLite.Path = "todohabit.db"
	}
	if c.Reminder.Interval <= 0 {
		c.Reminder.Interval = 60 * time.Second
	}
	if c.Reminder.DedupTTL <= 0 {
		c.Reminder.DedupTTL = 48 * time.Hour
	}
	if c.Reminder.Redis.Addr == "" {
		c.Reminder.Redis = c.Fallback.Redis
	}
	if c.Notifications.Sink == "" {
		c.Notifications.Sink = SinkLog
	}
	if c.Notifications.Permission == "" {
		c.Notifications.Permission = string(notify.PermissionUndetermined)
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "todohabit"
	}
	if c.Otel.ServiceName == "" {
		c.Otel.ServiceName = "todohabit"
	}
	if c.Calendar.Location == "" {
		c.Calendar.Location = "UTC"
	}
}

// Validate rejects unknown drivers and unusable values.
func (c *Config) Validate() error {
	var errs []string
	switch c.Remote.Driver {
	case RemotePostgres, RemoteMongo:
	default:
		errs = append(errs, fmt.Sprintf("remote.driver %q must be postgres or mongo", c.Remote.Driver))
	}
	switch c.Fallback.Driver {
	case FallbackSQLite, FallbackRedis:
	default:
		errs = append(errs, fmt.Sprintf("fallback.driver %q must be sqlite or redis", c.Fallback.Driver))
	}
	switch c.Notifications.Sink {
	case SinkLog, SinkMQ:
	default:
		errs = append(errs, fmt.Sprintf("notifications.sink %q must be log or mq", c.Notifications.Sink))
	}
	if _, err := notify.ParsePermission(c.Notifications.Permission); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := time.LoadLocation(c.Calendar.Location); err != nil {
		errs = append(errs, fmt.Sprintf("calendar.location: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location is the zone calendar days are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
