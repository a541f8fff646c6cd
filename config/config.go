package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hubgraph/reconcile"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all hubgraph configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP API and housekeeping
type ServerConfig struct {
	Port          string `yaml:"port"`
	SweepSchedule string `yaml:"sweep_schedule"`
	Retention     string `yaml:"retention"`
}

// SourceConfig points at the hub back-end
type SourceConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ReconcileConfig configures every reconciliation loop
type ReconcileConfig struct {
	Target        int    `yaml:"target"`
	Interval      string `yaml:"interval"`
	FetchTimeout  string `yaml:"fetch_timeout"`
	ShrinkPolicy  string `yaml:"shrink_policy"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryBackoff  string `yaml:"retry_backoff"`
}

// KafkaConfig configures the hub session intake consumer. Empty brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// RedisConfig configures the snapshot fan-out sink. Empty addr disables it.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTL       string `yaml:"ttl"`
}

// S3Config configures the final snapshot archive. Empty bucket disables it.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          DefaultPort,
			SweepSchedule: DefaultSweepSchedule,
			Retention:     DefaultRetention.String(),
		},
		Source: SourceConfig{BaseURL: DefaultSourceURL},
		Reconcile: ReconcileConfig{
			Target:       DefaultTarget,
			Interval:     DefaultPollInterval.String(),
			FetchTimeout: DefaultFetchTimeout.String(),
			ShrinkPolicy: DefaultShrinkPolicy,
			RetryBackoff: "500ms",
		},
		Kafka: KafkaConfig{
			Topic:   DefaultKafkaTopic,
			GroupID: DefaultKafkaGroupID,
		},
		Redis: RedisConfig{
			KeyPrefix: DefaultRedisKeyPrefix,
			TTL:       DefaultRedisTTL.String(),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped when path is
// empty or the file does not exist), then .env, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of file values
func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Port, "PORT", "HUBGRAPH_PORT")
	setString(&c.Server.SweepSchedule, "HUBGRAPH_SWEEP_SCHEDULE")
	setString(&c.Server.Retention, "HUBGRAPH_RETENTION")

	setString(&c.Source.BaseURL, "API_URL", "HUBGRAPH_SOURCE_URL")

	setInt(&c.Reconcile.Target, "HUBGRAPH_TARGET")
	setString(&c.Reconcile.Interval, "HUBGRAPH_POLL_INTERVAL")
	setString(&c.Reconcile.FetchTimeout, "HUBGRAPH_FETCH_TIMEOUT")
	setString(&c.Reconcile.ShrinkPolicy, "HUBGRAPH_SHRINK_POLICY")
	setInt(&c.Reconcile.RetryAttempts, "HUBGRAPH_RETRY_ATTEMPTS")
	setString(&c.Reconcile.RetryBackoff, "HUBGRAPH_RETRY_BACKOFF")

	if v := envValue("KAFKA_BOOTSTRAP_SERVERS", "HUBGRAPH_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.Topic, "HUBGRAPH_KAFKA_TOPIC")
	setString(&c.Kafka.GroupID, "HUBGRAPH_KAFKA_GROUP_ID")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASS")
	setInt(&c.Redis.DB, "REDIS_DB")
	setString(&c.Redis.TTL, "HUBGRAPH_REDIS_TTL")

	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Prefix, "S3_PREFIX")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.Profile, "S3_PROFILE")
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		c.S3.UsePathStyle = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	setString(&c.Logging.Level, "HUBGRAPH_LOG_LEVEL")
	if v := os.Getenv("HUBGRAPH_LOG_DEV"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Development = b
		}
	}
}

// Validate rejects configurations the reconciler cannot run with
func (c *Config) Validate() error {
	if c.Reconcile.Target <= 0 {
		return fmt.Errorf("reconcile.target must be positive, got %d", c.Reconcile.Target)
	}
	if c.Reconcile.RetryAttempts < 0 {
		return fmt.Errorf("reconcile.retry_attempts must not be negative, got %d", c.Reconcile.RetryAttempts)
	}
	for name, v := range map[string]string{
		"reconcile.interval":      c.Reconcile.Interval,
		"reconcile.fetch_timeout": c.Reconcile.FetchTimeout,
		"reconcile.retry_backoff": c.Reconcile.RetryBackoff,
		"server.retention":        c.Server.Retention,
		"redis.ttl":               c.Redis.TTL,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, v)
		}
	}
	if _, err := reconcile.ParseShrinkPolicy(c.Reconcile.ShrinkPolicy); err != nil {
		return fmt.Errorf("reconcile.shrink_policy: %w", err)
	}
	if c.Source.BaseURL == "" {
		return errors.New("source.base_url must be set")
	}
	return nil
}

// PollInterval returns the parsed poll interval
func (c *Config) PollInterval() time.Duration {
	return mustDuration(c.Reconcile.Interval, DefaultPollInterval)
}

// FetchTimeout returns the parsed per-poll timeout
func (c *Config) FetchTimeout() time.Duration {
	return mustDuration(c.Reconcile.FetchTimeout, DefaultFetchTimeout)
}

// Retention returns how long finished jobs are kept
func (c *Config) Retention() time.Duration {
	return mustDuration(c.Server.Retention, DefaultRetention)
}

// RedisTTL returns the snapshot key TTL
func (c *Config) RedisTTL() time.Duration {
	return mustDuration(c.Redis.TTL, DefaultRedisTTL)
}

// LoopOptions converts the reconcile section to loop options (sink and logger left unset)
func (c *Config) LoopOptions() reconcile.Options {
	return reconcile.Options{
		Interval:     c.PollInterval(),
		FetchTimeout: c.FetchTimeout(),
		Retry: reconcile.RetryPolicy{
			Attempts: c.Reconcile.RetryAttempts,
			Backoff:  mustDuration(c.Reconcile.RetryBackoff, 500*time.Millisecond),
		},
	}
}

// ShrinkPolicy returns the parsed shrink policy
func (c *Config) ShrinkPolicy() reconcile.ShrinkPolicy {
	p, err := reconcile.ParseShrinkPolicy(c.Reconcile.ShrinkPolicy)
	if err != nil {
		return reconcile.ShrinkAbort
	}
	return p
}

func mustDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// envValue returns the value of the last set variable among keys, so later keys take precedence
func envValue(keys ...string) string {
	val := ""
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			val = v
		}
	}
	return val
}

func setString(dst *string, keys ...string) {
	if v := envValue(keys...); v != "" {
		*dst = v
	}
}

func setInt(dst *int, keys ...string) {
	if v := envValue(keys...); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
