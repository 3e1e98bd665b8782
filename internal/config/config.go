// Package config loads lotledger settings.
//
// Precedence, lowest first: built-in defaults, the YAML config file, a .env
// file, LOTLEDGER_* environment variables, then command-line flags (applied
// by the CLI after Load returns).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // timezones resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Drivers understood by backend.Open.
const (
	DriverSQLite    = "sqlite"
	DriverMySQL     = "mysql"
	DriverRedis     = "redis"
	DriverFirestore = "firestore"
)

// Config is the full lotledger configuration.
type Config struct {
	// Driver selects the document store backend.
	Driver string `yaml:"driver"`

	// DB is the SQLite file path or the MySQL DSN.
	DB string `yaml:"db"`

	Redis     RedisConfig     `yaml:"redis"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Sensor    SensorConfig    `yaml:"sensor"`

	// Timezone is the IANA location used to bucket events by hour of day.
	Timezone string `yaml:"timezone"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type FirestoreConfig struct {
	Project        string `yaml:"project"`
	ServiceAccount string `yaml:"service_account"`
}

// LedgerConfig holds occupancy transaction settings.
type LedgerConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	Source      string  `yaml:"source"`
	Confidence  float64 `yaml:"confidence"`
}

// SensorConfig configures the gate sensor queue consumer.
type SensorConfig struct {
	QueueURL    string `yaml:"queue_url"`
	Region      string `yaml:"region"`
	Workers     int    `yaml:"workers"`
	MaxMessages int32  `yaml:"max_messages"`
	WaitSeconds int32  `yaml:"wait_seconds"`
}

// Default returns the built-in configuration: a local SQLite file and the
// manual provenance used by the CLI.
func Default() *Config {
	return &Config{
		Driver: DriverSQLite,
		DB:     "lotledger.db",
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "lotledger:",
		},
		Ledger: LedgerConfig{
			MaxAttempts: 5,
			Source:      "manual",
			Confidence:  1.0,
		},
		Sensor: SensorConfig{
			Region:      "us-east-1",
			Workers:     4,
			MaxMessages: 10,
			WaitSeconds: 20,
		},
		Timezone: "America/Chicago",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), envFile (skipped when missing) and the environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Driver, "LOTLEDGER_DRIVER")
	setString(&c.DB, "LOTLEDGER_DB")
	setString(&c.Redis.Addr, "LOTLEDGER_REDIS_ADDR")
	setString(&c.Redis.Password, "LOTLEDGER_REDIS_PASSWORD")
	setString(&c.Redis.Prefix, "LOTLEDGER_REDIS_PREFIX")
	setString(&c.Firestore.Project, "LOTLEDGER_PROJECT")
	setString(&c.Firestore.ServiceAccount, "LOTLEDGER_SERVICE_ACCOUNT")
	setString(&c.Ledger.Source, "LOTLEDGER_SOURCE")
	setString(&c.Sensor.QueueURL, "SQS_EVENT_QUEUE_URL")
	setString(&c.Sensor.QueueURL, "LOTLEDGER_SQS_QUEUE_URL")
	setString(&c.Sensor.Region, "AWS_REGION")
	setString(&c.Timezone, "LOTLEDGER_TIMEZONE")

	if v, ok := os.LookupEnv("LOTLEDGER_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOTLEDGER_REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	if v, ok := os.LookupEnv("LOTLEDGER_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOTLEDGER_MAX_ATTEMPTS: %w", err)
		}
		c.Ledger.MaxAttempts = n
	}
	if v, ok := os.LookupEnv("LOTLEDGER_CONFIDENCE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LOTLEDGER_CONFIDENCE: %w", err)
		}
		c.Ledger.Confidence = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks the settings needed to open a store and run the ledger.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverMySQL:
		if c.DB == "" {
			return fmt.Errorf("driver %s requires db", c.Driver)
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("driver redis requires redis.addr")
		}
	case DriverFirestore:
	default:
		return fmt.Errorf("unknown driver %q (want sqlite, mysql, redis or firestore)", c.Driver)
	}

	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1, got %d", c.Ledger.MaxAttempts)
	}
	if c.Ledger.Source == "" {
		return errors.New("ledger.source must not be empty")
	}
	if c.Ledger.Confidence < 0 || c.Ledger.Confidence > 1 {
		return fmt.Errorf("ledger.confidence must be within [0, 1], got %g", c.Ledger.Confidence)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
