package bot

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/aquapure/waterbot/core/config"
	coredatabase "github.com/aquapure/waterbot/core/database"
	"github.com/aquapure/waterbot/internal/service"
	"github.com/aquapure/waterbot/internal/slots"
)

// WarehouseConfig is the dispatch point used for delivery fee estimation.
type WarehouseConfig struct {
	Latitude  float64 `yaml:"latitude" envconfig:"WAREHOUSE_LAT"`
	Longitude float64 `yaml:"longitude" envconfig:"WAREHOUSE_LON"`
}

// FeesConfig overrides the delivery fee schedule, in minor currency units.
type FeesConfig struct {
	Base    int64 `yaml:"base" envconfig:"DELIVERY_FEE_BASE"`
	PerKm   int64 `yaml:"per_km" envconfig:"DELIVERY_FEE_PER_KM"`
	Default int64 `yaml:"default" envconfig:"DELIVERY_FEE_DEFAULT"`
}

// SlotsConfig shapes the rolling window of offered delivery slots.
type SlotsConfig struct {
	LookaheadDays int `yaml:"lookahead_days"`
	DayStartHour  int `yaml:"day_start_hour"`
	DayEndHour    int `yaml:"day_end_hour"`
	SlotHours     int `yaml:"slot_hours"`
	MaxOffered    int `yaml:"max_offered"`
}

// SessionConfig controls conversation expiry.
type SessionConfig struct {
	TTLMinutes          int `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	ReapIntervalMinutes int `yaml:"reap_interval_minutes"`
}

// RenewalConfig controls the subscription sweep.
type RenewalConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" envconfig:"RENEWAL_INTERVAL_MINUTES"`
}

// KafkaConfig enables order event publishing when brokers are set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" envconfig:"KAFKA_TOPIC"`
}

// CardConfig points at the card provider's API base URL. Charges and refunds
// post to /charge and /refund under it.
type CardConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"CARD_GATEWAY_ENDPOINT"`
	APIKey   string `yaml:"api_key" envconfig:"CARD_GATEWAY_API_KEY"`
}

// Config aggregates the shared core configuration with the delivery-business
// settings of this bot.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`

	Warehouse WarehouseConfig `yaml:"warehouse"`
	Fees      FeesConfig      `yaml:"delivery_fees"`
	Slots     SlotsConfig     `yaml:"slots"`
	Session   SessionConfig   `yaml:"session"`
	Renewal   RenewalConfig   `yaml:"renewal"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Card      CardConfig      `yaml:"card_payments"`
}

// CoreConfig exposes the embedded core configuration for the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Core }

// FeeSchedule converts the configured fees, falling back to the defaults for
// zero values.
func (c *Config) FeeSchedule() slots.FeeSchedule {
	f := slots.DefaultFees
	if c.Fees.Base > 0 {
		f.Base = c.Fees.Base
	}
	if c.Fees.PerKm > 0 {
		f.PerKm = c.Fees.PerKm
	}
	if c.Fees.Default > 0 {
		f.Default = c.Fees.Default
	}
	return f
}

// WarehouseCoord returns the dispatch point.
func (c *Config) WarehouseCoord() slots.Coord {
	return slots.Coord{Lat: c.Warehouse.Latitude, Lon: c.Warehouse.Longitude}
}

// SlotWindow converts the configured window, falling back to the defaults for
// zero values.
func (c *Config) SlotWindow() service.SlotWindow {
	w := service.DefaultSlotWindow
	if c.Slots.LookaheadDays > 0 {
		w.LookaheadDays = c.Slots.LookaheadDays
	}
	if c.Slots.DayStartHour > 0 {
		w.DayStartHour = c.Slots.DayStartHour
	}
	if c.Slots.DayEndHour > 0 {
		w.DayEndHour = c.Slots.DayEndHour
	}
	if c.Slots.SlotHours > 0 {
		w.SlotHours = c.Slots.SlotHours
	}
	if c.Slots.MaxOffered > 0 {
		w.MaxOffered = c.Slots.MaxOffered
	}
	return w
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return err
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}

	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 30
	}
	if cfg.Session.ReapIntervalMinutes <= 0 {
		cfg.Session.ReapIntervalMinutes = 5
	}
	if cfg.Renewal.IntervalMinutes <= 0 {
		cfg.Renewal.IntervalMinutes = 60
	}

	if len(cfg.Kafka.Brokers) > 0 && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
	}

	if cfg.Slots.DayStartHour != 0 && cfg.Slots.DayEndHour != 0 &&
		cfg.Slots.DayStartHour >= cfg.Slots.DayEndHour {
		return fmt.Errorf("slots.day_start_hour must be before slots.day_end_hour")
	}
	return nil
}
