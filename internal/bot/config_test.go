package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquapure/waterbot/internal/service"
	"github.com/aquapure/waterbot/internal/slots"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Core.Telegram.Token = "test-token"
	cfg.Database.Host = "localhost"
	cfg.Database.Name = "waterbot"
	return cfg
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "longpoll", cfg.Core.Telegram.RunMode)
	assert.Equal(t, 30, cfg.Session.TTLMinutes)
	assert.Equal(t, 5, cfg.Session.ReapIntervalMinutes)
	assert.Equal(t, 60, cfg.Renewal.IntervalMinutes)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Session.TTLMinutes = 10
	cfg.Renewal.IntervalMinutes = 15
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, 10, cfg.Session.TTLMinutes)
	assert.Equal(t, 15, cfg.Renewal.IntervalMinutes)
}

func TestNormalizeRequiresDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	require.ErrorContains(t, Normalize(cfg), "database.host")

	cfg = validConfig()
	cfg.Database.Name = ""
	require.ErrorContains(t, Normalize(cfg), "database.name")
}

func TestNormalizeRequiresKafkaTopicWithBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	require.ErrorContains(t, Normalize(cfg), "kafka.topic")

	cfg.Kafka.Topic = "waterbot.orders"
	require.NoError(t, Normalize(cfg))
}

func TestNormalizeRejectsInvertedSlotWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Slots.DayStartHour = 18
	cfg.Slots.DayEndHour = 9
	require.ErrorContains(t, Normalize(cfg), "day_start_hour")
}

func TestFeeScheduleFallsBackToDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, slots.DefaultFees, cfg.FeeSchedule())

	cfg.Fees.Base = 7000
	f := cfg.FeeSchedule()
	assert.Equal(t, int64(7000), f.Base)
	assert.Equal(t, slots.DefaultFees.PerKm, f.PerKm)
}

func TestSlotWindowFallsBackToDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, service.DefaultSlotWindow, cfg.SlotWindow())

	cfg.Slots.LookaheadDays = 3
	w := cfg.SlotWindow()
	assert.Equal(t, 3, w.LookaheadDays)
	assert.Equal(t, service.DefaultSlotWindow.SlotHours, w.SlotHours)
}
