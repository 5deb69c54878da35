package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[bot]
token = "123:abc"
owner_id = 42
default_timezone = "Europe/Berlin"

[schedule]
morning_at = "08:30"
evening_at = "21:45"

[kafka]
brokers = ["localhost:9092"]
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads file and applies defaults", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		assert.Equal(t, "123:abc", cfg.Bot.Token)
		assert.Equal(t, int64(42), cfg.Bot.OwnerID)
		assert.Equal(t, "Europe/Berlin", cfg.Bot.DefaultTimezone)
		assert.Equal(t, 7, cfg.Bot.TrialDays)
		assert.Equal(t, "jalali", cfg.Bot.Calendar)
		assert.Equal(t, "08:30", cfg.Schedule.MorningAt)
		assert.Equal(t, 60*time.Second, cfg.AutoDelete.DefaultDelay)
		assert.Equal(t, "postgres", cfg.Singleton.Backend)
		assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("GROUPKEEPER_BOT_TOKEN", "999:env")
		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		assert.Equal(t, "999:env", cfg.Bot.Token)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})

	t.Run("missing token fails validation", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "[bot]\nowner_id = 1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bot.token")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Bot:       BotConfig{Token: "t", OwnerID: 1, DefaultTimezone: "UTC"},
			Schedule:  ScheduleConfig{MorningAt: "09:00", EveningAt: "22:00"},
			Singleton: SingletonConfig{Backend: "redis"},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Bot.DefaultTimezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Schedule.EveningAt = "25:99"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Singleton.Backend = "etcd"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Bot.Calendar = "gregorian"
	assert.NoError(t, cfg.Validate())
	cfg.Bot.Calendar = "mayan"
	assert.ErrorContains(t, cfg.Validate(), "bot.calendar")
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("7pm")
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "gk"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=gk sslmode=disable", p.DSN())
}
