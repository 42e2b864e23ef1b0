package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete bot configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Database  DatabaseConfig  `mapstructure:"database"`
	API       APIConfig       `mapstructure:"api"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type BotConfig struct {
	Name            string   `mapstructure:"name"`
	CurrencySymbol  string   `mapstructure:"currency_symbol"`
	AllowedChannels []string `mapstructure:"allowed_channels"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
	// GuildID scopes command registration to one guild; empty registers
	// global commands.
	GuildID              string `mapstructure:"guild_id"`
	RemoveCommandsOnExit bool   `mapstructure:"remove_commands_on_exit"`
}

type DatabaseConfig struct {
	Type              string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath        string `mapstructure:"sqlite_path"`
	SkipTableCreation bool   `mapstructure:"skip_table_creation"`

	// ConnString is derived from the environment by Load.
	ConnString string `mapstructure:"-"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type ConsensusConfig struct {
	RequestTTL time.Duration `mapstructure:"request_ttl"`
}

type NotifyConfig struct {
	Announce bool          `mapstructure:"announce"`
	Webhooks WebhookConfig `mapstructure:"webhooks"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Kafka    KafkaConfig   `mapstructure:"kafka"`
}

type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"`
}

// Load reads the optional config file at path, applies WAGERBOT_* env
// overrides and resolves the Discord token and database connection the same
// way the .env file has always been read.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WAGERBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Discord.Token = token
	}
	if err := setupDatabaseConfig(&cfg.Database); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.name", "WagerBot")
	v.SetDefault("bot.currency_symbol", "$")
	v.SetDefault("bot.allowed_channels", []string{})

	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.remove_commands_on_exit", false)

	v.SetDefault("database.type", "")
	v.SetDefault("database.sqlite_path", "./wagers.db")
	v.SetDefault("database.skip_table_creation", false)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":8080")

	v.SetDefault("consensus.request_ttl", "24h")

	v.SetDefault("notify.announce", true)
	v.SetDefault("notify.webhooks.enabled", true)
	v.SetDefault("notify.webhooks.timeout", "5s")
	v.SetDefault("notify.redis.enabled", false)
	v.SetDefault("notify.redis.addr", "localhost:6379")
	v.SetDefault("notify.redis.channel", "wager_status")
	v.SetDefault("notify.kafka.enabled", false)
	v.SetDefault("notify.kafka.brokers", "localhost:9092")
	v.SetDefault("notify.kafka.topic", "wager_status")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.env", "production")
}

func setupDatabaseConfig(db *DatabaseConfig) error {
	// DB_TYPE from .env overrides the file
	if t := os.Getenv("DB_TYPE"); t != "" {
		db.Type = t
	}
	if db.Type == "" {
		db.Type = "sqlite"
	}
	if os.Getenv("DB_SKIP_TABLE_CREATION") == "true" {
		db.SkipTableCreation = true
	}

	switch db.Type {
	case "postgres":
		conn, err := buildPostgresConnectionString()
		if err != nil {
			return err
		}
		db.ConnString = conn
	case "sqlite":
		if p := os.Getenv("SQLITE_PATH"); p != "" {
			db.SQLitePath = p
		}
		db.ConnString = db.SQLitePath
	default:
		return fmt.Errorf("database.type must be sqlite or postgres, got %q", db.Type)
	}
	return nil
}

func buildPostgresConnectionString() (string, error) {
	// a full DATABASE_URL wins
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return "", errors.New("DB_HOST is required for PostgreSQL, or set DATABASE_URL")
	}

	port := 5432
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", fmt.Errorf("invalid DB_PORT %q: %w", portStr, err)
		}
		port = p
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		return "", errors.New("DB_USER is required for PostgreSQL")
	}
	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		return "", errors.New("DB_PASSWORD is required for PostgreSQL")
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "postgres"
	}
	sslmode := os.Getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "require"
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode), nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return errors.New("discord token is required (DISCORD_TOKEN)")
	}
	if c.Database.ConnString == "" {
		return errors.New("database connection is not configured")
	}
	if c.Consensus.RequestTTL < time.Minute {
		return errors.New("consensus.request_ttl must be at least 1 minute")
	}
	if c.API.Enabled && c.API.Addr == "" {
		return errors.New("api.addr is required when the api is enabled")
	}
	if c.Notify.Redis.Enabled && (c.Notify.Redis.Addr == "" || c.Notify.Redis.Channel == "") {
		return errors.New("notify.redis.addr and notify.redis.channel are required when redis is enabled")
	}
	if c.Notify.Kafka.Enabled && (c.Notify.Kafka.Brokers == "" || c.Notify.Kafka.Topic == "") {
		return errors.New("notify.kafka.brokers and notify.kafka.topic are required when kafka is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return errors.New("logging.level must be one of: debug, info, warn, error")
	}
	return nil
}

// IsChannelAllowed checks if a channel ID is in the allowed channels list.
// An empty list allows every channel.
func (c *BotConfig) IsChannelAllowed(channelID string) bool {
	if len(c.AllowedChannels) == 0 {
		return true
	}
	for _, id := range c.AllowedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}
