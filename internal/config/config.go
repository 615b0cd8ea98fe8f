// Package config loads and validates harness configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mfields/crawlbench/internal/stats"
)

// Config captures every harness knob loaded via Viper.
type Config struct {
	TargetURL      string   `mapstructure:"target_url"`
	DataDir        string   `mapstructure:"data_dir"`
	ResultsDB      string   `mapstructure:"results_db"`
	CrawlerCommand []string `mapstructure:"crawler_command"`

	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ReportInterval     time.Duration `mapstructure:"report_interval"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"`
	MonitorStopTimeout time.Duration `mapstructure:"monitor_stop_timeout"`

	Postgres PostgresConfig `mapstructure:"postgres"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PostgresConfig holds the client-server backend's connection parameters.
// AdminDatabase is the maintenance database resets connect to for
// drop/create.
type PostgresConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Database      string `mapstructure:"database"`
	AdminDatabase string `mapstructure:"admin_database"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target_url", "https://whiskipedia.com")
	v.SetDefault("data_dir", "data")
	v.SetDefault("results_db", "data/speedtests.db")
	v.SetDefault("crawler_command", []string{"python", "main.py"})

	v.SetDefault("poll_interval", "5s")
	v.SetDefault("report_interval", "60s")
	v.SetDefault("settle_delay", "1s")
	v.SetDefault("monitor_stop_timeout", "1s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.database", "crawler_db")
	v.SetDefault("postgres.admin_database", "postgres")
	v.SetDefault("postgres.user", "sql_crawler")
	v.SetDefault("postgres.password", "bad_password")

	v.SetDefault("logging.development", false)
}

// Validate rejects configurations the harness cannot run with.
func (c Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target_url is required")
	}
	if len(c.CrawlerCommand) == 0 {
		return fmt.Errorf("crawler_command is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.ResultsDB == "" {
		return fmt.Errorf("results_db is required")
	}
	if c.PollInterval <= 0 || c.ReportInterval <= 0 {
		return fmt.Errorf("poll_interval and report_interval must be positive")
	}
	return nil
}

// PostgresStats returns the connection parameters for reading the
// crawler's database.
func (c Config) PostgresStats() stats.PostgresConfig {
	return stats.PostgresConfig{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		Database: c.Postgres.Database,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
	}
}

// PostgresAdmin returns the connection parameters for the maintenance
// database used by state resets.
func (c Config) PostgresAdmin() stats.PostgresConfig {
	return stats.PostgresConfig{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		Database: c.Postgres.AdminDatabase,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
	}
}
