// Package config provides configuration management for the Stratovisor balancer.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ControlPlane ControlPlaneConfig `mapstructure:"controlplane"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Etcd         EtcdConfig         `mapstructure:"etcd"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Balancer     BalancerConfig     `mapstructure:"balancer"`
	DPM          DPMConfig          `mapstructure:"dpm"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ControlPlaneConfig holds the hypervisor control-plane connection settings.
type ControlPlaneConfig struct {
	// Provider selects the collaborator implementation: "vsphere" or "static".
	Provider   string `mapstructure:"provider"`
	Host       string `mapstructure:"host"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Datacenter string `mapstructure:"datacenter"`
	Cluster    string `mapstructure:"cluster"`
	Insecure   bool   `mapstructure:"insecure"`
}

// DatabaseConfig holds PostgreSQL configuration for the rule store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// EtcdConfig holds etcd configuration for leader election.
type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// RedisConfig holds Redis configuration for the plan cache.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Address returns the Redis address string.
func (c RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BalancerConfig holds relocation-planner configuration.
type BalancerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// AutomationLevel controls what gets executed without approval:
	// "manual" persists recommendations only, "partial" auto-applies
	// high-priority ones, "full" auto-applies everything.
	AutomationLevel string `mapstructure:"automation_level"`
	// Aggressiveness is the 1 (conservative) to 5 (aggressive) dial for
	// trigger and improvement thresholds.
	Aggressiveness int           `mapstructure:"aggressiveness"`
	Interval       time.Duration `mapstructure:"interval"`
	// Cooldown is the minimum wait between the end of one pass and the
	// start of the next. Passes never overlap.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// RetainHistory is how long applied/rejected recommendations are kept.
	RetainHistory time.Duration `mapstructure:"retain_history"`
}

// DPMConfig holds power-management configuration.
type DPMConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TargetUtilization is the aggregate utilization percentage DPM steers
	// the powered-on host pool toward.
	TargetUtilization float64 `mapstructure:"target_utilization"`
	// MinimumHosts is the powered-on host floor; DPM never recommends
	// powering off below it.
	MinimumHosts int           `mapstructure:"minimum_hosts"`
	Interval     time.Duration `mapstructure:"interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("STRATOVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Control plane
	v.SetDefault("controlplane.provider", "vsphere")
	v.SetDefault("controlplane.insecure", false)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "stratovisor")
	v.SetDefault("database.user", "stratovisor")
	v.SetDefault("database.password", "stratovisor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// etcd
	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.dial_timeout", "5s")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Balancer
	v.SetDefault("balancer.enabled", true)
	v.SetDefault("balancer.automation_level", "manual")
	v.SetDefault("balancer.aggressiveness", 3)
	v.SetDefault("balancer.interval", "5m")
	v.SetDefault("balancer.cooldown", "1m")
	v.SetDefault("balancer.retain_history", "24h")

	// DPM
	v.SetDefault("dpm.enabled", false)
	v.SetDefault("dpm.target_utilization", 60)
	v.SetDefault("dpm.minimum_hosts", 2)
	v.SetDefault("dpm.interval", "10m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
