package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port       int `mapstructure:"port"`       // gin API
		HealthPort int `mapstructure:"healthPort"` // health + metrics
	} `mapstructure:"server"`
	NATS struct {
		Enabled      bool          `mapstructure:"enabled"`
		URL          string        `mapstructure:"url"`
		Stream       string        `mapstructure:"stream"`
		Consumer     string        `mapstructure:"consumer"` // durable name
		QueueGroup   string        `mapstructure:"group"`
		SubjectList  []string      `mapstructure:"subjectList"`
		MaxAgeDays   int64         `mapstructure:"maxAgeDays"`
		MaxDeliver   int           `mapstructure:"maxDeliver"`
		NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"`
		NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Workspace struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"workspace"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

// NotifierConfig holds configuration for the notification dispatch pool and
// the outbound SMS channel.
type NotifierConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
	Twilio     struct {
		AccountSID string `mapstructure:"accountSID"`
		AuthToken  string `mapstructure:"authToken"`
		FromNumber string `mapstructure:"fromNumber"`
	} `mapstructure:"twilio"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.healthPort", 8081)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("database.postgresAutoMigrate", true)

	// NATS ingestion defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.stream", "workspace_events")
	v.SetDefault("nats.consumer", "automation_engine")
	v.SetDefault("nats.group", "automation_engine_group")
	v.SetDefault("nats.subjectList", []string{"v1.bookings.created", "v1.contacts.created"})
	v.SetDefault("nats.maxAgeDays", 7)
	v.SetDefault("nats.maxDeliver", 5)
	v.SetDefault("nats.nakBaseDelay", time.Second)
	v.SetDefault("nats.nakMaxDelay", 30*time.Second)

	// Notifier defaults
	v.SetDefault("notifier.poolSize", 4)
	v.SetDefault("notifier.queueSize", 1000)
	v.SetDefault("notifier.expiryTime", time.Minute)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/opsdeck-automation-engine")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
		v.Set("nats.enabled", true)
	}
	if workspace := os.Getenv("WORKSPACE_ID"); workspace != "" {
		v.Set("workspace.id", workspace)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
