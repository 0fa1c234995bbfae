// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Store         StoreConfig             `mapstructure:"store"`
	FCM           FCMConfig               `mapstructure:"fcm"`
	Dispatch      DispatchConfig          `mapstructure:"dispatch"`
	Cleanup       CleanupConfig           `mapstructure:"cleanup"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// CamundaConfig is optional: an empty broker address disables the job workers.
type CamundaConfig struct {
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	MaxConnections int `mapstructure:"max_connections"`
	MaxIdle        int `mapstructure:"max_idle"`
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	URL         string   `mapstructure:"url"`
	NoticeIndex string   `mapstructure:"notice_index"`
	PageSize    int      `mapstructure:"page_size"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether a notice index is reachable through configuration.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig describes the relational store and its credentials.
type StoreConfig struct {
	URL            string `mapstructure:"url"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
	JWTSecret      string `mapstructure:"jwt_secret"`
}

// FCMConfig holds the push provider project and service-account credential.
type FCMConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
	Endpoint           string `mapstructure:"endpoint"`
	TokenTimeout       int    `mapstructure:"token_timeout"` // milliseconds
	SendTimeout        int    `mapstructure:"send_timeout"`  // milliseconds
}

type DispatchConfig struct {
	Workers       int    `mapstructure:"workers"`
	MaxErrors     int    `mapstructure:"max_errors"`
	LockTTL       int    `mapstructure:"lock_ttl"` // milliseconds
	Timeout       int    `mapstructure:"timeout"`  // milliseconds
	CheckpointKey string `mapstructure:"checkpoint_key"`
}

type CleanupConfig struct {
	StaleBeforeDays int `mapstructure:"stale_before_days"`
	Timeout         int `mapstructure:"timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig configures operator alerts.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
