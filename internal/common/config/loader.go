// internal/common/config/loader.go
package config

import (
	"os"
	"path/filepath"
	"strings"

	apperrors "notice-push/internal/common/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml, expands
// ${VAR} placeholders and applies direct environment fallbacks. Missing required
// settings are reported as a CONFIG_ERROR naming the key only.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.NewConfigError("config.yaml: " + err.Error())
		}
	}

	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.NewConfigError(path)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigError("unmarshal")
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// overrideEmptyConfig fills required secrets from their conventional env names
// when the YAML leaves them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Store.URL, "STORE_URL")
	setIfEmpty(&cfg.Store.ServiceRoleKey, "STORE_SERVICE_ROLE_KEY")
	setIfEmpty(&cfg.Store.JWTSecret, "STORE_JWT_SECRET")
	setIfEmpty(&cfg.FCM.ProjectID, "FCM_PROJECT_ID")
	setIfEmpty(&cfg.FCM.ServiceAccountJSON, "FCM_SERVICE_ACCOUNT_JSON")
	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setIfEmpty(&cfg.Database.Elasticsearch.URL, "ELASTICSEARCH_URL")
	setIfEmpty(&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS")
	setIfEmpty(&cfg.Notifications.SNS.TopicARN, "ALERT_SNS_TOPIC_ARN")
	setIfEmpty(&cfg.Notifications.AWS.Region, "AWS_REGION")
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notice-push"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 1
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 300000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.NoticeIndex == "" {
		cfg.Database.Elasticsearch.NoticeIndex = "animal-notices"
	}
	if cfg.Database.Elasticsearch.PageSize == 0 {
		cfg.Database.Elasticsearch.PageSize = 500
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}

	if cfg.FCM.TokenTimeout == 0 {
		cfg.FCM.TokenTimeout = 10000
	}
	if cfg.FCM.SendTimeout == 0 {
		cfg.FCM.SendTimeout = 10000
	}

	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.MaxErrors == 0 {
		cfg.Dispatch.MaxErrors = 20
	}
	if cfg.Dispatch.LockTTL == 0 {
		cfg.Dispatch.LockTTL = 600000
	}
	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = 300000
	}
	if cfg.Dispatch.CheckpointKey == "" {
		cfg.Dispatch.CheckpointKey = "dispatch:last_success_date"
	}

	if cfg.Cleanup.StaleBeforeDays == 0 {
		cfg.Cleanup.StaleBeforeDays = 30
	}
	if cfg.Cleanup.Timeout == 0 {
		cfg.Cleanup.Timeout = 120000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 1
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig checks the settings without which no run can succeed.
func validateConfig(cfg *Config) error {
	required := []struct {
		key   string
		value string
	}{
		{"store.url", cfg.Store.URL},
		{"store.service_role_key", cfg.Store.ServiceRoleKey},
		{"fcm.project_id", cfg.FCM.ProjectID},
		{"fcm.service_account_json", cfg.FCM.ServiceAccountJSON},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.NewConfigError(r.key)
		}
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return apperrors.NewConfigError("notifications.sns.topic_arn")
	}
	// A run must end before its lock can expire under it.
	if cfg.Dispatch.Timeout > cfg.Dispatch.LockTTL {
		return apperrors.NewConfigError("dispatch.timeout")
	}
	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
	}
}
