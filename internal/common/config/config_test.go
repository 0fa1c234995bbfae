package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "notice-push/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_URL", "STORE_SERVICE_ROLE_KEY", "STORE_JWT_SECRET",
		"FCM_PROJECT_ID", "FCM_SERVICE_ACCOUNT_JSON", "REDIS_ADDRESS",
		"ELASTICSEARCH_URL", "ZEEBE_ADDRESS", "ALERT_SNS_TOPIC_ARN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile_EnvFallbacksAndDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_URL", "postgres://localhost/notices")
	t.Setenv("STORE_SERVICE_ROLE_KEY", "service-role")
	t.Setenv("FCM_PROJECT_ID", "demo-project")
	t.Setenv("FCM_SERVICE_ACCOUNT_JSON", `{"client_email":"a@b.c","private_key":"k"}`)

	path := writeConfig(t, "app:\n  name: notice-push\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/notices", cfg.Store.URL)
	assert.Equal(t, "service-role", cfg.Store.ServiceRoleKey)
	assert.Equal(t, "demo-project", cfg.FCM.ProjectID)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 20, cfg.Dispatch.MaxErrors)
	assert.Equal(t, 30, cfg.Cleanup.StaleBeforeDays)
	assert.Equal(t, 10*time.Second, GetDuration(cfg.FCM.SendTimeout))
	assert.Equal(t, 10*time.Minute, GetDuration(cfg.Dispatch.LockTTL))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Database.Elasticsearch.Enabled())
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	clearEnv(t)
	t.Setenv("NP_TEST_STORE", "postgres://db/notices")

	path := writeConfig(t, `
store:
  url: ${NP_TEST_STORE}
  service_role_key: key
fcm:
  project_id: p
  service_account_json: "{}"
database:
  elasticsearch:
    addresses: ["http://es:9200"]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/notices", cfg.Store.URL)
	assert.Equal(t, "http://es:9200", cfg.Database.Elasticsearch.GetURL())
	assert.True(t, cfg.Database.Elasticsearch.Enabled())
}

func TestLoadFromFile_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantKey string
	}{
		{
			name:    "store url",
			body:    "store:\n  service_role_key: k\nfcm:\n  project_id: p\n  service_account_json: x\n",
			wantKey: "store.url",
		},
		{
			name:    "service role key",
			body:    "store:\n  url: u\nfcm:\n  project_id: p\n  service_account_json: x\n",
			wantKey: "store.service_role_key",
		},
		{
			name:    "project id",
			body:    "store:\n  url: u\n  service_role_key: k\nfcm:\n  service_account_json: x\n",
			wantKey: "fcm.project_id",
		},
		{
			name:    "service account",
			body:    "store:\n  url: u\n  service_role_key: k\nfcm:\n  project_id: p\n",
			wantKey: "fcm.service_account_json",
		},
		{
			name:    "dispatch timeout longer than run lock",
			body:    "store:\n  url: u\n  service_role_key: k\nfcm:\n  project_id: p\n  service_account_json: x\ndispatch:\n  timeout: 900000\n  lock_ttl: 600000\n",
			wantKey: "dispatch.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)

			var stdErr *apperrors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			assert.Equal(t, apperrors.ErrCodeConfig, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.wantKey)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Camunda: CamundaConfig{MaxJobsActive: 2, Timeout: 5000}}

	wc := GetWorkerConfig(cfg, "notice-dispatch")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 2, wc.MaxJobsActive)
	assert.Equal(t, 5000, wc.Timeout)

	cfg.Workers = map[string]WorkerConfig{"notice-dispatch": {Enabled: false, MaxJobsActive: 1, Timeout: 1}}
	assert.False(t, GetWorkerConfig(cfg, "notice-dispatch").Enabled)
}
