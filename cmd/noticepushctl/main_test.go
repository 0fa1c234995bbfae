package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "notice-push/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path   string
	auth   string
	body   map[string]interface{}
	status int
}

func fakeService(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands_Registered(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"dispatch", "cleanup"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
		assert.NotEmpty(t, sub.Short)
		assert.NotEmpty(t, sub.Long)
	}

	cleanup, _, _ := root.Find([]string{"cleanup"})
	for _, flag := range []string{"mode", "days", "token", "user", "apply", "include-queued"} {
		assert.NotNil(t, cleanup.Flags().Lookup(flag), flag)
	}
}

func TestDispatch_DryRun(t *testing.T) {
	srv, captured := fakeService(t, http.StatusOK,
		`{"matched_users":3,"queued":0,"dry_run":true,"window":{"bgupd":"20260221","enupd":"20260223"},"errors_count":0,"batch_id":"b-1","sent":0,"failed":0,"invalid_tokens":0}`)

	out, err := run(t, "dispatch", "--dry-run", "--url", srv.URL, "--key", "svc-key")
	require.NoError(t, err)

	assert.Equal(t, "/dispatch", captured.path)
	assert.Equal(t, "Bearer svc-key", captured.auth)
	assert.Equal(t, true, captured.body["dry_run"])
	assert.NotContains(t, captured.body, "notices")
	assert.Contains(t, out, `"matched_users": 3`)
	assert.Contains(t, out, `"bgupd": "20260221"`)
}

func TestDispatch_NoticesFile(t *testing.T) {
	srv, captured := fakeService(t, http.StatusOK, `{"matched_users":1}`)

	path := filepath.Join(t.TempDir(), "notices.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"notice_no":"N-1","upr_cd":"6110000"}]`), 0o600))

	_, err := run(t, "dispatch", "--notices-file", path, "--url", srv.URL, "--key", "svc-key")
	require.NoError(t, err)

	notices, ok := captured.body["notices"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"notice_no": "N-1", "upr_cd": "6110000"}, notices[0])
}

func TestCleanup_Requests(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "stale defaults to dry run and omits days",
			args: []string{"cleanup", "--mode", "stale"},
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "stale", body["mode"])
				assert.Equal(t, true, body["dry_run"])
				assert.NotContains(t, body, "stale_before_days")
			},
		},
		{
			name: "explicit days",
			args: []string{"cleanup", "--mode", "stale", "--days", "45"},
			check: func(t *testing.T, body map[string]interface{}) {
				assert.EqualValues(t, 45, body["stale_before_days"])
			},
		},
		{
			name: "invalid apply with queued tokens",
			args: []string{"cleanup", "--mode", "invalid", "--token", "t1", "--token", "t2", "--include-queued", "--apply"},
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, []interface{}{"t1", "t2"}, body["invalid_tokens"])
				assert.Equal(t, false, body["dry_run"])
				assert.Equal(t, true, body["include_queued"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := fakeService(t, http.StatusOK, `{"mode":"stale","dry_run":true,"matched_count":2,"deleted_count":0}`)

			_, err := run(t, append(tt.args, "--url", srv.URL, "--key", "svc-key")...)
			require.NoError(t, err)
			assert.Equal(t, "/token-cleanup", captured.path)
			tt.check(t, captured.body)
		})
	}
}

func TestCleanup_YAMLOutput(t *testing.T) {
	srv, _ := fakeService(t, http.StatusOK, `{"mode":"stale","dry_run":true,"matched_count":2,"deleted_count":0}`)

	out, err := run(t, "cleanup", "--mode", "stale", "-o", "yaml", "--url", srv.URL, "--key", "svc-key")
	require.NoError(t, err)
	assert.Contains(t, out, "matched_count: 2")
}

func TestErrorEnvelope(t *testing.T) {
	srv, _ := fakeService(t, http.StatusConflict,
		`{"error":{"code":"DISPATCH_IN_PROGRESS","message":"Another dispatch run is in progress"}}`)

	_, err := run(t, "dispatch", "--url", srv.URL, "--key", "svc-key")
	require.Error(t, err)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apperrors.ErrCodeDispatchLocked, apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
}

func TestMissingKeyAndMode(t *testing.T) {
	t.Setenv("STORE_SERVICE_ROLE_KEY", "")

	_, err := run(t, "dispatch", "--url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service-role key is required")

	_, err = run(t, "cleanup", "--key", "svc-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "mode" not set`)
}

func TestRegistry_ExportThenCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")

	out, err := run(t, "registry", "export", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 activities")

	out, err = run(t, "registry", "check", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "registry up to date")

	require.NoError(t, os.WriteFile(path, []byte(`{"version":"0","activities":[{"id":"old","displayName":"Old","taskType":"old","inputSchema":{"type":"object"}}]}`), 0o600))
	_, err = run(t, "registry", "check", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notice-dispatch: missing")
}
