package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ServesBothTaskTypes(t *testing.T) {
	reg := Build("1.0.0", time.Date(2026, 2, 23, 9, 0, 0, 0, time.FixedZone("KST", 9*3600)))

	require.NoError(t, reg.Validate())
	assert.Equal(t, "2026-02-23T00:00:00Z", reg.LastUpdated)

	var taskTypes []string
	for _, a := range reg.Activities {
		taskTypes = append(taskTypes, a.TaskType)
		assert.Equal(t, "object", a.InputSchema.Type)
		assert.Contains(t, a.ErrorCodes, "STORE_ERROR")
	}
	assert.Equal(t, []string{"notice-dispatch", "token-cleanup"}, taskTypes)
}

func TestValidate(t *testing.T) {
	valid := Activities()[0]

	tests := []struct {
		name   string
		reg    ActivityRegistry
		errMsg string
	}{
		{"empty", ActivityRegistry{}, "no activities"},
		{"duplicate", ActivityRegistry{Activities: []Activity{valid, valid}}, "duplicate activity ID"},
		{"missing task type", ActivityRegistry{Activities: []Activity{{ID: "x", DisplayName: "X"}}}, "missing required field: TaskType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveLoadAndDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "activity-registry.json")
	current := Build("1.0.0", time.Now())

	require.NoError(t, Save(current, path))
	stored, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Empty(t, Drift(stored, current))

	stored.Activities[0].InputSchema.Required = []string{"dry_run"}
	stored.Activities = append(stored.Activities[:1], Activity{ID: "legacy-task", TaskType: "legacy-task"})

	assert.Equal(t, []string{
		"legacy-task: not served by this build",
		"notice-dispatch: input schema changed",
		"token-cleanup: missing",
	}, Drift(stored, current))
}
