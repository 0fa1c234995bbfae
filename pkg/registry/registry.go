// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"notice-push/internal/common/errors"
	dispatchnotices "notice-push/internal/workers/push/dispatch-notices"
	tokencleanup "notice-push/internal/workers/push/token-cleanup"
)

const category = "push"

// Activities lists the job types served by the worker manager.
func Activities() []Activity {
	dispatchCfg := dispatchnotices.DefaultConfig()
	cleanupCfg := tokencleanup.DefaultConfig()

	return []Activity{
		{
			ID:           dispatchnotices.TaskType,
			DisplayName:  "Dispatch Notices",
			Description:  "Matches new shelter notices to interest profiles and sends one summary push per user",
			Category:     category,
			Version:      "1.0.0",
			TaskType:     dispatchnotices.TaskType,
			InputSchema:  dispatchnotices.GetInputSchema(),
			OutputSchema: dispatchnotices.GetOutputSchema(),
			ErrorCodes: codes(
				errors.ErrCodeValidation,
				errors.ErrCodeStore,
				errors.ErrCodeNoticeSource,
				errors.ErrCodeTokenExchange,
				errors.ErrCodeInvalidCredential,
				errors.ErrCodeDispatchLocked,
			),
			Timeout: dispatchCfg.Timeout.String(),
			Retries: errors.GetRetryCount(errors.ErrCodeStore),
			Tags:    []string{"fcm", "notices"},
		},
		{
			ID:           tokencleanup.TaskType,
			DisplayName:  "Token Cleanup",
			Description:  "Prunes stale or provider-rejected push subscriptions",
			Category:     category,
			Version:      "1.0.0",
			TaskType:     tokencleanup.TaskType,
			InputSchema:  tokencleanup.GetInputSchema(),
			OutputSchema: tokencleanup.GetOutputSchema(),
			ErrorCodes:   codes(errors.ErrCodeValidation, errors.ErrCodeStore),
			Timeout:      cleanupCfg.Timeout.String(),
			Retries:      errors.GetRetryCount(errors.ErrCodeStore),
			Tags:         []string{"maintenance"},
		},
	}
}

func codes(cs ...errors.ErrorCode) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Build returns the registry for the current code.
func Build(version string, now time.Time) *ActivityRegistry {
	return &ActivityRegistry{
		Version:     version,
		LastUpdated: now.UTC().Format(time.RFC3339),
		Activities:  Activities(),
	}
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

func Save(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Validate checks required fields and duplicate ids.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if activity.InputSchema.Type == "" {
			return fmt.Errorf("activity %s missing required field: InputSchema", activity.ID)
		}
	}
	return nil
}

// Drift lists the differences between a stored registry and the one the
// code would produce. Timestamps and registry versions are ignored.
func Drift(stored, current *ActivityRegistry) []string {
	have := make(map[string]Activity, len(stored.Activities))
	for _, a := range stored.Activities {
		have[a.ID] = a
	}

	var drift []string
	for _, want := range current.Activities {
		got, ok := have[want.ID]
		if !ok {
			drift = append(drift, fmt.Sprintf("%s: missing", want.ID))
			continue
		}
		delete(have, want.ID)

		if got.TaskType != want.TaskType {
			drift = append(drift, fmt.Sprintf("%s: taskType %q, expected %q", want.ID, got.TaskType, want.TaskType))
		}
		if !reflect.DeepEqual(normalize(got.InputSchema), normalize(want.InputSchema)) {
			drift = append(drift, fmt.Sprintf("%s: input schema changed", want.ID))
		}
		if !reflect.DeepEqual(normalize(got.OutputSchema), normalize(want.OutputSchema)) {
			drift = append(drift, fmt.Sprintf("%s: output schema changed", want.ID))
		}
	}
	for id := range have {
		drift = append(drift, fmt.Sprintf("%s: not served by this build", id))
	}
	sort.Strings(drift)
	return drift
}

// normalize round-trips a schema through JSON so numeric and nil-slice
// differences from decoding do not count as drift.
func normalize(schema interface{}) interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out interface{}
	_ = json.Unmarshal(data, &out)
	return out
}
