package tokencleanup

import "notice-push/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"mode"},
		Properties: map[string]validation.Property{
			"mode": {
				Type:        "string",
				Description: "Which subscriptions to prune",
				Enum:        []string{ModeStale, ModeInvalid},
			},
			"stale_before_days": {
				Type:        "integer",
				Description: "Inactivity threshold in days; values below 1 are raised to 1",
			},
			"invalid_tokens": {
				Type:        "array",
				Description: "Provider tokens reported invalid",
				MaxItems:    validation.IntPtr(10000),
				Items:       &validation.Property{Type: "string"},
			},
			"user_ids": {
				Type:        "array",
				Description: "Restrict cleanup to these users",
				Items:       &validation.Property{Type: "string"},
			},
			"dry_run": {
				Type:        "boolean",
				Description: "Report without deleting; defaults to true",
			},
			"include_queued": {
				Type:        "boolean",
				Description: "Merge tokens queued by dispatch runs (invalid mode)",
			},
		},
		AdditionalProperties: false,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"mode":              {Type: "string"},
			"dry_run":           {Type: "boolean"},
			"matched_count":     {Type: "integer", Description: "Subscriptions selected for deletion"},
			"deleted_count":     {Type: "integer"},
			"cutoff":            {Type: "string", Description: "RFC 3339 cutoff (stale mode)"},
			"stale_before_days": {Type: "integer", Description: "Threshold applied (stale mode)"},
			"requested_tokens":  {Type: "integer", Description: "Distinct tokens looked up (invalid mode)"},
		},
		AdditionalProperties: false,
	}
}
