package dispatchnotices

import "notice-push/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	noticeField := func(desc string) validation.Property {
		return validation.Property{Type: "string", Description: desc, MaxLength: validation.IntPtr(64)}
	}

	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"dry_run": {
				Type:        "boolean",
				Description: "Report matched users without writes or sends",
			},
			"notices": {
				Type:        "array",
				Description: "Notices to match instead of querying the notice index",
				MaxItems:    validation.IntPtr(5000),
				Items: &validation.Property{
					Type: "object",
					Properties: map[string]validation.Property{
						"notice_no":     noticeField("Notice number"),
						"desertion_no":  noticeField("Desertion number"),
						"upr_cd":        noticeField("Upper region code"),
						"org_cd":        noticeField("Organization region code"),
						"upkind":        noticeField("Species code"),
						"kind_cd":       noticeField("Raw kind code"),
						"sex_cd":        noticeField("Sex code"),
						"size_category": noticeField("Size category"),
					},
				},
			},
		},
		AdditionalProperties: false,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"matched_users":  {Type: "integer", Description: "Users with at least one matching notice"},
			"queued":         {Type: "integer", Description: "Subscriptions whose delivery rows were written"},
			"dry_run":        {Type: "boolean"},
			"window":         {Type: "object", Description: "Scanned update-date window"},
			"errors_count":   {Type: "integer"},
			"errors":         {Type: "array", Description: "Per-user failures, truncated"},
			"batch_id":       {Type: "string"},
			"sent":           {Type: "integer"},
			"failed":         {Type: "integer"},
			"invalid_tokens": {Type: "integer"},
		},
		AdditionalProperties: false,
	}
}
