package tokencleanup

import (
	"context"

	"notice-push/internal/common/logger"
	"notice-push/internal/common/observability"
	"notice-push/internal/models"
)

const (
	ModeStale   = "stale"
	ModeInvalid = "invalid"
)

type Input struct {
	Mode            string   `json:"mode"`
	StaleBeforeDays *int     `json:"stale_before_days,omitempty"`
	InvalidTokens   []string `json:"invalid_tokens,omitempty"`
	UserIDs         []string `json:"user_ids,omitempty"`
	DryRun          *bool    `json:"dry_run,omitempty"`
	IncludeQueued   bool     `json:"include_queued,omitempty"`
}

// IsDryRun defaults to true when the caller did not say otherwise.
func (i *Input) IsDryRun() bool {
	return i.DryRun == nil || *i.DryRun
}

type Output struct {
	Mode            string `json:"mode"`
	DryRun          bool   `json:"dry_run"`
	MatchedCount    int    `json:"matched_count"`
	DeletedCount    int64  `json:"deleted_count"`
	Cutoff          string `json:"cutoff,omitempty"`
	StaleBeforeDays int    `json:"stale_before_days,omitempty"`
	RequestedTokens int    `json:"requested_tokens,omitempty"`
}

type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context, userIDs []string) ([]models.Subscription, error)
	FindSubscriptionsByTokens(ctx context.Context, tokens, userIDs []string) ([]models.Subscription, error)
	DeleteSubscriptions(ctx context.Context, ids []string) (int64, error)
}

type InvalidTokenQueue interface {
	Members(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, tokens ...string) error
}

// ServiceDependencies wires the cleanup collaborators. Queue and
// Observability are optional.
type ServiceDependencies struct {
	Store         SubscriptionStore
	Queue         InvalidTokenQueue
	Observability *observability.Observability
	Logger        logger.Logger
}
