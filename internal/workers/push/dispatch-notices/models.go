package dispatchnotices

import (
	"context"

	"notice-push/internal/common/aws"
	"notice-push/internal/common/logger"
	"notice-push/internal/common/observability"
	"notice-push/internal/fcm"
	"notice-push/internal/models"
	"notice-push/internal/notice"

	fcmv1 "google.golang.org/api/fcm/v1"
)

type Input struct {
	DryRun  bool            `json:"dry_run"`
	Notices []models.Notice `json:"notices,omitempty"`
}

// UserError is one per-subscriber failure reported back to the caller.
type UserError struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type Output struct {
	MatchedUsers  int               `json:"matched_users"`
	Queued        int               `json:"queued"`
	DryRun        bool              `json:"dry_run"`
	Window        notice.DateWindow `json:"window"`
	ErrorsCount   int               `json:"errors_count"`
	Errors        []UserError       `json:"errors,omitempty"`
	BatchID       string            `json:"batch_id"`
	Sent          int               `json:"sent"`
	Failed        int               `json:"failed"`
	InvalidTokens int               `json:"invalid_tokens"`
}

type SubscriptionStore interface {
	ListOptedInSubscriptions(ctx context.Context) ([]models.Subscription, error)
	ListInterestProfiles(ctx context.Context, userIDs []string) (map[string]models.InterestProfileRow, error)
	UpsertDeliveryLog(ctx context.Context, entry models.DeliveryLogEntry) error
}

type Checkpoint interface {
	LastSuccess(ctx context.Context) (string, error)
	MarkSuccess(ctx context.Context, date string) error
}

type RunLock interface {
	Acquire(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
}

type InvalidTokenQueue interface {
	Add(ctx context.Context, tokens ...string) error
}

type NoticeSource interface {
	Fetch(ctx context.Context, window notice.DateWindow) ([]models.Notice, error)
}

// TokenSource yields the bearer token for one run.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type PushSender interface {
	Send(ctx context.Context, projectID, accessToken string, msg *fcmv1.SendMessageRequest) (*fcm.SendResult, error)
}

type AlertPublisher interface {
	Publish(ctx context.Context, alert aws.RunAlert) error
}

// ServiceDependencies wires the run collaborators. Source, Alerts and
// Observability are optional.
type ServiceDependencies struct {
	Store          SubscriptionStore
	Checkpoint     Checkpoint
	Lock           RunLock
	InvalidTokens  InvalidTokenQueue
	Source         NoticeSource
	NewTokenSource func() TokenSource
	Sender         PushSender
	Alerts         AlertPublisher
	Observability  *observability.Observability
	Logger         logger.Logger
}
