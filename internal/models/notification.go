// internal/models/notification.go
package models

import "time"

// CampaignNewAnimalSummary is the only campaign this service sends.
const CampaignNewAnimalSummary = "new_animal_summary"

// DeliveryStatus is the lifecycle state of a delivery-log row.
type DeliveryStatus string

const (
	DeliveryQueued       DeliveryStatus = "queued"
	DeliverySent         DeliveryStatus = "sent"
	DeliveryInvalidToken DeliveryStatus = "invalid_token"
	DeliveryRetryable    DeliveryStatus = "retryable"
	DeliveryFatal        DeliveryStatus = "fatal"
)

// Subscription is a row of notification_subscriptions.
type Subscription struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	FCMToken     string     `db:"fcm_token" json:"fcm_token"`
	PushOptIn    bool       `db:"push_opt_in" json:"push_opt_in"`
	LastActiveAt *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at,omitempty"`
}

// LastActivity returns the first non-null of last_active_at, updated_at and
// created_at.
func (s Subscription) LastActivity() *time.Time {
	for _, ts := range []*time.Time{s.LastActiveAt, s.UpdatedAt, s.CreatedAt} {
		if ts != nil {
			return ts
		}
	}
	return nil
}

// DeliveryLogEntry is a row of notification_delivery_logs keyed by DedupeKey.
type DeliveryLogEntry struct {
	DedupeKey    string         `db:"dedupe_key" json:"dedupe_key"`
	UserID       string         `db:"user_id" json:"user_id"`
	CampaignType string         `db:"campaign_type" json:"campaign_type"`
	NoticeNo     string         `db:"notice_no" json:"notice_no"`
	Status       DeliveryStatus `db:"status" json:"status"`
	PayloadJSON  string         `db:"payload_json" json:"payload_json"`
	SentAt       time.Time      `db:"sent_at" json:"sent_at"`
}
