// Package store implements the relational tables and the Redis-backed run
// state used by dispatch and token cleanup.
package store

import (
	"context"

	"notice-push/internal/common/errors"
	"notice-push/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const subscriptionColumns = `id, user_id, fcm_token, push_opt_in, last_active_at, updated_at, created_at`

// Postgres reads and writes notification_subscriptions,
// notification_delivery_logs and user_interest_profiles.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// ListOptedInSubscriptions returns every subscription with push_opt_in = true.
func (p *Postgres) ListOptedInSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	query := `SELECT ` + subscriptionColumns + ` FROM notification_subscriptions WHERE push_opt_in = true ORDER BY user_id, id`
	if err := p.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, errors.NewStoreError("list_opted_in_subscriptions", err)
	}
	return subs, nil
}

// ListInterestProfiles returns the stored profile of each user that has one.
func (p *Postgres) ListInterestProfiles(ctx context.Context, userIDs []string) (map[string]models.InterestProfileRow, error) {
	profiles := make(map[string]models.InterestProfileRow, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	rows := []models.InterestProfileRow{}
	query := `SELECT user_id, regions, species, sexes, sizes FROM user_interest_profiles WHERE user_id = ANY($1)`
	if err := p.db.SelectContext(ctx, &rows, query, pq.Array(userIDs)); err != nil {
		return nil, errors.NewStoreError("list_interest_profiles", err)
	}
	for _, row := range rows {
		profiles[row.UserID] = row
	}
	return profiles, nil
}

// UpsertDeliveryLog inserts the entry or, when dedupe_key already exists,
// overwrites its status, payload and sent_at.
func (p *Postgres) UpsertDeliveryLog(ctx context.Context, entry models.DeliveryLogEntry) error {
	query := `
		INSERT INTO notification_delivery_logs (dedupe_key, user_id, campaign_type, notice_no, status, payload_json, sent_at)
		VALUES (:dedupe_key, :user_id, :campaign_type, :notice_no, :status, :payload_json, :sent_at)
		ON CONFLICT (dedupe_key) DO UPDATE SET
			status = EXCLUDED.status,
			payload_json = EXCLUDED.payload_json,
			sent_at = EXCLUDED.sent_at`
	if _, err := p.db.NamedExecContext(ctx, query, entry); err != nil {
		return errors.NewStoreError("upsert_delivery_log", err)
	}
	return nil
}

// ListSubscriptions returns all subscriptions, optionally restricted to userIDs.
func (p *Postgres) ListSubscriptions(ctx context.Context, userIDs []string) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	var err error
	if len(userIDs) == 0 {
		err = p.db.SelectContext(ctx, &subs, `SELECT `+subscriptionColumns+` FROM notification_subscriptions`)
	} else {
		err = p.db.SelectContext(ctx, &subs,
			`SELECT `+subscriptionColumns+` FROM notification_subscriptions WHERE user_id = ANY($1)`, pq.Array(userIDs))
	}
	if err != nil {
		return nil, errors.NewStoreError("list_subscriptions", err)
	}
	return subs, nil
}

// FindSubscriptionsByTokens returns subscriptions whose fcm_token is in tokens,
// optionally restricted to userIDs.
func (p *Postgres) FindSubscriptionsByTokens(ctx context.Context, tokens, userIDs []string) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	if len(tokens) == 0 {
		return subs, nil
	}
	var err error
	if len(userIDs) == 0 {
		err = p.db.SelectContext(ctx, &subs,
			`SELECT `+subscriptionColumns+` FROM notification_subscriptions WHERE fcm_token = ANY($1)`, pq.Array(tokens))
	} else {
		err = p.db.SelectContext(ctx, &subs,
			`SELECT `+subscriptionColumns+` FROM notification_subscriptions WHERE fcm_token = ANY($1) AND user_id = ANY($2)`,
			pq.Array(tokens), pq.Array(userIDs))
	}
	if err != nil {
		return nil, errors.NewStoreError("find_subscriptions_by_tokens", err)
	}
	return subs, nil
}

// DeleteSubscriptions deletes rows by primary key and returns the count removed.
func (p *Postgres) DeleteSubscriptions(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM notification_subscriptions WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.NewStoreError("delete_subscriptions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewStoreError("delete_subscriptions", err)
	}
	return n, nil
}
