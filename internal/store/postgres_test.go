package store

import (
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	apperrors "notice-push/internal/common/errors"
	"notice-push/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var subscriptionCols = []string{"id", "user_id", "fcm_token", "push_opt_in", "last_active_at", "updated_at", "created_at"}

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewPostgres(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestPostgres_ListOptedInSubscriptions(t *testing.T) {
	s, mock := newMockStore(t)
	active := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	created := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_subscriptions WHERE push_opt_in = true")).
		WillReturnRows(sqlmock.NewRows(subscriptionCols).
			AddRow("1", "u1", "token-a", true, active, nil, created).
			AddRow("2", "u2", "token-b", true, nil, nil, created))

	subs, err := s.ListOptedInSubscriptions(testContext(t))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "token-a", subs[0].FCMToken)
	require.NotNil(t, subs[0].LastActiveAt)
	assert.True(t, subs[0].LastActiveAt.Equal(active))
	assert.Nil(t, subs[1].LastActiveAt)
	assert.True(t, subs[1].LastActivity().Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListOptedInSubscriptions_StoreError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM notification_subscriptions").WillReturnError(stderrors.New("connection refused"))

	_, err := s.ListOptedInSubscriptions(testContext(t))

	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeStore, stdErr.Code)
	assert.Contains(t, stdErr.Details, "connection refused")
}

func TestPostgres_ListInterestProfiles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_interest_profiles WHERE user_id = ANY($1)")).
		WithArgs(pq.Array([]string{"u1", "u2"})).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "regions", "species", "sexes", "sizes"}).
			AddRow("u1", "{6110000,6260000}", "{dog}", "{}", "{SMALL}"))

	profiles, err := s.ListInterestProfiles(testContext(t), []string{"u1", "u2"})
	require.NoError(t, err)
	require.Contains(t, profiles, "u1")
	assert.NotContains(t, profiles, "u2")
	assert.Equal(t, pq.StringArray{"6110000", "6260000"}, profiles["u1"].Regions)
	assert.Empty(t, profiles["u1"].Sexes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListInterestProfiles_NoUsers(t *testing.T) {
	s, mock := newMockStore(t)
	profiles, err := s.ListInterestProfiles(testContext(t), nil)
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertDeliveryLog(t *testing.T) {
	s, mock := newMockStore(t)
	entry := models.DeliveryLogEntry{
		DedupeKey:    "new_animal_summary:u1:N-1",
		UserID:       "u1",
		CampaignType: models.CampaignNewAnimalSummary,
		NoticeNo:     "N-1",
		Status:       models.DeliverySent,
		PayloadJSON:  `{"batch_id":"b-1"}`,
		SentAt:       time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (dedupe_key) DO UPDATE SET")).
		WithArgs(entry.DedupeKey, "u1", "new_animal_summary", "N-1", "sent", `{"batch_id":"b-1"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertDeliveryLog(testContext(t), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindSubscriptionsByTokens(t *testing.T) {
	t.Run("tokens only", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE fcm_token = ANY($1)")).
			WithArgs(pq.Array([]string{"t1", "t2"})).
			WillReturnRows(sqlmock.NewRows(subscriptionCols).AddRow("9", "u1", "t1", true, nil, nil, nil))

		subs, err := s.FindSubscriptionsByTokens(testContext(t), []string{"t1", "t2"}, nil)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("restricted to users", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE fcm_token = ANY($1) AND user_id = ANY($2)")).
			WithArgs(pq.Array([]string{"t1"}), pq.Array([]string{"u1"})).
			WillReturnRows(sqlmock.NewRows(subscriptionCols))

		subs, err := s.FindSubscriptionsByTokens(testContext(t), []string{"t1"}, []string{"u1"})
		require.NoError(t, err)
		assert.Empty(t, subs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgres_DeleteSubscriptions(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notification_subscriptions WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"1", "2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.DeleteSubscriptions(testContext(t), []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteSubscriptions(testContext(t), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
