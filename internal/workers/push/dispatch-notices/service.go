package dispatchnotices

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"notice-push/internal/common/aws"
	"notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	"notice-push/internal/common/metrics"
	"notice-push/internal/common/observability"
	"notice-push/internal/fcm"
	"notice-push/internal/models"
	"notice-push/internal/notice"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Service struct {
	config *Config
	logger logger.Logger
	deps   ServiceDependencies
	obs    *observability.Observability

	now        func() time.Time
	newBatchID func() string
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:     config,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
		deps:       deps,
		obs:        deps.Observability,
		now:        time.Now,
		newBatchID: uuid.NewString,
	}
}

// delivery is one matched user with every opted-in device of that user.
type delivery struct {
	summary       notice.Summary
	subscriptions []models.Subscription
}

type deliveryResult struct {
	userID        string
	queued        int
	sent          int
	retryable     int
	fatal         int
	invalidTokens []string
	failures      []*errors.StandardError
	errorMsg      string
}

// statusRank orders final statuses when one user has several devices. The
// lowest rank among the user's attempts is written to the delivery log.
var statusRank = map[models.DeliveryStatus]int{
	models.DeliverySent:         0,
	models.DeliveryRetryable:    1,
	models.DeliveryFatal:        2,
	models.DeliveryInvalidToken: 3,
}

// runStats aggregates delivery results from the worker pool.
type runStats struct {
	mu            sync.Mutex
	queued        int
	sent          int
	retryable     int
	fatal         int
	invalidTokens []string
	errors        []UserError
	failures      map[string]int
}

func (r *runStats) add(res deliveryResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queued += res.queued
	r.sent += res.sent
	r.retryable += res.retryable
	r.fatal += res.fatal
	r.invalidTokens = append(r.invalidTokens, res.invalidTokens...)
	for _, f := range res.failures {
		if r.failures == nil {
			r.failures = make(map[string]int)
		}
		r.failures[f.Details]++
	}
	if res.errorMsg != "" {
		r.errors = append(r.errors, UserError{UserID: res.userID, Message: res.errorMsg})
	}
}

// userErrors returns at most limit errors ordered by user id.
func (r *runStats) userErrors(limit int) []UserError {
	sort.Slice(r.errors, func(i, j int) bool { return r.errors[i].UserID < r.errors[j].UserID })
	if len(r.errors) > limit {
		return r.errors[:limit]
	}
	return r.errors
}

// Execute runs one dispatch cycle: window, match, summarize and, unless
// DryRun is set, record and send one summary push per matched device.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := s.now()
	ctx, span := s.obs.StartSpan(ctx, "dispatch.run", attribute.Bool("dry_run", input.DryRun))
	defer span.End()

	output, err := s.run(ctx, input)

	outcome := "ok"
	if err != nil {
		outcome = string(errors.AsStandardError(err).Code)
		span.RecordError(err)
	}
	metrics.DispatchRuns.WithLabelValues(outcome, strconv.FormatBool(input.DryRun)).Inc()
	s.obs.RecordRun(ctx, "dispatch", outcome, s.now().Sub(start))
	return output, err
}

func (s *Service) run(ctx context.Context, input *Input) (*Output, error) {
	today := notice.Today(s.now())
	lastSuccess, err := s.deps.Checkpoint.LastSuccess(ctx)
	if err != nil {
		return nil, err
	}
	window, err := notice.BuildDateWindow(lastSuccess, today)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	notices, err := s.loadNotices(ctx, input, window)
	if err != nil {
		return nil, err
	}

	subs, err := s.deps.Store.ListOptedInSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	summaries, err := s.match(ctx, subs, notices)
	if err != nil {
		return nil, err
	}

	output := &Output{
		MatchedUsers: len(summaries),
		DryRun:       input.DryRun,
		Window:       window,
		BatchID:      s.newBatchID(),
	}
	metrics.DispatchMatchedUsers.Add(float64(len(summaries)))

	s.logger.Info("dispatch window matched", map[string]interface{}{
		"batchId":       output.BatchID,
		"bgupd":         window.Bgupd,
		"enupd":         window.Enupd,
		"notices":       len(notices),
		"subscriptions": len(subs),
		"matchedUsers":  len(summaries),
		"dryRun":        input.DryRun,
	})

	if input.DryRun {
		return output, nil
	}

	acquired, err := s.deps.Lock.Acquire(ctx, output.BatchID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errors.NewDispatchLockedError()
	}
	defer func() {
		if err := s.deps.Lock.Release(context.WithoutCancel(ctx), output.BatchID); err != nil {
			s.logger.Warn("failed to release dispatch lock", map[string]interface{}{"batchId": output.BatchID})
		}
	}()

	stats := &runStats{}
	if len(summaries) > 0 {
		accessToken, err := s.deps.NewTokenSource().Token(ctx)
		if err != nil {
			return nil, err
		}
		s.deliverAll(ctx, output.BatchID, accessToken, summaries, subs, stats)
	}

	output.Queued = stats.queued
	output.Sent = stats.sent
	output.Failed = stats.retryable + stats.fatal
	output.InvalidTokens = len(stats.invalidTokens)
	output.ErrorsCount = len(stats.errors)
	output.Errors = stats.userErrors(s.config.MaxErrors)

	if len(stats.invalidTokens) > 0 {
		if err := s.deps.InvalidTokens.Add(ctx, stats.invalidTokens...); err != nil {
			s.logger.Warn("failed to queue invalid tokens", map[string]interface{}{
				"batchId": output.BatchID,
				"count":   len(stats.invalidTokens),
			})
		}
	}

	// The one-day window overlap covers a missed checkpoint write.
	if err := s.deps.Checkpoint.MarkSuccess(ctx, today); err != nil {
		s.logger.Warn("failed to advance dispatch checkpoint", map[string]interface{}{
			"batchId": output.BatchID,
			"date":    today,
		})
	}

	if stats.fatal > 0 {
		s.alert(ctx, output.BatchID, stats)
	}

	s.logger.Info("dispatch run finished", map[string]interface{}{
		"batchId":       output.BatchID,
		"queued":        output.Queued,
		"sent":          output.Sent,
		"failed":        output.Failed,
		"invalidTokens": output.InvalidTokens,
		"errorsCount":   output.ErrorsCount,
	})
	return output, nil
}

func (s *Service) loadNotices(ctx context.Context, input *Input, window notice.DateWindow) ([]models.Notice, error) {
	if len(input.Notices) > 0 {
		return input.Notices, nil
	}
	if s.deps.Source == nil {
		return nil, nil
	}
	ctx, span := s.obs.StartSpan(ctx, "dispatch.fetch_notices")
	defer span.End()
	return s.deps.Source.Fetch(ctx, window)
}

// match builds one profile per opted-in user. Users without a stored
// profile get the wildcard profile.
func (s *Service) match(ctx context.Context, subs []models.Subscription, notices []models.Notice) ([]notice.Summary, error) {
	if len(subs) == 0 || len(notices) == 0 {
		return []notice.Summary{}, nil
	}

	seen := make(map[string]struct{}, len(subs))
	userIDs := make([]string, 0, len(subs))
	for _, sub := range subs {
		if _, ok := seen[sub.UserID]; ok || sub.UserID == "" {
			continue
		}
		seen[sub.UserID] = struct{}{}
		userIDs = append(userIDs, sub.UserID)
	}
	sort.Strings(userIDs)

	rows, err := s.deps.Store.ListInterestProfiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	profiles := make([]notice.Profile, 0, len(userIDs))
	for _, userID := range userIDs {
		if row, ok := rows[userID]; ok {
			profiles = append(profiles, notice.NewProfile(row))
		} else {
			profiles = append(profiles, notice.WildcardProfile(userID))
		}
	}

	return notice.SummarizeByUser(notice.MatchAll(profiles, notices)), nil
}

func (s *Service) deliverAll(ctx context.Context, batchID, accessToken string, summaries []notice.Summary, subs []models.Subscription, stats *runStats) {
	ctx, span := s.obs.StartSpan(ctx, "dispatch.deliver", attribute.Int("users", len(summaries)))
	defer span.End()

	byUser := make(map[string][]models.Subscription)
	for _, sub := range subs {
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}

	jobs := make(chan delivery)
	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				stats.add(s.deliver(ctx, batchID, accessToken, d))
			}
		}()
	}

	for _, summary := range summaries {
		jobs <- delivery{summary: summary, subscriptions: byUser[summary.UserID]}
	}
	close(jobs)
	wg.Wait()
}

type recordedPayload struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data"`
	Error   string            `json:"error,omitempty"`
	Status  int               `json:"provider_status,omitempty"`
	BatchID string            `json:"batch_id"`
}

// attempt is the outcome of one push to one device.
type attempt struct {
	status      models.DeliveryStatus
	httpStatus  int
	providerErr *errors.StandardError
}

// deliver writes the user's queued rows, pushes to each of the user's devices
// in turn, then writes the rows once more with the best status reached. A
// failed queued write skips the sends.
func (s *Service) deliver(ctx context.Context, batchID, accessToken string, d delivery) deliveryResult {
	userID := d.summary.UserID
	result := deliveryResult{userID: userID}
	matchedCount := strconv.Itoa(d.summary.MatchedCount)

	msg := fcm.BuildSummaryMessage("", matchedCount, batchID)
	payload := recordedPayload{
		Title:   msg.Message.Notification.Title,
		Body:    msg.Message.Notification.Body,
		Data:    msg.Message.Data,
		BatchID: batchID,
	}

	if err := s.record(ctx, d.summary, batchID, models.DeliveryQueued, payload); err != nil {
		result.errorMsg = "delivery log write failed"
		s.logger.Error("queued delivery write failed", map[string]interface{}{
			"userId":    userID,
			"errorCode": string(errors.AsStandardError(err).Code),
			"details":   errors.AsStandardError(err).Details,
		})
		return result
	}
	result.queued = len(d.subscriptions)
	if len(d.subscriptions) == 0 {
		return result
	}

	var best attempt
	var failed []string
	for i, sub := range d.subscriptions {
		a := s.send(ctx, accessToken, sub, userID, matchedCount, batchID)
		switch a.status {
		case models.DeliverySent:
			result.sent++
		case models.DeliveryRetryable:
			result.retryable++
		case models.DeliveryFatal:
			result.fatal++
		case models.DeliveryInvalidToken:
			result.invalidTokens = append(result.invalidTokens, sub.FCMToken)
		}
		if a.providerErr != nil {
			result.failures = append(result.failures, a.providerErr)
			if a.status != models.DeliveryInvalidToken {
				failed = append(failed, string(a.status))
			}
		}
		if i == 0 || statusRank[a.status] < statusRank[best.status] {
			best = a
		}
	}
	if len(failed) > 0 {
		result.errorMsg = "push failed: " + strings.Join(failed, ", ")
	}

	if best.providerErr != nil {
		payload.Error = string(best.status)
		payload.Status = best.httpStatus
	}
	if err := s.record(ctx, d.summary, batchID, best.status, payload); err != nil && result.errorMsg == "" {
		result.errorMsg = "delivery log write failed"
		s.logger.Error("final delivery write failed", map[string]interface{}{
			"userId":    userID,
			"status":    string(best.status),
			"errorCode": string(errors.AsStandardError(err).Code),
			"details":   errors.AsStandardError(err).Details,
		})
	}
	return result
}

// send pushes the summary to one device and classifies the outcome.
func (s *Service) send(ctx context.Context, accessToken string, sub models.Subscription, userID, matchedCount, batchID string) attempt {
	msg := fcm.BuildSummaryMessage(sub.FCMToken, matchedCount, batchID)
	res, err := s.deps.Sender.Send(ctx, s.config.ProjectID, accessToken, msg)
	if err == nil && res.OK {
		metrics.PushSends.WithLabelValues(string(models.DeliverySent)).Inc()
		return attempt{status: models.DeliverySent, httpStatus: res.Status}
	}

	class := fcm.ClassifyOutcome(res, err)
	a := attempt{status: models.DeliveryStatus(class)}
	if res != nil {
		a.httpStatus = res.Status
	}
	a.providerErr = errors.NewProviderError(string(class), a.httpStatus)
	metrics.PushSends.WithLabelValues(string(a.status)).Inc()

	s.logger.Warn("push send failed", map[string]interface{}{
		"userId":    userID,
		"token":     logger.MaskToken(sub.FCMToken),
		"errorCode": string(a.providerErr.Code),
		"details":   a.providerErr.Details,
	})
	return a
}

// record upserts one row per notice key of the summary.
func (s *Service) record(ctx context.Context, summary notice.Summary, batchID string, status models.DeliveryStatus, payload recordedPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternalError(err)
	}

	keys := summary.NoticeKeys
	if len(keys) == 0 {
		keys = []string{""}
	}
	sentAt := s.now().UTC()
	for _, key := range keys {
		entry := models.DeliveryLogEntry{
			DedupeKey:    notice.BuildDedupeKey(models.CampaignNewAnimalSummary, summary.UserID, key, batchID),
			UserID:       summary.UserID,
			CampaignType: models.CampaignNewAnimalSummary,
			NoticeNo:     key,
			Status:       status,
			PayloadJSON:  string(raw),
			SentAt:       sentAt,
		}
		if err := s.deps.Store.UpsertDeliveryLog(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) alert(ctx context.Context, batchID string, stats *runStats) {
	if s.deps.Alerts == nil {
		return
	}
	err := s.deps.Alerts.Publish(ctx, aws.RunAlert{
		BatchID:       batchID,
		Operation:     "dispatch",
		Fatal:         stats.fatal,
		Retryable:     stats.retryable,
		InvalidTokens: len(stats.invalidTokens),
		Sent:          stats.sent,
		Failures:      stats.failures,
	})
	if err != nil {
		s.logger.Warn("failed to publish run alert", map[string]interface{}{"batchId": batchID, "error": err.Error()})
	}
}
