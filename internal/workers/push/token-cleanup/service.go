package tokencleanup

import (
	"context"
	"strings"
	"time"

	"notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	"notice-push/internal/common/metrics"
	"notice-push/internal/common/observability"
	"notice-push/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

type Service struct {
	config *Config
	logger logger.Logger
	deps   ServiceDependencies
	obs    *observability.Observability
	now    func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		deps:   deps,
		obs:    deps.Observability,
		now:    time.Now,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := s.now()
	ctx, span := s.obs.StartSpan(ctx, "token_cleanup.run",
		attribute.String("mode", input.Mode),
		attribute.Bool("dry_run", input.IsDryRun()),
	)
	defer span.End()

	var (
		output *Output
		err    error
	)
	switch input.Mode {
	case ModeStale:
		output, err = s.cleanupStale(ctx, input)
	case ModeInvalid:
		output, err = s.cleanupInvalid(ctx, input)
	default:
		err = errors.NewValidationError("mode must be one of stale, invalid")
	}

	status := "ok"
	if err != nil {
		status = string(errors.AsStandardError(err).Code)
		span.RecordError(err)
	}
	s.obs.RecordRun(ctx, "token_cleanup", status, s.now().Sub(start))
	return output, err
}

// StaleBeforeDays resolves the requested threshold against the default and
// the one-day floor.
func (s *Service) StaleBeforeDays(requested *int) int {
	days := s.config.StaleBeforeDays
	if requested != nil {
		days = *requested
	}
	if days < 1 {
		days = 1
	}
	return days
}

// IsStale reports whether the subscription's last activity is at or before
// cutoff. A row with no timestamp at all is stale.
func IsStale(sub models.Subscription, cutoff time.Time) bool {
	last := sub.LastActivity()
	return last == nil || !last.After(cutoff)
}

func (s *Service) cleanupStale(ctx context.Context, input *Input) (*Output, error) {
	days := s.StaleBeforeDays(input.StaleBeforeDays)
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	subs, err := s.deps.Store.ListSubscriptions(ctx, cleanList(input.UserIDs))
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, sub := range subs {
		if IsStale(sub, cutoff) {
			ids = append(ids, sub.ID)
		}
	}

	output := &Output{
		Mode:            ModeStale,
		DryRun:          input.IsDryRun(),
		MatchedCount:    len(ids),
		Cutoff:          cutoff.Format(time.RFC3339),
		StaleBeforeDays: days,
	}

	if !output.DryRun {
		if output.DeletedCount, err = s.deps.Store.DeleteSubscriptions(ctx, ids); err != nil {
			return nil, err
		}
		metrics.TokensDeleted.WithLabelValues(ModeStale).Add(float64(output.DeletedCount))
	}

	s.logger.Info("stale subscription cleanup finished", map[string]interface{}{
		"cutoff":       output.Cutoff,
		"scanned":      len(subs),
		"matchedCount": output.MatchedCount,
		"deletedCount": output.DeletedCount,
		"dryRun":       output.DryRun,
	})
	return output, nil
}

func (s *Service) cleanupInvalid(ctx context.Context, input *Input) (*Output, error) {
	tokens := cleanList(input.InvalidTokens)

	var queued []string
	if input.IncludeQueued && s.deps.Queue != nil {
		var err error
		if queued, err = s.deps.Queue.Members(ctx); err != nil {
			return nil, err
		}
		tokens = cleanList(append(tokens, queued...))
	}

	if len(tokens) == 0 {
		return nil, errors.NewValidationError("invalid_tokens is required for invalid mode")
	}

	subs, err := s.deps.Store.FindSubscriptionsByTokens(ctx, tokens, cleanList(input.UserIDs))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}

	output := &Output{
		Mode:            ModeInvalid,
		DryRun:          input.IsDryRun(),
		MatchedCount:    len(ids),
		RequestedTokens: len(tokens),
	}

	if !output.DryRun {
		if output.DeletedCount, err = s.deps.Store.DeleteSubscriptions(ctx, ids); err != nil {
			return nil, err
		}
		metrics.TokensDeleted.WithLabelValues(ModeInvalid).Add(float64(output.DeletedCount))

		if len(queued) > 0 {
			if err := s.deps.Queue.Remove(ctx, queued...); err != nil {
				s.logger.Warn("failed to drain invalid token queue", map[string]interface{}{"count": len(queued)})
			}
		}
	}

	s.logger.Info("invalid token cleanup finished", map[string]interface{}{
		"requestedTokens": output.RequestedTokens,
		"queuedTokens":    len(queued),
		"matchedCount":    output.MatchedCount,
		"deletedCount":    output.DeletedCount,
		"dryRun":          output.DryRun,
	})
	return output, nil
}

// cleanList trims, drops blanks and removes duplicates, keeping first-seen
// order.
func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
