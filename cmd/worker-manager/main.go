// cmd/worker-manager/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/codeGROOVE-dev/retry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notice-push/internal/api"
	"notice-push/internal/common/auth"
	"notice-push/internal/common/aws"
	"notice-push/internal/common/camunda"
	"notice-push/internal/common/config"
	"notice-push/internal/common/database"
	apperrors "notice-push/internal/common/errors"
	httpclient "notice-push/internal/common/http"
	"notice-push/internal/common/logger"
	"notice-push/internal/common/observability"
	"notice-push/internal/fcm"
	"notice-push/internal/noticesource"
	"notice-push/internal/store"

	dn "notice-push/internal/workers/push/dispatch-notices"
	tc "notice-push/internal/workers/push/token-cleanup"
)

// connectWithRetry runs operation with exponential backoff until it succeeds,
// the attempts run out or ctx ends.
func connectWithRetry(ctx context.Context, log logger.Logger, name string, attempts uint, operation func() error) error {
	err := retry.Do(
		operation,
		retry.Attempts(attempts),
		retry.Delay(2*time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn(name+" failed, retrying", map[string]interface{}{
				"attempt":     n + 1,
				"maxAttempts": attempts,
				"error":       err.Error(),
			})
		}),
	)
	if err != nil {
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting notice-push worker manager", map[string]interface{}{
		"environment": cfg.App.Environment,
		"port":        cfg.Server.Port,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = connectWithRetry(ctx, log, "postgres connection", 15, func() error {
		client, err := database.NewPostgres(cfg.Store.URL, cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return err
		}
		pg = client
		return nil
	})
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected", nil)

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	if err := connectWithRetry(ctx, log, "redis connection", 10, func() error { return rdb.Ping(ctx) }); err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})

	checks := map[string]api.ReadinessCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Elasticsearch notice source (optional) ---
	var source dn.NoticeSource
	if cfg.Database.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := connectWithRetry(ctx, log, "elasticsearch connection", 10, func() error { return es.Ping(ctx) }); err != nil {
			zapLog.Fatal("elasticsearch unavailable", zap.Error(err))
		}
		source = noticesource.NewElasticsearch(es.Client, cfg.Database.Elasticsearch.NoticeIndex, cfg.Database.Elasticsearch.PageSize, log)
		checks["elasticsearch"] = es.Ping
		log.Info("elasticsearch notice source enabled", map[string]interface{}{"index": cfg.Database.Elasticsearch.NoticeIndex})
	} else {
		log.Info("no notice source configured; dispatch uses request notices only", nil)
	}

	// --- Push provider ---
	tokenRequest, err := fcm.BuildAccessTokenRequest([]byte(cfg.FCM.ServiceAccountJSON))
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		zapLog.Fatal("service account credential rejected",
			zap.String("code", string(stdErr.Code)),
			zap.String("reason", stdErr.Details),
		)
	}
	issuer := fcm.NewIssuer(httpclient.NewClient(config.GetDuration(cfg.FCM.TokenTimeout)), log)
	sender := fcm.NewSender(httpclient.NewClient(config.GetDuration(cfg.FCM.SendTimeout)), cfg.FCM.Endpoint)

	// --- Operator alerts (optional) ---
	var alerts dn.AlertPublisher
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		alerts = aws.NewAlertPublisher(snsClient, cfg.Notifications.SNS.TopicARN)
		log.Info("sns run alerts enabled", nil)
	}

	// --- Handlers ---
	subscriptions := store.NewPostgres(pg.DB)
	invalidTokens := store.NewInvalidTokenQueue(rdb.Client, "")

	dispatchHandler, err := dn.NewHandler(dn.HandlerOptions{
		AppConfig: cfg,
		Logger:    log,
		Dependencies: dn.ServiceDependencies{
			Store:         subscriptions,
			Checkpoint:    store.NewCheckpoint(rdb.Client, cfg.Dispatch.CheckpointKey),
			Lock:          store.NewRunLock(rdb.Client, "", config.GetDuration(cfg.Dispatch.LockTTL)),
			InvalidTokens: invalidTokens,
			Source:        source,
			NewTokenSource: func() dn.TokenSource {
				return issuer.NewRunTokenSource(tokenRequest)
			},
			Sender:        sender,
			Alerts:        alerts,
			Observability: obs,
		},
	})
	if err != nil {
		zapLog.Fatal("dispatch handler failed", zap.Error(err))
	}

	cleanupHandler, err := tc.NewHandler(tc.HandlerOptions{
		AppConfig: cfg,
		Logger:    log,
		Dependencies: tc.ServiceDependencies{
			Store:         subscriptions,
			Queue:         invalidTokens,
			Observability: obs,
		},
	})
	if err != nil {
		zapLog.Fatal("token cleanup handler failed", zap.Error(err))
	}

	// --- Zeebe job workers (optional) ---
	var jobWorkers []worker.JobWorker
	var zeebe *camunda.Client
	if cfg.Camunda.BrokerAddress != "" {
		zeebe, err = camunda.NewClient(ctx, cfg.Camunda.BrokerAddress, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck

		for _, h := range []struct {
			taskType string
			handler  camunda.JobHandler
		}{
			{dn.TaskType, dispatchHandler},
			{tc.TaskType, cleanupHandler},
		} {
			if w := camunda.StartWorker(zeebe.GetClient(), h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handler, log); w != nil {
				jobWorkers = append(jobWorkers, w)
			}
		}
	} else {
		log.Info("zeebe broker not configured; job workers disabled", nil)
	}

	// --- HTTP surface ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Authenticator: auth.NewAuthenticator(cfg.Store.ServiceRoleKey, cfg.Store.JWTSecret),
		Dispatch:      dispatchHandler,
		Cleanup:       cleanupHandler,
		Checks:        checks,
		Logger:        log,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutdown signal received, draining", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	for _, w := range jobWorkers {
		w.Close()
		w.AwaitClose()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			log.Error("error closing zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("worker manager stopped", nil)
}
