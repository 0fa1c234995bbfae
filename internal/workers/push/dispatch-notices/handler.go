package dispatchnotices

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"notice-push/internal/common/config"
	"notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	"notice-push/internal/common/metrics"
	"notice-push/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "notice-dispatch"

// Executor runs one dispatch cycle.
type Executor interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	service      Executor
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Logger       logger.Logger
	Dependencies ServiceDependencies
	// Service replaces the default service, mainly in tests.
	Service Executor
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}

	handler := &Handler{
		config:       workerConfig,
		logger:       loggerInstance.WithFields(map[string]interface{}{"taskType": TaskType}),
		errorHandler: errors.NewErrorHandler(loggerInstance),
		service:      opts.Service,
	}

	if handler.service == nil {
		deps := opts.Dependencies
		if deps.Logger == nil {
			deps.Logger = loggerInstance
		}
		handler.service = NewService(deps, workerConfig)
	}

	return handler, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing dispatch job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute runs the service within the configured timeout. HTTP requests and
// job activations share this bound.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.service.Execute(ctx, input)
}

// parseInput keeps only the dispatch fields of the process variables; the
// rest of the process scope is not part of the input.
func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("job variables are not a JSON object")
	}

	fields := make(map[string]interface{}, len(inputFields))
	for _, name := range inputFields {
		if v, ok := variables[name]; ok {
			fields[name] = v
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.NewValidationError("job variables are not encodable")
	}
	return ParseInput(raw)
}

var inputFields = []string{"dry_run", "notices"}

// ParseInput validates a request body against the input schema and decodes
// it. An empty body is an empty input.
func ParseInput(raw []byte) (*Input, error) {
	result := validation.ValidateJSON(raw, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}

	input := &Input{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return input, nil
	}
	if err := json.Unmarshal(raw, input); err != nil {
		return nil, errors.NewValidationError("body is not valid JSON")
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("dispatch job completed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"batchId":      output.BatchID,
		"matchedUsers": output.MatchedUsers,
		"queued":       output.Queued,
	})
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func extractErrorCode(err error) string {
	return string(errors.AsStandardError(err).Code)
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		workerCfg := config.GetWorkerConfig(appConfig, TaskType)
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if appConfig.Dispatch.Timeout > 0 {
			cfg.Timeout = config.GetDuration(appConfig.Dispatch.Timeout)
		}
		if appConfig.Dispatch.Workers > 0 {
			cfg.Workers = appConfig.Dispatch.Workers
		}
		if appConfig.Dispatch.MaxErrors > 0 {
			cfg.MaxErrors = appConfig.Dispatch.MaxErrors
		}
		cfg.ProjectID = appConfig.FCM.ProjectID
	}

	return cfg
}
