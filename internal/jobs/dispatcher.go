package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reporter delivers job outcomes to the coordination backend. Exactly one of
// the two methods is called per dispatched job.
type Reporter interface {
	ReportResult(ctx context.Context, jobID string, output map[string]interface{}, metrics map[string]interface{}) error
	ReportFailure(ctx context.Context, jobID string, reason string) error
}

// Dispatcher routes a fetched job to its handler and forwards the outcome.
// Per job it walks received -> validating -> executing -> reporting -> done,
// dropping into failed from any stage. Jobs are processed one at a time.
type Dispatcher struct {
	registry *Registry
	reporter Reporter
	ledger   *Ledger
	logger   *zap.Logger
}

func NewDispatcher(registry *Registry, reporter Reporter, ledger *Ledger, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		reporter: reporter,
		ledger:   ledger,
		logger:   logger,
	}
}

// Dispatch consumes one job and returns the final state it reached. Handler
// panics are converted to reported failures; reporting errors are logged and
// never propagated, so a dispatch can never take down the job loop.
func (d *Dispatcher) Dispatch(ctx context.Context, job *Description) State {
	execID := uuid.NewString()
	log := d.logger.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Type),
		zap.String("execution_id", execID),
	)

	if job.ID == "" {
		log.Error("Job has no ID, cannot report outcome, discarding")
		return StateFailed
	}

	handler, known := d.registry.Handler(job)
	if !known {
		log.Warn("Unrecognized job type, using generic handler")
	}

	log.Info("Job received", zap.String("state", string(StateValidating)))
	if err := handler.Validate(); err != nil {
		log.Warn("Job validation failed", zap.Error(err))
		handler.Cleanup()
		d.reportFailure(ctx, log, job.ID, fmt.Sprintf("validation failed: %v", err))
		return StateFailed
	}

	log.Info("Executing job", zap.String("state", string(StateExecuting)))
	started := time.Now()
	result := d.execute(ctx, handler)
	elapsed := time.Since(started)

	log.Info("Reporting job outcome",
		zap.String("state", string(StateReporting)),
		zap.Bool("success", result.Success),
		zap.Duration("duration", elapsed),
	)

	if !result.Success {
		reason := result.Err
		if reason == "" {
			reason = "job execution failed"
		}
		d.reportFailure(ctx, log, job.ID, reason)
		return StateFailed
	}

	reward := d.parseReward(log, job.Reward)
	metrics := map[string]interface{}{
		"duration_ms": elapsed.Milliseconds(),
	}
	if !reward.IsZero() {
		metrics["reward"] = reward.String()
	}
	if err := d.reporter.ReportResult(ctx, job.ID, result.Output, metrics); err != nil {
		// Best effort: the job is done even if the report is lost.
		log.Error("Failed to report job result", zap.Error(err))
	}
	d.ledger.Credit(reward)

	log.Info("Job completed", zap.String("state", string(StateDone)))
	return StateDone
}

// execute runs the handler inside a panic boundary so a misbehaving job body
// becomes a reported failure instead of crashing the loop. Cleanup runs here,
// before execute returns to the caller, so exclusive resources are released
// before the outcome goes over the network.
func (d *Dispatcher) execute(ctx context.Context, handler Handler) (result Result) {
	defer handler.Cleanup()
	defer func() {
		if r := recover(); r != nil {
			result = Failure(fmt.Sprintf("job execution panicked: %v", r))
		}
	}()
	return handler.Execute(ctx)
}

func (d *Dispatcher) reportFailure(ctx context.Context, log *zap.Logger, jobID, reason string) {
	d.ledger.RecordFailure()
	if err := d.reporter.ReportFailure(ctx, jobID, reason); err != nil {
		log.Error("Failed to report job failure", zap.Error(err))
	}
}

func (d *Dispatcher) parseReward(log *zap.Logger, raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	reward, err := decimal.NewFromString(raw)
	if err != nil {
		log.Warn("Unparseable job reward, ignoring", zap.String("reward", raw), zap.Error(err))
		return decimal.Zero
	}
	return reward
}
