package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/gpu"
	"github.com/hypernode-labs/node-agent/internal/jobs"
	"github.com/hypernode-labs/node-agent/internal/telemetry"
)

// Fixed recovery delays after a failed iteration. Loops fall back to their
// configured cadence as soon as an iteration succeeds again.
const (
	heartbeatRecoveryDelay = 5 * time.Second
	telemetryRecoveryDelay = 10 * time.Second
	jobRecoveryDelay       = 5 * time.Second
)

// sleepCtx waits for d or until ctx is done. It returns false when the
// context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// guard converts a panicking iteration into an error so no loop ever dies.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s iteration panicked: %v", op, r)
		}
	}()
	return fn()
}

type heartbeatBackend interface {
	Heartbeat(ctx context.Context) error
}

// HeartbeatLoop periodically asserts the node is online. Any failure is
// logged and followed by a short recovery delay; the loop never exits on
// its own.
type HeartbeatLoop struct {
	backend  heartbeatBackend
	interval time.Duration
	recovery time.Duration
	logger   *zap.Logger
}

func NewHeartbeatLoop(backend heartbeatBackend, interval time.Duration, logger *zap.Logger) *HeartbeatLoop {
	return &HeartbeatLoop{
		backend:  backend,
		interval: interval,
		recovery: heartbeatRecoveryDelay,
		logger:   logger,
	}
}

func (l *HeartbeatLoop) Run(ctx context.Context) {
	l.logger.Info("Heartbeat loop started", zap.Duration("interval", l.interval))
	for ctx.Err() == nil {
		delay := l.interval
		err := guard("heartbeat", func() error {
			return l.backend.Heartbeat(ctx)
		})
		if err != nil {
			l.logger.Warn("Heartbeat failed", zap.Error(err))
			delay = l.recovery
		} else {
			l.logger.Debug("Heartbeat sent")
		}
		if !sleepCtx(ctx, delay) {
			break
		}
	}
	l.logger.Info("Heartbeat loop stopped")
}

type healthMonitor interface {
	MonitorHealth() gpu.HealthStatus
}

type statsCollector interface {
	Collect() telemetry.SystemStats
}

// TelemetryLoop collects system and GPU health each cycle. Reports are
// logged locally and pushed through the publisher when one is configured.
type TelemetryLoop struct {
	collector statsCollector
	monitor   healthMonitor
	ledger    *jobs.Ledger
	publisher telemetry.Publisher
	identity  *NodeIdentity
	sessionID string
	interval  time.Duration
	recovery  time.Duration
	logger    *zap.Logger
}

func NewTelemetryLoop(
	collector statsCollector,
	monitor healthMonitor,
	ledger *jobs.Ledger,
	publisher telemetry.Publisher,
	identity *NodeIdentity,
	sessionID string,
	interval time.Duration,
	logger *zap.Logger,
) *TelemetryLoop {
	return &TelemetryLoop{
		collector: collector,
		monitor:   monitor,
		ledger:    ledger,
		publisher: publisher,
		identity:  identity,
		sessionID: sessionID,
		interval:  interval,
		recovery:  telemetryRecoveryDelay,
		logger:    logger,
	}
}

func (l *TelemetryLoop) Run(ctx context.Context) {
	l.logger.Info("Telemetry loop started", zap.Duration("interval", l.interval))
	for ctx.Err() == nil {
		delay := l.interval
		if err := guard("telemetry", l.iterate); err != nil {
			l.logger.Warn("Telemetry cycle failed", zap.Error(err))
			delay = l.recovery
		}
		if !sleepCtx(ctx, delay) {
			break
		}
	}
	l.logger.Info("Telemetry loop stopped")
}

func (l *TelemetryLoop) iterate() error {
	report := l.buildReport()

	l.logger.Info("Telemetry collected",
		zap.Float64("cpu_percent", report.System.CPUPercent),
		zap.Float64("ram_percent", report.System.RAMPercent),
		zap.Float64("disk_percent", report.System.DiskPercent),
		zap.Bool("healthy", report.Health.Healthy),
		zap.Strings("issues", report.Health.Issues),
		zap.String("earnings_total", report.EarningsTotal),
		zap.Int("jobs_completed", report.JobsCompleted),
	)

	if l.publisher == nil {
		return nil
	}
	return l.publisher.Publish(report)
}

func (l *TelemetryLoop) buildReport() telemetry.Report {
	completed, failed := l.ledger.Counts()
	health := l.monitor.MonitorHealth()
	return telemetry.Report{
		SessionID:     l.sessionID,
		NodeID:        l.identity.ID(),
		Timestamp:     time.Now().UTC(),
		System:        l.collector.Collect(),
		GPU:           health.Stats,
		Health:        health,
		EarningsTotal: l.ledger.Total().String(),
		JobsCompleted: completed,
		JobsFailed:    failed,
	}
}

type jobBackend interface {
	ListAvailableJobs(ctx context.Context) (*jobs.Description, error)
}

type jobDispatcher interface {
	Dispatch(ctx context.Context, job *jobs.Description) jobs.State
}

// JobLoop polls for work and dispatches it synchronously, one job at a
// time. When a job was handled it polls again immediately; when the queue
// is empty it sleeps the poll interval.
type JobLoop struct {
	backend    jobBackend
	dispatcher jobDispatcher
	interval   time.Duration
	recovery   time.Duration
	logger     *zap.Logger
}

func NewJobLoop(backend jobBackend, dispatcher jobDispatcher, interval time.Duration, logger *zap.Logger) *JobLoop {
	return &JobLoop{
		backend:    backend,
		dispatcher: dispatcher,
		interval:   interval,
		recovery:   jobRecoveryDelay,
		logger:     logger,
	}
}

func (l *JobLoop) Run(ctx context.Context) {
	l.logger.Info("Job loop started", zap.Duration("poll_interval", l.interval))
	for ctx.Err() == nil {
		var dispatched bool
		err := guard("job", func() error {
			job, err := l.backend.ListAvailableJobs(ctx)
			if err != nil {
				return err
			}
			if job == nil {
				return nil
			}
			l.logger.Info("Job received", zap.String("job_id", job.ID), zap.String("job_type", job.Type))
			l.dispatcher.Dispatch(ctx, job)
			dispatched = true
			return nil
		})

		delay := l.interval
		switch {
		case err != nil:
			l.logger.Warn("Job poll failed", zap.Error(err))
			delay = l.recovery
		case dispatched:
			// Poll again right away; there may be more queued work.
			delay = 0
		}
		if delay > 0 && !sleepCtx(ctx, delay) {
			break
		}
	}
	l.logger.Info("Job loop stopped")
}
