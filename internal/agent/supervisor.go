package agent

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/backend"
	"github.com/hypernode-labs/node-agent/internal/config"
	"github.com/hypernode-labs/node-agent/internal/gpu"
	"github.com/hypernode-labs/node-agent/internal/jobs"
	"github.com/hypernode-labs/node-agent/internal/telemetry"
)

// shutdownGracePeriod bounds how long Run waits for loops to finish after
// the shutdown signal. Loops only observe cancellation at iteration
// boundaries, so an in-flight network call may still be draining.
const shutdownGracePeriod = 10 * time.Second

// Supervisor owns the agent lifecycle: config validation, hardware
// detection, registration with retry, the three concurrent loops, and
// bounded graceful shutdown.
type Supervisor struct {
	cfg       *config.Config
	logger    *zap.Logger
	backend   *backend.Client
	builder   *gpu.Builder
	ledger    *jobs.Ledger
	publisher telemetry.Publisher
	identity  *NodeIdentity
	sessionID string
	grace     time.Duration
	regRetry  time.Duration
}

// New wires the supervisor's components. The publisher may be nil, which
// keeps telemetry local-only.
func New(cfg *config.Config, probe gpu.Probe, publisher telemetry.Publisher, logger *zap.Logger) *Supervisor {
	sessionID := uuid.NewString()
	logger = logger.With(zap.String("session_id", sessionID))

	return &Supervisor{
		cfg:       cfg,
		logger:    logger,
		backend:   backend.NewClient(cfg.BackendURL, cfg.NodeToken, cfg.WalletAddress, cfg.RequestTimeout, logger),
		builder:   gpu.NewBuilder(probe, cfg.GPUIndex, logger),
		ledger:    jobs.NewLedger(),
		publisher: publisher,
		identity:  &NodeIdentity{},
		sessionID: sessionID,
		grace:     shutdownGracePeriod,
		regRetry:  registrationRetryDelay,
	}
}

// Run executes the full agent lifecycle until ctx is cancelled. It returns
// an error only for the two fatal startup cases: invalid configuration and
// registration failure after the retry.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("Hypernode agent starting",
		zap.String("backend_url", s.cfg.BackendURL),
		zap.String("wallet", shortWallet(s.cfg.WalletAddress)),
		zap.Duration("heartbeat_interval", s.cfg.HeartbeatInterval),
		zap.Duration("job_poll_interval", s.cfg.JobPollInterval),
	)

	if err := s.cfg.Validate(); err != nil {
		s.logger.Error("Invalid configuration", zap.Error(err))
		return err
	}
	if _, err := solana.PublicKeyFromBase58(s.cfg.WalletAddress); err != nil {
		// Length and presence are enforced by Validate; a base58 parse
		// failure is worth surfacing but must not stop the agent.
		s.logger.Warn("Wallet address is not a valid Solana public key", zap.Error(err))
	}

	defer s.builder.Close()

	controller := NewRegistrationController(s.backend, s.builder, s.logger)
	controller.retryDelay = s.regRetry
	snap, nodeID, err := controller.Register(ctx)
	if err != nil {
		s.logger.Error("Failed to register node", zap.Error(err))
		return err
	}
	s.identity.set(nodeID)
	s.backend.SetNodeID(nodeID)

	s.logger.Info("Node configuration",
		zap.String("node_id", nodeID),
		zap.Int("advisory_batch_size", gpu.EstimateMaxBatchSize(snap.VRAMTotalMB)),
		zap.Int("max_concurrent_jobs", s.cfg.MaxConcurrentJobs),
	)
	if s.cfg.MaxConcurrentJobs > 1 {
		// The job pipeline is serial; the setting is accepted and reserved.
		s.logger.Warn("max_concurrent_jobs > 1 requested, running jobs serially")
	}

	dispatcher := jobs.NewDispatcher(jobs.NewRegistry(), s.backend, s.ledger, s.logger)

	heartbeat := NewHeartbeatLoop(s.backend, s.cfg.HeartbeatInterval, s.logger)
	telemetryLoop := NewTelemetryLoop(
		telemetry.NewCollector(s.logger),
		s.builder,
		s.ledger,
		s.publisher,
		s.identity,
		s.sessionID,
		s.cfg.TelemetryInterval,
		s.logger,
	)
	jobLoop := NewJobLoop(s.backend, dispatcher, s.cfg.JobPollInterval, s.logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); heartbeat.Run(ctx) }()
	go func() { defer wg.Done(); telemetryLoop.Run(ctx) }()
	go func() { defer wg.Done(); jobLoop.Run(ctx) }()

	s.logger.Info("Agent running")
	<-ctx.Done()

	s.logger.Info("Shutdown signal received, stopping loops")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Agent stopped")
	case <-time.After(s.grace):
		s.logger.Warn("Shutdown grace period elapsed, exiting with loops still draining")
	}
	return nil
}

func shortWallet(wallet string) string {
	if len(wallet) <= 8 {
		return wallet
	}
	return wallet[:8] + "..."
}
