package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/gpu"
)

// registrationRetryDelay is the fixed wait before the single retry.
const registrationRetryDelay = 30 * time.Second

// registerBackend is the slice of the backend client registration needs.
type registerBackend interface {
	Register(ctx context.Context, snap gpu.Snapshot) (string, error)
}

// snapshotDetector is satisfied by *gpu.Builder.
type snapshotDetector interface {
	Detect() gpu.Snapshot
}

// RegistrationController joins the node to the network. A failed attempt is
// retried exactly once after a fixed delay; a second failure is fatal, as
// the agent must not run unregistered.
type RegistrationController struct {
	backend    registerBackend
	builder    snapshotDetector
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewRegistrationController(backend registerBackend, builder snapshotDetector, logger *zap.Logger) *RegistrationController {
	return &RegistrationController{
		backend:    backend,
		builder:    builder,
		retryDelay: registrationRetryDelay,
		logger:     logger,
	}
}

// Register detects hardware and registers the node, returning the snapshot
// that was advertised and the backend-assigned node id.
func (rc *RegistrationController) Register(ctx context.Context) (gpu.Snapshot, string, error) {
	rc.logger.Info("Detecting hardware specifications")
	snap := rc.builder.Detect()
	rc.logger.Info("Hardware detected",
		zap.String("gpu_model", snap.GPUModel),
		zap.Uint64("vram_mb", snap.VRAMTotalMB),
		zap.String("driver", snap.DriverVersion),
		zap.Strings("capabilities", snap.Capabilities),
	)

	var nodeID string
	attempt := 0
	operation := func() error {
		attempt++
		id, err := rc.backend.Register(ctx, snap)
		if err != nil {
			rc.logger.Error("Registration attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_delay", rc.retryDelay),
				zap.Error(err),
			)
			return err
		}
		nodeID = id
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(rc.retryDelay), 1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return snap, "", fmt.Errorf("registration failed after retry: %w", err)
	}

	rc.logger.Info("Node registered successfully", zap.String("node_id", nodeID))
	return snap, nodeID, nil
}
