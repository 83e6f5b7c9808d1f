package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/gpu"
)

type fakeRegisterBackend struct {
	calls   int
	errs    []error // consumed per attempt; nil entry means success
	nodeIDs []string
}

func (b *fakeRegisterBackend) Register(ctx context.Context, snap gpu.Snapshot) (string, error) {
	i := b.calls
	b.calls++
	if i < len(b.errs) && b.errs[i] != nil {
		return "", b.errs[i]
	}
	if i < len(b.nodeIDs) {
		return b.nodeIDs[i], nil
	}
	return "node-default", nil
}

type fakeDetector struct {
	snap gpu.Snapshot
}

func (d *fakeDetector) Detect() gpu.Snapshot { return d.snap }

func newTestController(backend registerBackend) *RegistrationController {
	rc := NewRegistrationController(backend, &fakeDetector{snap: gpu.Snapshot{
		GPUModel:     "NVIDIA GeForce RTX 4090",
		VRAMTotalMB:  24 * 1024,
		Capabilities: []string{gpu.CapInference},
	}}, zap.NewNop())
	rc.retryDelay = time.Millisecond
	return rc
}

func TestRegisterFirstAttemptSucceeds(t *testing.T) {
	backend := &fakeRegisterBackend{nodeIDs: []string{"node-1"}}
	rc := newTestController(backend)

	snap, nodeID, err := rc.Register(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "node-1", nodeID)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", snap.GPUModel)
	assert.Equal(t, 1, backend.calls)
}

func TestRegisterRetriesOnceThenSucceeds(t *testing.T) {
	backend := &fakeRegisterBackend{
		errs:    []error{errors.New("connection refused"), nil},
		nodeIDs: []string{"", "node-2"},
	}
	rc := newTestController(backend)

	_, nodeID, err := rc.Register(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "node-2", nodeID)
	assert.Equal(t, 2, backend.calls)
}

func TestRegisterSecondFailureIsFatal(t *testing.T) {
	backend := &fakeRegisterBackend{
		errs: []error{errors.New("first failure"), errors.New("second failure"), errors.New("never reached")},
	}
	rc := newTestController(backend)

	_, _, err := rc.Register(context.Background())
	require.Error(t, err)

	assert.Equal(t, 2, backend.calls, "exactly one retry, never a third attempt")
	assert.Contains(t, err.Error(), "registration failed after retry")
	assert.Contains(t, err.Error(), "second failure")
}

func TestRegisterHonorsContextCancellation(t *testing.T) {
	backend := &fakeRegisterBackend{
		errs: []error{errors.New("down"), errors.New("down")},
	}
	rc := NewRegistrationController(backend, &fakeDetector{}, zap.NewNop())
	// Keep the production retry delay; cancellation must cut the wait short.

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := rc.Register(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, backend.calls)
	case <-time.After(2 * time.Second):
		t.Fatal("registration did not stop on context cancellation")
	}
}

func TestNodeIdentityWriteOnce(t *testing.T) {
	var identity NodeIdentity
	assert.Empty(t, identity.ID())

	identity.set("node-1")
	identity.set("node-2")
	assert.Equal(t, "node-1", identity.ID())
}
