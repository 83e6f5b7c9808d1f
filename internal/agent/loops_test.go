package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/gpu"
	"github.com/hypernode-labs/node-agent/internal/jobs"
	"github.com/hypernode-labs/node-agent/internal/telemetry"
)

type fakeHeartbeatBackend struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *fakeHeartbeatBackend) Heartbeat(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.err
}

func (b *fakeHeartbeatBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func runLoop(t *testing.T, d time.Duration, run func(ctx context.Context)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan struct{})
	go func() {
		run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d + 2*time.Second):
		t.Fatal("loop did not stop after context cancellation")
	}
}

func TestHeartbeatLoopKeepsRunningThroughFailures(t *testing.T) {
	backend := &fakeHeartbeatBackend{err: errors.New("backend unreachable")}
	loop := NewHeartbeatLoop(backend, time.Millisecond, zap.NewNop())
	loop.recovery = time.Millisecond

	runLoop(t, 60*time.Millisecond, loop.Run)

	// Far more than three failures, and the loop was still attempting.
	assert.GreaterOrEqual(t, backend.count(), 4)
}

func TestHeartbeatLoopStopsOnCancel(t *testing.T) {
	backend := &fakeHeartbeatBackend{}
	loop := NewHeartbeatLoop(backend, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
		assert.Equal(t, 1, backend.count())
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat loop ignored cancellation")
	}
}

type panickingHeartbeat struct {
	mu    sync.Mutex
	calls int
}

func (b *panickingHeartbeat) Heartbeat(ctx context.Context) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	panic("broken transport")
}

func (b *panickingHeartbeat) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestHeartbeatLoopSurvivesPanics(t *testing.T) {
	backend := &panickingHeartbeat{}
	loop := NewHeartbeatLoop(backend, time.Millisecond, zap.NewNop())
	loop.recovery = time.Millisecond

	runLoop(t, 40*time.Millisecond, loop.Run)

	assert.GreaterOrEqual(t, backend.count(), 2)
}

type queueJobBackend struct {
	mu    sync.Mutex
	queue []*jobs.Description
	errs  []error
	polls int
}

func (b *queueJobBackend) ListAvailableJobs(ctx context.Context) (*jobs.Description, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(b.queue) == 0 {
		return nil, nil
	}
	job := b.queue[0]
	b.queue = b.queue[1:]
	return job, nil
}

func (b *queueJobBackend) pollCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}

type recordingDispatcher struct {
	mu     sync.Mutex
	jobIDs []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job *jobs.Description) jobs.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobIDs = append(d.jobIDs, job.ID)
	return jobs.StateDone
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.jobIDs...)
}

func TestJobLoopDispatchesQueuedJobsInOrder(t *testing.T) {
	backend := &queueJobBackend{queue: []*jobs.Description{
		{ID: "job-1", Type: "generic"},
		{ID: "job-2", Type: "generic"},
	}}
	dispatcher := &recordingDispatcher{}
	loop := NewJobLoop(backend, dispatcher, time.Millisecond, zap.NewNop())
	loop.recovery = time.Millisecond

	runLoop(t, 50*time.Millisecond, loop.Run)

	assert.Equal(t, []string{"job-1", "job-2"}, dispatcher.dispatched())
	// Empty polls after the queue drained mean the loop kept going.
	assert.Greater(t, backend.pollCount(), 2)
}

func TestJobLoopRecoversFromPollErrors(t *testing.T) {
	backend := &queueJobBackend{
		errs:  []error{errors.New("poll failed"), errors.New("poll failed")},
		queue: []*jobs.Description{{ID: "job-after-errors", Type: "generic"}},
	}
	dispatcher := &recordingDispatcher{}
	loop := NewJobLoop(backend, dispatcher, time.Millisecond, zap.NewNop())
	loop.recovery = time.Millisecond

	runLoop(t, 60*time.Millisecond, loop.Run)

	assert.Equal(t, []string{"job-after-errors"}, dispatcher.dispatched())
}

type fakeCollector struct {
	stats telemetry.SystemStats
}

func (c *fakeCollector) Collect() telemetry.SystemStats { return c.stats }

type fakeMonitor struct {
	health gpu.HealthStatus
}

func (m *fakeMonitor) MonitorHealth() gpu.HealthStatus { return m.health }

type recordingPublisher struct {
	mu      sync.Mutex
	reports []telemetry.Report
	err     error
}

func (p *recordingPublisher) Publish(report telemetry.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []telemetry.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Report(nil), p.reports...)
}

func newTestTelemetryLoop(publisher telemetry.Publisher, ledger *jobs.Ledger) *TelemetryLoop {
	identity := &NodeIdentity{}
	identity.set("node-1")
	loop := NewTelemetryLoop(
		&fakeCollector{stats: telemetry.SystemStats{CPUPercent: 12.5, RAMPercent: 40}},
		&fakeMonitor{health: gpu.HealthStatus{Healthy: true, Stats: map[string]float64{"gpu_temp_c": 61}}},
		ledger,
		publisher,
		identity,
		"session-1",
		time.Millisecond,
		zap.NewNop(),
	)
	loop.recovery = time.Millisecond
	return loop
}

func TestTelemetryLoopPublishesReports(t *testing.T) {
	publisher := &recordingPublisher{}
	ledger := jobs.NewLedger()
	ledger.RecordFailure()
	loop := newTestTelemetryLoop(publisher, ledger)

	runLoop(t, 30*time.Millisecond, loop.Run)

	reports := publisher.published()
	require.NotEmpty(t, reports)

	first := reports[0]
	assert.Equal(t, "session-1", first.SessionID)
	assert.Equal(t, "node-1", first.NodeID)
	assert.Equal(t, 12.5, first.System.CPUPercent)
	assert.True(t, first.Health.Healthy)
	assert.Equal(t, 61.0, first.GPU["gpu_temp_c"])
	assert.Equal(t, "0", first.EarningsTotal)
	assert.Equal(t, 1, first.JobsFailed)
}

func TestTelemetryLoopRunsWithoutPublisher(t *testing.T) {
	loop := newTestTelemetryLoop(nil, jobs.NewLedger())
	runLoop(t, 20*time.Millisecond, loop.Run)
}

func TestTelemetryLoopKeepsRunningOnPublishErrors(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("nats disconnected")}
	loop := newTestTelemetryLoop(publisher, jobs.NewLedger())

	runLoop(t, 40*time.Millisecond, loop.Run)

	assert.GreaterOrEqual(t, len(publisher.published()), 2)
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
}

func TestGuardConvertsPanicToError(t *testing.T) {
	err := guard("test", func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, guard("test", func() error { return nil }))
}
