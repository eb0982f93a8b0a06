package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	runs atomic.Int32
	err  error
}

func (c *countingRunner) Run(context.Context) (*domain.RunSummary, error) {
	c.runs.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &domain.RunSummary{RunID: "r"}, nil
}

type recordingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (p *recordingPruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 1, nil
}

func TestMonitorTickRunsAndPrunes(t *testing.T) {
	runner := &countingRunner{}
	pruner := &recordingPruner{}
	svc := NewMonitorService(runner, pruner, time.Hour, 72*time.Hour)
	svc.now = func() time.Time { return testNow }

	svc.tick(context.Background())

	assert.EqualValues(t, 1, runner.runs.Load())
	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, testNow.Add(-72*time.Hour), pruner.cutoffs[0])
}

func TestMonitorTickToleratesLockedRun(t *testing.T) {
	runner := &countingRunner{err: domain.ErrRunInProgress}
	pruner := &recordingPruner{}
	NewMonitorService(runner, pruner, time.Hour, time.Hour).tick(context.Background())

	assert.EqualValues(t, 1, runner.runs.Load())
	assert.Len(t, pruner.cutoffs, 1)
}

func TestMonitorStartLoopsUntilCancelled(t *testing.T) {
	runner := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewMonitorService(runner, nil, 5*time.Millisecond, 0).Start(ctx)
	assert.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestMonitorDisabledWithoutInterval(t *testing.T) {
	runner := &countingRunner{}
	NewMonitorService(runner, nil, 0, 0).Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runner.runs.Load())
}
