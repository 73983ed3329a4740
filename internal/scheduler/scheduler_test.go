package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

type countingEngine struct {
	calls atomic.Int32
	err   error
}

func (e *countingEngine) Run(context.Context) (*domain.RunSummary, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return domain.NewRunSummary("run-1", time.Now()), nil
}

var businessTZ = time.FixedZone("UTC-6", -6*3600)

func TestRunScheduler_NextRunInBusinessTimezone(t *testing.T) {
	s := NewRunScheduler(&countingEngine{}, "0 9 * * *", businessTZ, logger.NewNopLogger())
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	next := s.NextRun().In(businessTZ)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestRunScheduler_InvalidSchedule(t *testing.T) {
	s := NewRunScheduler(&countingEngine{}, "every morning", businessTZ, logger.NewNopLogger())
	assert.Error(t, s.Start())
}

func TestRunScheduler_Execute(t *testing.T) {
	engine := &countingEngine{}
	s := NewRunScheduler(engine, "0 9 * * *", businessTZ, logger.NewNopLogger())

	s.Execute()
	assert.Equal(t, int32(1), engine.calls.Load())

	// errors are logged, never panic
	engine.err = domain.ErrRunInProgress
	s.Execute()
	engine.err = domain.ErrStoreUnavailable
	s.Execute()
	assert.Equal(t, int32(3), engine.calls.Load())
}
