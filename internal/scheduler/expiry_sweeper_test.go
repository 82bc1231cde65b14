package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExpiryProcessor struct {
	mock.Mock
}

func (m *MockExpiryProcessor) ProcessExpiredSessions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpirySweeper_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("ReportsProcessedCount", func(t *testing.T) {
		processor := &MockExpiryProcessor{}
		processor.On("ProcessExpiredSessions", mock.Anything).Return(3, nil).Once()

		sweeper, err := NewExpirySweeper(processor, testLogger(), "@every 1m", time.Minute)
		require.NoError(t, err)

		processed, err := sweeper.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, processed)
		processor.AssertExpectations(t)
	})

	t.Run("PropagatesFailure", func(t *testing.T) {
		processor := &MockExpiryProcessor{}
		processor.On("ProcessExpiredSessions", mock.Anything).Return(1, errors.New("db down")).Once()

		sweeper, err := NewExpirySweeper(processor, testLogger(), "@every 1m", time.Minute)
		require.NoError(t, err)

		processed, err := sweeper.RunOnce(ctx)
		assert.EqualError(t, err, "db down")
		assert.Equal(t, 1, processed)
	})
}

func TestExpirySweeper_InvalidSchedule(t *testing.T) {
	_, err := NewExpirySweeper(&MockExpiryProcessor{}, testLogger(), "every now and then", time.Minute)
	assert.Error(t, err)
}

func TestExpirySweeper_StartStop(t *testing.T) {
	processor := &MockExpiryProcessor{}
	sweeper, err := NewExpirySweeper(processor, testLogger(), "@every 1h", time.Minute)
	require.NoError(t, err)

	sweeper.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sweeper.Stop(ctx))
	processor.AssertNotCalled(t, "ProcessExpiredSessions", mock.Anything)
}
