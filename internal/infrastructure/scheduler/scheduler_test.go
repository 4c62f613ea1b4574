package scheduler

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop(), 0)

	err := s.AddJob("not a schedule", JobFunc{JobName: "noop", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestAddJobAcceptsDescriptors(t *testing.T) {
	s := New(zerolog.Nop(), 0)
	job := JobFunc{JobName: "noop", Fn: func(context.Context) error { return nil }}

	require.NoError(t, s.AddJob("@hourly", job))
	require.NoError(t, s.AddJob("@every 30m", job))
	require.NoError(t, s.AddJob("0 6 * * MON-FRI", job))
	assert.Len(t, s.cron.Entries(), 3)
}

func TestRunNowLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	s := New(zerolog.New(&buf), 0)

	err := s.RunNow(JobFunc{JobName: "reconcile", Fn: func(context.Context) error { return errors.New("boom") }})

	require.Error(t, err)
	assert.Contains(t, buf.String(), `"job":"reconcile"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := New(zerolog.Nop(), 20*time.Millisecond)

	err := s.RunNow(JobFunc{JobName: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(zerolog.Nop(), 0)
	s.Start()
	s.Stop()

	err := s.RunNow(JobFunc{JobName: "after-stop", Fn: func(ctx context.Context) error { return ctx.Err() }})
	assert.ErrorIs(t, err, context.Canceled)
}
