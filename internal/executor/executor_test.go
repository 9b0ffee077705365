package executor

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToNumCPU(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), New(0).Workers())
	assert.Equal(t, runtime.NumCPU(), New(-3).Workers())
	assert.Equal(t, 3, New(3).Workers())
}

func TestMapRunsEveryTaskIntoItsOwnSlot(t *testing.T) {
	p := New(4)
	out := make([]int, 100)
	err := p.Map(context.Background(), len(out), func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestMapEmptyBatch(t *testing.T) {
	called := false
	err := New(2).Map(context.Background(), 0, func(context.Context, int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestMapBoundsConcurrency(t *testing.T) {
	const workers = 3
	var running, peak atomic.Int32

	err := New(workers).Map(context.Background(), 30, func(context.Context, int) error {
		now := running.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Positive(t, peak.Load())
}

func TestMapReportsLowestIndexFailure(t *testing.T) {
	errLate := errors.New("late")
	errEarly := errors.New("early")
	release := make(chan struct{})

	err := New(4).Map(context.Background(), 4, func(ctx context.Context, i int) error {
		switch i {
		case 1:
			<-release
			return errEarly
		case 3:
			defer close(release)
			return errLate
		default:
			<-ctx.Done()
			return ctx.Err()
		}
	})
	assert.ErrorIs(t, err, errEarly)
}

func TestMapCancelsRemainingTasks(t *testing.T) {
	boom := errors.New("boom")
	var started atomic.Int32

	err := New(1).Map(context.Background(), 10, func(_ context.Context, i int) error {
		started.Add(1)
		if i == 0 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), started.Load())
}

func TestMapParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(2).Map(ctx, 5, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
