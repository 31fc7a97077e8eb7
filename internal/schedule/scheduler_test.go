package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T) *Gocron {
	t.Helper()
	s, err := NewGocron(nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestEveryFiresRepeatedly(t *testing.T) {
	s := newScheduler(t)

	var runs int32
	cancel, err := s.Every(20*time.Millisecond, func() { atomic.AddInt32(&runs, 1) })
	require.NoError(t, err)
	defer cancel()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestEveryRejectsNonPositive(t *testing.T) {
	s := newScheduler(t)

	_, err := s.Every(0, func() {})
	assert.Error(t, err)
}

func TestEveryDoesNotOverlap(t *testing.T) {
	s := newScheduler(t)

	var active, maxActive int32
	cancel, err := s.Every(5*time.Millisecond, func() {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&active, -1)
	})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	cancel()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestOnceFiresOnce(t *testing.T) {
	s := newScheduler(t)

	var runs int32
	_, err := s.Once(20*time.Millisecond, func() { atomic.AddInt32(&runs, 1) })
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestCancelStopsJobs(t *testing.T) {
	s := newScheduler(t)

	var once, every int32
	cancelOnce, err := s.Once(100*time.Millisecond, func() { atomic.AddInt32(&once, 1) })
	require.NoError(t, err)
	cancelEvery, err := s.Every(100*time.Millisecond, func() { atomic.AddInt32(&every, 1) })
	require.NoError(t, err)

	cancelOnce()
	cancelOnce()
	cancelEvery()

	time.Sleep(250 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&once))
	assert.Zero(t, atomic.LoadInt32(&every))
}

func TestShutdown(t *testing.T) {
	s, err := NewGocron(nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())

	_, err = s.Every(time.Second, func() {})
	assert.Error(t, err)
}
