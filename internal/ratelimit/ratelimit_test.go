package ratelimit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRemaining(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		bufCap   int
		consumed int
		want     int
	}{
		{name: "fresh window bounded by limit", limit: 1024, bufCap: 16384, want: 1024},
		{name: "fresh window bounded by buffer", limit: 1 << 20, bufCap: 16384, want: 16384},
		{name: "partially consumed", limit: 1024, bufCap: 16384, consumed: 1000, want: 24},
		{name: "fully consumed", limit: 1024, bufCap: 16384, consumed: 1024, want: 0},
		{name: "zero limit", limit: 0, bufCap: 16384, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.limit, tt.limit, tt.bufCap)
			require.NoError(t, tr.Record(Download, tt.consumed))
			assert.Equal(t, tt.want, tr.Remaining(Download))
			// the other direction is independent
			assert.Equal(t, min(int(tt.limit), tt.bufCap), tr.Remaining(Upload))
		})
	}
}

func TestTrackerRecordRefusesOverBudget(t *testing.T) {
	tr := NewTracker(100, 100, 64)
	require.NoError(t, tr.Record(Upload, 64))
	require.NoError(t, tr.Record(Upload, 30))

	err := tr.Record(Upload, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverBudget))
	assert.Equal(t, int64(94), tr.Consumed(Upload), "refused record must not mutate")
	assert.Equal(t, 6, tr.Remaining(Upload))

	require.Error(t, tr.Record(Upload, -1))
	assert.Equal(t, int64(94), tr.Consumed(Upload))
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(10, 20, 64)
	require.NoError(t, tr.Record(Download, 10))
	require.NoError(t, tr.Record(Upload, 5))
	assert.Equal(t, 0, tr.Remaining(Download))

	u := tr.Reset()
	assert.Equal(t, int64(10), u.Download)
	assert.Equal(t, int64(5), u.Get(Upload))
	assert.Equal(t, 10, tr.Remaining(Download))
	assert.Equal(t, 20, tr.Remaining(Upload))
	assert.Zero(t, tr.Consumed(Download))
}

func TestTrackerZeroLimitStarvesForever(t *testing.T) {
	tr := NewTracker(0, 1000, 16384)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, tr.Remaining(Download))
		require.NoError(t, tr.Record(Download, 0))
		require.Error(t, tr.Record(Download, 1))
		tr.Reset()
	}
	assert.Equal(t, 1000, tr.Remaining(Upload))
}

func TestTrackerConsumedNeverExceedsLimit(t *testing.T) {
	// Drive the tracker the way the relay loop does: always read the full
	// remaining budget, record it, and reset periodically.
	tr := NewTracker(1000, 333, 128)
	for i := 0; i < 200; i++ {
		for _, d := range Directions {
			n := tr.Remaining(d)
			require.NoError(t, tr.Record(d, n))
			require.LessOrEqual(t, tr.Consumed(d), tr.Limit(d))
		}
		if i%7 == 6 {
			tr.Reset()
		}
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "download", Download.String())
	assert.Equal(t, "upload", Upload.String())
	assert.Equal(t, "direction(7)", Direction(7).String())
}
