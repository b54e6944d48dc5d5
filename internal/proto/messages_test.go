package proto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotJSONFieldNames(t *testing.T) {
	s := Snapshot{
		SessionID:           "abc",
		At:                  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Server:              QueueDepth{Bytes: 500, Available: true},
		DownloadWindowBytes: 1024,
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "abc", m["session_id"])
	assert.Equal(t, map[string]any{"bytes": float64(500), "available": true}, m["server"])
	assert.Equal(t, map[string]any{"bytes": float64(0), "available": false}, m["client"])
	assert.Equal(t, float64(1024), m["download_window_bytes"])
	assert.Equal(t, "2024-01-02T03:04:05Z", m["at"])
}
