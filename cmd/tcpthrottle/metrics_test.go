package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matst80/tcpthrottle/internal/proto"
	"github.com/matst80/tcpthrottle/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMux(t *testing.T) {
	state := &healthState{}
	store := snapshot.NewMemoryStore()
	srv := httptest.NewServer(newMetricsMux(state, store))
	defer srv.Close()

	get := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/healthz").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/api/snapshot").StatusCode)
	assert.Equal(t, http.StatusOK, get("/metrics").StatusCode)

	state.setSession("s1")
	assert.Equal(t, http.StatusOK, get("/readyz").StatusCode)
	assert.Equal(t, http.StatusNoContent, get("/api/snapshot").StatusCode)

	require.NoError(t, store.Report(context.Background(), proto.Snapshot{SessionID: "s1", UploadWindowBytes: 7}))
	resp := get("/api/snapshot")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s proto.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, int64(7), s.UploadWindowBytes)

	state.setSession("")
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").StatusCode)
}
