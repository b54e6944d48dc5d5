package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/matst80/tcpthrottle/internal/obs"
	"github.com/matst80/tcpthrottle/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthState tracks readiness for /readyz and the session served by /api/snapshot.
type healthState struct {
	mu        sync.Mutex
	ready     bool
	sessionID string
}

func (h *healthState) setSession(id string) {
	h.mu.Lock()
	h.ready, h.sessionID = id != "", id
	h.mu.Unlock()
}

func (h *healthState) get() (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready, h.sessionID
}

func newMetricsMux(state *healthState, store snapshot.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		_, id := state.get()
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s, ok, err := store.Latest(r.Context(), id)
		if err != nil {
			obs.Error("metrics.snapshot", obs.Fields{"err": err.Error()})
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready, _ := state.get(); !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// startMetricsServer serves Prometheus metrics, health endpoints and the latest snapshot.
func startMetricsServer(addr string, state *healthState, store snapshot.Store) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newMetricsMux(state, store)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Error("metrics.server", obs.Fields{"err": err.Error(), "addr": addr})
		}
	}()
	return srv
}
