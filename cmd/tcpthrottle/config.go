package main

import (
	"errors"
	"fmt"

	"github.com/matst80/tcpthrottle/internal/relay"
	"github.com/spf13/cobra"
)

// Config holds all runtime configuration derived from flags.
type Config struct {
	Server                string
	Bind                  string
	DownloadSpeed         int64
	UploadSpeed           int64
	LimitServerRecvWindow bool
	BufferSize            int
	StrictDiagnostics     bool
	MetricsAddr           string
	Debug                 bool
	LogFile               string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
}

// bindFlags registers the throttle flags on cmd. Names match the
// long-standing CLI: --server, --bind, --client-download-speed, ...
func (c *Config) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.Server, "server", "", "upstream address to connect to (host:port)")
	f.StringVar(&c.Bind, "bind", "", "local address to accept the single client connection on (host:port)")
	f.Int64Var(&c.DownloadSpeed, "client-download-speed", 0, "server -> client limit in bytes per second (0 blocks the direction)")
	f.Int64Var(&c.UploadSpeed, "client-upload-speed", 0, "client -> server limit in bytes per second (0 blocks the direction)")
	f.BoolVar(&c.LimitServerRecvWindow, "limit-server-stream-recv-window", false, "also cap the upstream socket receive buffer at the download limit (set once at connect)")
	f.IntVar(&c.BufferSize, "buffer-size", relay.DefaultBufferSize, "maximum bytes moved by a single read")
	f.BoolVar(&c.StrictDiagnostics, "strict-diagnostics", false, "end the session when a queue-depth probe fails instead of skipping the status update")
	f.StringVar(&c.MetricsAddr, "metrics", "", "metrics and health listen address (empty disables)")
	f.BoolVar(&c.Debug, "debug", false, "enable debug logs")
	f.StringVar(&c.LogFile, "log-file", "", "write logs to this rotating file instead of stderr")
	f.StringVar(&c.RedisAddr, "redis-addr", "", "publish per-window snapshots to this Redis server")
	f.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	f.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number")
}

// Validate rejects configurations that cannot start a session.
func (c *Config) Validate() error {
	var errs []error
	if c.Server == "" {
		errs = append(errs, errors.New("--server is required"))
	}
	if c.Bind == "" {
		errs = append(errs, errors.New("--bind is required"))
	}
	if c.DownloadSpeed < 0 {
		errs = append(errs, fmt.Errorf("--client-download-speed must be >= 0, got %d", c.DownloadSpeed))
	}
	if c.UploadSpeed < 0 {
		errs = append(errs, fmt.Errorf("--client-upload-speed must be >= 0, got %d", c.UploadSpeed))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("--buffer-size must be > 0, got %d", c.BufferSize))
	}
	if err := errors.Join(errs...); err != nil {
		return &relay.Error{Kind: relay.KindSetup, Op: "validate", Err: err}
	}
	return nil
}

func (c *Config) policy() relay.Policy {
	if c.StrictDiagnostics {
		return relay.StrictPolicy
	}
	return relay.DefaultPolicy
}
