// Command tcpthrottle relays one TCP connection to an upstream server while
// capping the transfer rate of each direction.
//
//	tcpthrottle throttle --server 127.0.0.1:8080 --bind 127.0.0.1:9090 \
//	    --client-download-speed 1024 --client-upload-speed 1024
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matst80/tcpthrottle/internal/obs"
	"github.com/matst80/tcpthrottle/internal/relay"
	"github.com/matst80/tcpthrottle/internal/snapshot"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tcpthrottle: %v\n", err)
	}
	os.Exit(relay.ExitCode(err))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tcpthrottle",
		Short:         "Bandwidth-throttled relay for a single TCP connection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &relay.Error{Kind: relay.KindSetup, Op: "flags", Err: err}
	})
	root.AddCommand(newThrottleCmd())
	return root
}

func newThrottleCmd() *cobra.Command {
	var cfg Config
	cmd := &cobra.Command{
		Use:   "throttle",
		Short: "Accept one client, connect upstream and relay under per-direction byte limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runThrottle(cmd.Context(), &cfg)
		},
	}
	cfg.bindFlags(cmd)
	return cmd
}

func runThrottle(ctx context.Context, cfg *Config) error {
	closeLog := obs.Setup(obs.LogConfig{Debug: cfg.Debug, File: cfg.LogFile, MaxSizeMB: 50, MaxBackups: 3})
	defer closeLog()
	obs.Info("tcpthrottle.start", obs.Fields{
		"server":            cfg.Server,
		"bind":              cfg.Bind,
		"download_limit":    cfg.DownloadSpeed,
		"upload_limit":      cfg.UploadSpeed,
		"recv_window_limit": cfg.LimitServerRecvWindow,
	})

	store, err := snapshot.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, relay.DefaultWindow)
	if err != nil {
		return &relay.Error{Kind: relay.KindSetup, Op: "snapshot store", Err: err}
	}
	defer store.Close()

	health := &healthState{}
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, health, store)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	ln, err := relay.Listen(cfg.Bind)
	if err != nil {
		return err
	}
	obs.Info("tcpthrottle.listening", obs.Fields{"addr": ln.Addr().String()})
	client, err := relay.AcceptOne(ctx, ln)
	if err != nil {
		return err
	}
	server, err := relay.DialUpstream(ctx, cfg.Server, relay.DialOptions{
		LimitRecvWindow: cfg.LimitServerRecvWindow,
		RecvWindow:      cfg.DownloadSpeed,
	})
	if err != nil {
		_ = client.Close()
		return err
	}

	status := snapshot.NewStatusLine(os.Stdout)
	defer status.Finish()
	sess, err := relay.New(client, server, relay.Config{
		DownloadLimit: cfg.DownloadSpeed,
		UploadLimit:   cfg.UploadSpeed,
		BufferSize:    cfg.BufferSize,
		Policy:        cfg.policy(),
		Reporter:      snapshot.Multi{status, store},
	})
	if err != nil {
		_ = client.Close()
		_ = server.Close()
		return err
	}
	health.setSession(sess.ID())
	defer health.setSession("")
	return sess.Run(ctx)
}
