package main

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRunThrottleEndToEnd(t *testing.T) {
	up, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer up.Close()
	go func() {
		c, err := up.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	cfg := &Config{
		Server:                up.Addr().String(),
		Bind:                  freeAddr(t),
		DownloadSpeed:         1 << 20,
		UploadSpeed:           1 << 20,
		LimitServerRecvWindow: true,
		BufferSize:            4096,
	}
	require.NoError(t, cfg.Validate())

	done := make(chan error, 1)
	go func() { done <- runThrottle(context.Background(), cfg) }()

	var client net.Conn
	require.Eventually(t, func() bool {
		client, err = net.Dial("tcp", cfg.Bind)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	msg := []byte("through the throttle")
	_, err = client.Write(msg)
	require.NoError(t, err)
	got := make([]byte, len(msg))
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	require.NoError(t, client.Close())
	select {
	case err := <-done:
		assert.NoError(t, err, "client end-of-stream is a clean exit")
	case <-time.After(5 * time.Second):
		t.Fatal("runThrottle did not return")
	}
}

func TestRunThrottleUpstreamDown(t *testing.T) {
	cfg := &Config{Server: freeAddr(t), Bind: freeAddr(t), DownloadSpeed: 10, UploadSpeed: 10, BufferSize: 16}

	done := make(chan error, 1)
	go func() { done <- runThrottle(context.Background(), cfg) }()

	var client net.Conn
	var err error
	require.Eventually(t, func() bool {
		client, err = net.Dial("tcp", cfg.Bind)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
	defer client.Close()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connect")
	case <-time.After(5 * time.Second):
		t.Fatal("runThrottle did not return")
	}
}
