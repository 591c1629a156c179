package kvsrv

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/behrlich/kvsrv/internal/config"
)

func startTestServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Port = 0
	cfg.Bind = "127.0.0.1"

	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return srv.Addr(), srv
}

func dialServer(t *testing.T, addr string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", addr, err)
	return nil
}

func TestServerServesPingAndRecordsMetrics(t *testing.T) {
	addr, srv := startTestServer(t)

	c := dialServer(t, addr)
	defer c.Close()

	if _, err := c.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply != "+PONG\r\n" {
		t.Fatalf("reply = %q, want +PONG", reply)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if srv.Metrics().Snapshot().CommandsProcessed >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected metrics to record the PING command")
}
