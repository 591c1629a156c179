package eventloop

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startLoop binds an ephemeral loopback port, runs a Loop against it in a
// background goroutine, and returns the address clients should dial plus a
// stop func that shuts the loop down.
func startLoop(t *testing.T) (addr string, stop func()) {
	t.Helper()

	fd, err := Listen("127.0.0.1", 0)
	require.NoError(t, err)

	sa, err := Addr(fd)
	require.NoError(t, err)

	poller, err := NewPoller()
	require.NoError(t, err)

	loop, err := New(fd, poller, "/data", "dump.rdb", nil, nil)
	require.NoError(t, err)

	stopCh := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- loop.Run(stopCh) }()

	return sa, func() {
		close(stopCh)
		<-done
	}
}

func dial(t *testing.T, addr string) net.Conn {
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

func TestPingPongOverRealSocket(t *testing.T) {
	addr, stop := startLoop(t)
	defer stop()

	c := dial(t, addr)
	defer c.Close()

	_, err := c.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)

	reply, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", reply)
}

func TestSetGetRoundTripOverRealSocket(t *testing.T) {
	addr, stop := startLoop(t)
	defer stop()

	c := dial(t, addr)
	defer c.Close()

	_, err := c.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"))
	require.NoError(t, err)
	r := bufio.NewReader(c)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", line)

	_, err = c.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	require.NoError(t, err)
	header, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "$1\r\n", header)
}
