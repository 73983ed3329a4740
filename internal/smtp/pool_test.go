package smtp

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	calls := 0
	pool := NewPoolWithDialer(Config{Host: "mail.example.com", Port: 587}, 2, func(_ context.Context, cfg Config) (*Conn, error) {
		calls++
		assert.Equal(t, "mail.example.com:587", cfg.Addr())
		return nil, dialErr
	})

	_, err := pool.Get(context.Background())
	require.ErrorIs(t, err, dialErr)
	assert.Equal(t, 1, calls)
}

func TestPool_NoNetworkUntilGet(t *testing.T) {
	calls := 0
	pool := NewPoolWithDialer(Config{}, 3, func(context.Context, Config) (*Conn, error) {
		calls++
		return nil, errors.New("unused")
	})
	assert.Equal(t, 0, calls)
	assert.Equal(t, 3, pool.Size())
}

func TestPool_Closed(t *testing.T) {
	pool := NewPoolWithDialer(Config{}, 0, func(context.Context, Config) (*Conn, error) {
		t.Fatal("dial after close")
		return nil, nil
	})
	assert.Equal(t, 1, pool.Size(), "size is clamped to at least one")

	pool.Close()
	pool.Close()

	_, err := pool.Get(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	// returning nil is a no-op
	pool.Put(nil)
}

func TestPool_GetRacingClose(t *testing.T) {
	pool := NewPoolWithDialer(Config{}, 1, func(context.Context, Config) (*Conn, error) {
		t.Fatal("dial from a drained pool")
		return nil, nil
	})

	// Close won the race after Get saw the pool open: the channel is closed
	// but the flag check already passed
	close(pool.connections)

	client, err := pool.Get(context.Background())
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestConfig_Timeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Config{}.timeout())
	assert.Equal(t, 5*time.Second, Config{Timeout: 5 * time.Second}.timeout())
}

// silentServer accepts connections and never sends a greeting
func silentServer(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().(*net.TCPAddr)
}

func TestDial_StalledGreetingHonoursContext(t *testing.T) {
	addr := silentServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Dial(ctx, Config{Host: "127.0.0.1", Port: addr.Port})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDial_StalledGreetingHonoursConfigTimeout(t *testing.T) {
	addr := silentServer(t)

	start := time.Now()
	_, err := Dial(context.Background(), Config{Host: "127.0.0.1", Port: addr.Port, Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
