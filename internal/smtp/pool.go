package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"sync"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/metrics"
)

// ErrPoolClosed is returned by Get after Close
var ErrPoolClosed = errors.New("connection pool is closed")

// DefaultTimeout bounds dialing and each session when the caller's context
// has no deadline
const DefaultTimeout = 30 * time.Second

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

// Addr returns host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Conn is an SMTP session together with the connection it runs on, so
// callers can bound its commands with a deadline
type Conn struct {
	*smtp.Client
	conn net.Conn
}

// SetDeadline bounds every pending and future command on the session
func (c *Conn) SetDeadline(t time.Time) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.SetDeadline(t)
}

// Dialer opens an authenticated SMTP session
type Dialer func(ctx context.Context, cfg Config) (*Conn, error)

// Pool keeps up to size idle SMTP sessions. Connections are opened on demand,
// so creating a pool never touches the network.
type Pool struct {
	connections chan *Conn
	config      Config
	dial        Dialer
	size        int
	mu          sync.Mutex
	closed      bool
}

// NewPool creates a new SMTP connection pool
func NewPool(config Config, size int) *Pool {
	return NewPoolWithDialer(config, size, Dial)
}

// NewPoolWithDialer creates a pool that opens sessions with dial
func NewPoolWithDialer(config Config, size int, dial Dialer) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		connections: make(chan *Conn, size),
		config:      config,
		dial:        dial,
		size:        size,
	}
}

// deadline is the context deadline, or now plus the configured timeout
func deadline(ctx context.Context, cfg Config) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(cfg.timeout())
}

// Dial opens a session using implicit TLS when configured, otherwise
// STARTTLS when offered, then authenticates if credentials are present.
// The greeting, handshake and auth all run under the context deadline.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	netDialer := &net.Dialer{Timeout: cfg.timeout()}
	tlsConfig := &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: netDialer, Config: tlsConfig}).DialContext(ctx, "tcp", cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("failed to dial TLS: %w", err)
		}
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("failed to dial SMTP: %w", err)
		}
	}
	if err := conn.SetDeadline(deadline(ctx, cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Quit()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	return &Conn{Client: client, conn: conn}, nil
}

// Get retrieves a live connection from the pool or opens a new one. The
// returned session carries the context deadline.
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case client, ok := <-p.connections:
		if !ok {
			return nil, ErrPoolClosed
		}
		metrics.SMTPConnectionPool.Set(float64(len(p.connections)))
		if err := client.SetDeadline(deadline(ctx, p.config)); err != nil {
			client.Close()
			return p.dial(ctx, p.config)
		}
		if err := client.Noop(); err != nil {
			client.Close()
			return p.dial(ctx, p.config)
		}
		return client, nil
	default:
		return p.dial(ctx, p.config)
	}
}

// Put returns a connection to the pool
func (p *Pool) Put(client *Conn) {
	if client == nil {
		return
	}

	// leave the session ready for the next MAIL FROM
	if err := client.Reset(); err != nil {
		client.Close()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		client.Quit()
		return
	}

	select {
	case p.connections <- client:
		metrics.SMTPConnectionPool.Set(float64(len(p.connections)))
	default:
		client.Quit()
	}
}

// Discard drops a connection that failed mid-transaction
func (p *Pool) Discard(client *Conn) {
	if client != nil {
		client.Close()
	}
}

// Close closes all connections in the pool
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.connections)
	p.mu.Unlock()

	for client := range p.connections {
		client.Quit()
	}
	metrics.SMTPConnectionPool.Set(0)
}

// Size returns the pool size
func (p *Pool) Size() int {
	return p.size
}
