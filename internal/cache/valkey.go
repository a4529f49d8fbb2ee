package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible
// server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider implements Provider over a per-call RESP connection.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// NewValkeyProvider creates a Provider and pings the target so bad
// credentials or addresses fail at startup rather than mid-run.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	p := &ValkeyProvider{cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if _, err := p.do(ctx, "PING"); err != nil {
		return nil, err
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	if reply.isNil {
		return nil, ErrCacheMiss
	}
	return reply.data, nil
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	reply, err := p.do(ctx, "SET", args...)
	if err != nil {
		return err
	}
	if !strings.EqualFold(string(reply.data), "OK") {
		return fmt.Errorf("unexpected SET response: %s", reply.data)
	}
	return nil
}

// Del removes a key from the cache.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", key)
	return err
}

// Close closes the provider (connections are per-call, nothing to release).
func (p *ValkeyProvider) Close() error { return nil }

type respReply struct {
	data []byte
	isNil bool
}

// do dials, authenticates, issues one command and reads its reply, retrying
// transient network failures up to MaxRetries.
func (p *ValkeyProvider) do(ctx context.Context, command string, args ...string) (respReply, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return respReply{}, ctx.Err()
		}
		reply, err := p.doOnce(ctx, command, args...)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return respReply{}, err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return respReply{}, lastErr
}

func (p *ValkeyProvider) doOnce(ctx context.Context, command string, args ...string) (respReply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return respReply{}, err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	if p.cfg.Password != "" {
		auth := []string{p.cfg.Password}
		if p.cfg.Username != "" {
			auth = []string{p.cfg.Username, p.cfg.Password}
		}
		if err := p.roundTrip(conn, reader, writer, "AUTH", auth...); err != nil {
			return respReply{}, fmt.Errorf("auth: %w", err)
		}
	}
	if p.cfg.DB > 0 {
		if err := p.roundTrip(conn, reader, writer, "SELECT", strconv.Itoa(p.cfg.DB)); err != nil {
			return respReply{}, fmt.Errorf("select db: %w", err)
		}
	}

	if err := p.writeCommand(conn, writer, command, args...); err != nil {
		return respReply{}, err
	}
	return p.readReply(conn, reader)
}

func (p *ValkeyProvider) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, err := net.SplitHostPort(p.cfg.Addr); err == nil {
			host = h
		}
		return tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	}
	return dialer.DialContext(ctx, "tcp", p.cfg.Addr)
}

// roundTrip issues a bootstrap command and requires an OK-style reply.
func (p *ValkeyProvider) roundTrip(conn net.Conn, reader *bufio.Reader, writer *bufio.Writer, command string, args ...string) error {
	if err := p.writeCommand(conn, writer, command, args...); err != nil {
		return err
	}
	reply, err := p.readReply(conn, reader)
	if err != nil {
		return err
	}
	if !strings.EqualFold(string(reply.data), "OK") && !strings.EqualFold(string(reply.data), "PONG") {
		return fmt.Errorf("unexpected reply: %s", reply.data)
	}
	return nil
}

func (p *ValkeyProvider) writeCommand(conn net.Conn, writer *bufio.Writer, command string, args ...string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "*%d\r\n", len(args)+1); err != nil {
		return err
	}
	parts := append([]string{command}, args...)
	for _, part := range parts {
		if _, err := fmt.Fprintf(writer, "$%d\r\n%s\r\n", len(part), part); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func (p *ValkeyProvider) readReply(conn net.Conn, reader *bufio.Reader) (respReply, error) {
	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := reader.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	line, err := readLine(reader)
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+', ':':
		return respReply{data: line}, nil
	case '-':
		return respReply{}, errors.New(string(line))
	case '$':
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{isNil: true}, nil
		}
		buf := make([]byte, size+2)
		for n := 0; n < len(buf); {
			m, err := reader.Read(buf[n:])
			n += m
			if err != nil {
				return respReply{}, err
			}
		}
		return respReply{data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return []byte(line), nil
}
