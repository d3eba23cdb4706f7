// Package statsd writes DogStatsD-formatted counters and timings over UDP.
package statsd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink is what the metrics recorder emits to.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes the UDP endpoint. Address is required.
type Config struct {
	Address string
	// Prefix is prepended to every metric name, e.g. "gatehouse".
	Prefix string
	Logger *slog.Logger
}

const dialTimeout = 5 * time.Second

// Client is safe for concurrent use. Write failures are logged at debug and
// otherwise dropped; metrics never fail a request.
type Client struct {
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials cfg.Address.
func NewClient(cfg Config) (*Client, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, errors.New("statsd: address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", addr, err)
	}
	return &Client{prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "."), logger: logger, conn: conn}, nil
}

// Count emits a counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.send(name, strconv.FormatInt(value, 10), "c", tags)
}

// Timing emits a timer in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := strconv.FormatFloat(float64(value)/float64(time.Millisecond), 'f', -1, 64)
	c.send(name, ms, "ms", tags)
}

// Close releases the socket. Further writes are dropped.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) send(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	line := formatLine(c.qualify(name), value, kind, tags)
	if line == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "metric", name, "error", err)
	}
}

func (c *Client) qualify(name string) string {
	name = strings.Trim(strings.TrimSpace(name), ".")
	switch {
	case name == "":
		return ""
	case c.prefix == "":
		return name
	default:
		return c.prefix + "." + name
	}
}

// formatLine renders name:value|kind|#k:v,... with tags sorted by key.
// Characters that break the line protocol are replaced with underscores.
func formatLine(name, value, kind string, tags map[string]string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(tagSafe.Replace(name))
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)

	keys := make([]string, 0, len(tags))
	for k := range tags {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return b.String()
	}
	slices.Sort(keys)
	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tagSafe.Replace(strings.TrimSpace(k)))
		b.WriteByte(':')
		b.WriteString(tagSafe.Replace(strings.TrimSpace(tags[k])))
	}
	return b.String()
}

var tagSafe = strings.NewReplacer(" ", "_", "|", "_", ",", "_", "#", "_", "/", "_")
