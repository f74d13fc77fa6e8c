package telenet

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/limelight"
)

const DefaultRetryDelay = 1 * time.Second

// Limelight board client.
// Responsible for:
// - establish connection, with backoff after failures
// - request/reply exchange, one at a time
// - keepalive heartbeats when idle
type Client struct { //nolint:maligned
	sync.Mutex // protects current
	txmu       sync.Mutex
	alive      *alive.Alive
	current    Conn
	opt        *ClientOptions
	stat       SessionStat
	backoff    *helpers.Backoff
}

type ClientOptions struct {
	ConnOptions
	Board      limelight.BoardID
	Dialer     *net.Dialer
	Keepalive  time.Duration
	RetryDelay time.Duration
	StreamURL  string
}

func NewClient(opt *ClientOptions) (*Client, error) {
	if !opt.Board.Valid() {
		return nil, errors.NotValidf("client board=%d", opt.Board)
	}
	if opt.NetworkTimeout == 0 {
		opt.NetworkTimeout = DefaultNetworkTimeout
	}
	if opt.RetryDelay == 0 {
		opt.RetryDelay = DefaultRetryDelay
	}
	if opt.Dialer == nil {
		opt.Dialer = &net.Dialer{Timeout: opt.NetworkTimeout}
	}
	if opt.Keepalive != 0 {
		opt.Dialer.KeepAlive = -1
	}
	if err := ValidateURL(opt.StreamURL); err != nil {
		return nil, errors.Annotatef(err, "config error StreamURL=%s", opt.StreamURL)
	}

	c := &Client{
		alive: alive.NewAlive(),
		backoff: &helpers.Backoff{
			Min: opt.RetryDelay,
			Max: 10 * opt.RetryDelay,
			K:   2,
		},
		opt: opt,
	}
	if opt.Keepalive != 0 && c.alive.Add(1) {
		go c.pinger()
	}
	return c, nil
}

func (c *Client) Board() limelight.BoardID { return c.opt.Board }

func (c *Client) Close() error {
	c.alive.Stop()
	c.Lock()
	conn := c.getConn()
	c.Unlock()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.alive.Wait()
	c.Lock()
	_ = c.getConn()
	c.Unlock()
	return err
}

// Tx sends m and waits for server reply.
// Any failure closes connection, next Tx reconnects.
func (c *Client) Tx(ctx context.Context, m limelight.Message) (limelight.Message, error) {
	if !c.alive.Add(1) {
		return nil, ErrClosing
	}
	defer c.alive.Done()
	c.txmu.Lock()
	defer c.txmu.Unlock()

	conn, err := c.mustConn(ctx)
	if err != nil {
		return nil, err
	}
	if err = conn.Send(ctx, m); err != nil {
		_ = conn.Close()
		return nil, errors.Annotatef(err, "tx send %s", m.String())
	}
	reply, err := conn.Receive(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Annotatef(err, "tx receive reply to %s", m.String())
	}
	return reply, nil
}

// Stat includes closed connections and current one.
func (c *Client) Stat() *SessionStat {
	total := c.stat.Value()
	c.Lock()
	conn := c.current
	c.Unlock()
	if conn != nil {
		v := conn.Stat().Value()
		total.Add(&v)
	}
	return &total
}

func (c *Client) connect(ctx context.Context) (Conn, error) {
	conn, err := DialContext(ctx, *c.opt.Dialer, c.opt.StreamURL, c.opt.ConnOptions)
	if err != nil {
		return nil, errors.Annotatef(err, "connect stream=%s", c.opt.StreamURL)
	}
	conn.SetBoard(c.opt.Board)
	c.opt.Log.Debugf("client: connected %s", conn.String())
	return conn, nil
}

// must be called with lock
func (c *Client) getConn() Conn {
	if c.current != nil && c.current.Closed() {
		c.statHook(c.current)
		c.current = nil
	}
	return c.current
}

func (c *Client) mustConn(ctx context.Context) (Conn, error) {
	c.Lock()
	defer c.Unlock()
	if conn := c.getConn(); conn != nil {
		return conn, nil
	}

	delay := c.backoff.DelayBefore()
	if delay != 0 {
		c.opt.Log.Debugf("reconnect delay=%s", delay)
	}
	if err := c.sleep(ctx, delay); err != nil {
		return nil, err
	}
	conn, err := c.connect(ctx)
	if err != nil {
		c.backoff.Failure()
		return nil, err
	}
	c.backoff.Reset()
	c.current = conn
	return conn, nil
}

func (c *Client) pinger() {
	defer c.alive.Done()
	c.opt.Log.Debugf("pinger keepalive=%s", c.opt.Keepalive)
	for c.alive.IsRunning() {
		c.Lock()
		conn := c.getConn()
		c.Unlock()
		if conn == nil {
			if c.sleep(context.Background(), c.opt.Keepalive/2) != nil {
				return
			}
			continue
		}
		since := conn.SinceLastRecv()
		delay := c.opt.Keepalive - since
		if delay > 0 {
			if c.sleep(context.Background(), delay) != nil {
				return
			}
			continue
		}
		c.opt.Log.Debugf("pinger since=%s -> send", since)
		// reply refreshes SinceLastRecv
		if _, err := c.Tx(context.Background(), limelight.Heartbeat{}); err != nil {
			c.opt.Log.Debugf("pinger err=%v", err)
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil

	case <-ctx.Done():
		return ctx.Err()

	case <-c.alive.StopChan():
		return ErrClosing
	}
}

func (c *Client) statHook(conn Conn) {
	if conn != nil {
		c.stat.AddMoveFrom(conn.Stat())
	}
}
