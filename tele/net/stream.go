package telenet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
)

const boardUnknown = -1

type streamConn struct {
	sendmu sync.Mutex
	err    helpers.AtomicError
	last   atomic_clock.Clock
	dec    limelight.Decoder
	net    net.Conn
	opt    ConnOptions
	stat   SessionStat
	w      io.Writer
	wbuf   []byte

	board int32 // atomic, boardUnknown until first telemetry
}

var _ Conn = &streamConn{}

func NewStreamConn(netConn net.Conn, opt ConnOptions) *streamConn {
	c := &streamConn{
		net:   netConn,
		opt:   opt,
		board: boardUnknown,
	}
	if tcp, ok := c.net.(*net.TCPConn); ok {
		_ = tcp.SetKeepAlive(false)
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetReadBuffer(16 << 10)
		_ = tcp.SetWriteBuffer(16 << 10)
	}
	const tcpOverhead = 40
	statread := helpers.NewStatReader(c.net, &c.stat.Recv.Total.Size, tcpOverhead)
	c.w = helpers.NewStatWriter(c.net, &c.stat.Send.Total.Size, tcpOverhead)
	c.dec.Attach(bufio.NewReader(statread))
	c.stat.Conn.Add(1)
	c.last.SetNow()
	return c
}

// Close returns nil unless connection already died with other error.
func (c *streamConn) Close() error {
	if err := c.die(ErrClosing); err != ErrClosing {
		return err
	}
	return nil
}

func (c *streamConn) Closed() bool {
	_, ok := c.err.Load()
	return ok
}

// Not safe for concurrent use, single reader per connection.
func (c *streamConn) Receive(ctx context.Context) (limelight.Message, error) {
	if err, closed := c.err.Load(); closed {
		return nil, err
	}
	if err := c.net.SetReadDeadline(c.deadline(ctx)); err != nil {
		err = errors.Annotate(err, "SetReadDeadline")
		_ = c.die(err)
		return nil, err
	}
	m, err := c.dec.Read()
	if err != nil {
		if err != io.EOF {
			err = errors.Annotate(err, "receive")
		}
		_ = c.die(err)
		return nil, err
	}
	c.last.SetNow()
	if t, ok := m.(limelight.Telemetry); ok {
		c.SetBoard(t.Board())
	}
	c.stat.Recv.Register(m)
	return m, nil
}

func (c *streamConn) Send(ctx context.Context, m limelight.Message) error {
	c.sendmu.Lock()
	defer c.sendmu.Unlock()
	if err, closed := c.err.Load(); closed {
		return err
	}

	b, err := limelight.Append(c.wbuf[:0], m)
	if err != nil {
		return errors.Annotate(err, "encode")
	}
	c.wbuf = b
	if c.opt.Log.Enabled(log2.LDebug) {
		c.opt.Log.Debugf("send m=%s b=(%d)%x", m, len(b), b)
	}
	if err = c.net.SetWriteDeadline(c.deadline(ctx)); err != nil {
		err = errors.Annotate(err, "SetWriteDeadline")
		_ = c.die(err)
		return err
	}
	if err = helpers.WriteAll(c.w, b); err != nil {
		err = errors.Annotate(err, "send")
		_ = c.die(err)
		return err
	}
	c.stat.Send.Register(m)
	return nil
}

func (c *streamConn) Options() *ConnOptions        { return &c.opt }
func (c *streamConn) RemoteAddr() net.Addr         { return c.net.RemoteAddr() }
func (c *streamConn) SinceLastRecv() time.Duration { return atomic_clock.Since(&c.last) }
func (c *streamConn) Stat() *SessionStat           { return &c.stat }

func (c *streamConn) Board() (limelight.BoardID, bool) {
	b := atomic.LoadInt32(&c.board)
	if b == boardUnknown {
		return 0, false
	}
	return limelight.BoardID(b), true
}

func (c *streamConn) SetBoard(b limelight.BoardID) {
	atomic.StoreInt32(&c.board, int32(b))
}

func (c *streamConn) String() string {
	remote := addrString(c.RemoteAddr())
	if b, ok := c.Board(); ok {
		return fmt.Sprintf("(remote=%s board=%s)", remote, b)
	}
	return fmt.Sprintf("(remote=%s)", remote)
}

// ctx deadline wins, otherwise NetworkTimeout from now, zero means no deadline.
func (c *streamConn) deadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if c.opt.NetworkTimeout > 0 {
		return time.Now().Add(c.opt.NetworkTimeout)
	}
	return time.Time{}
}

func (c *streamConn) die(e error) error {
	if err, found := c.err.StoreOnce(e); found {
		return err
	}
	_ = c.net.Close()

	// reformat some well known errors for easier log reading
	estr := e.Error()
	if neterr, ok := errors.Cause(e).(net.Error); ok && neterr.Timeout() {
		estr = "timeout"
	} else if strings.HasSuffix(estr, "i/o timeout") {
		estr = "timeout"
	} else if strings.HasSuffix(estr, "connection reset by peer") || e == io.EOF {
		estr = "closed by remote"
	}

	c.opt.Log.Debugf("die +close %s local=%s e=%s", c.String(), addrString(c.net.LocalAddr()), estr)
	return e
}
