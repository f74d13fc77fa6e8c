package telenet

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
)

var ErrClosing = fmt.Errorf("closing")

type Conn interface {
	Board() (limelight.BoardID, bool)
	Close() error
	Closed() bool
	Options() *ConnOptions
	Receive(context.Context) (limelight.Message, error)
	RemoteAddr() net.Addr
	Send(context.Context, limelight.Message) error
	SetBoard(limelight.BoardID)
	SinceLastRecv() time.Duration
	Stat() *SessionStat
	String() string

	die(error) error
}

type ConnOptions struct {
	Log *log2.Log
	TLS *tls.Config

	NetworkTimeout time.Duration
}

func DialContext(ctx context.Context, dialer net.Dialer, url string, opt ConnOptions) (Conn, error) {
	if dialer.Timeout == 0 {
		dialer.Timeout = opt.NetworkTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if timeout := time.Until(deadline); timeout <= 0 {
			return nil, context.DeadlineExceeded
		} else if dialer.Timeout == 0 || timeout < dialer.Timeout {
			dialer.Timeout = timeout
		}
	}

	scheme, hostport, err := parseURI(url)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	switch scheme {
	case "tcp", "unix":
		conn, err = dialer.DialContext(ctx, scheme, hostport)

	case "tls":
		config := opt.TLS
		if config == nil {
			config = &tls.Config{}
		}
		if config.ServerName == "" {
			config = config.Clone()
			if config.ServerName, _, err = net.SplitHostPort(hostport); err != nil {
				return nil, errors.Annotatef(err, "url=%s", url)
			}
		}
		conn, err = dialer.DialContext(ctx, "tcp", hostport)
		if err == nil {
			conn = tls.Client(conn, config)
		}

	default:
		err = errors.NotSupportedf("scheme=%s", scheme)
	}
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn, opt), nil
}
