package telenet

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/limelight/helpers"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
)

// Limelight ground server.
// Accepts board connections, replies Heartbeat to every message.
type Server struct {
	alive *alive.Alive
	conns struct {
		sync.RWMutex
		m map[Conn]struct{}
	}
	listens struct {
		sync.RWMutex
		m map[net.Listener]string // url
	}
	log       *log2.Log
	onClose   CloseFunc
	onConnect ConnectFunc
	onMessage MessageFunc
	stat      SessionStat // closed connections only
}

type ServerOptions struct {
	Log       *log2.Log
	OnClose   CloseFunc
	OnConnect ConnectFunc
	OnMessage MessageFunc
}

type ListenOptions struct {
	StreamURL      string
	TLS            *tls.Config
	NetworkTimeout time.Duration
}

type CloseFunc = func(Conn, error)
type ConnectFunc = func(Conn) error

// Error closes connection, Heartbeat reply is not sent.
type MessageFunc = func(Conn, limelight.Message) error

func NewServer(opt ServerOptions) *Server {
	s := &Server{
		alive:     alive.NewAlive(),
		log:       opt.Log,
		onClose:   opt.OnClose,
		onConnect: opt.OnConnect,
		onMessage: opt.OnMessage,
	}
	s.conns.m = make(map[Conn]struct{})
	s.listens.m = make(map[net.Listener]string)
	return s
}

func (s *Server) Addrs() []string {
	s.listens.RLock()
	defer s.listens.RUnlock()
	addrs := make([]string, 0, len(s.listens.m))
	for l := range s.listens.m {
		addrs = append(addrs, l.Addr().String())
	}
	return addrs
}

func (s *Server) Listen(ctx context.Context, opts []ListenOptions) error {
	s.listens.Lock()
	defer s.listens.Unlock()

	for ll := range s.listens.m {
		delete(s.listens.m, ll)
		_ = ll.Close()
	}

	if !s.alive.Add(len(opts)) {
		return errors.Errorf("Listen after Close")
	}
	errs := make([]error, 0)
	for _, opt := range opts {
		s.log.Debugf("listen url=%s timeout=%v", opt.StreamURL, opt.NetworkTimeout)
		if err := s.listenStream(opt); err != nil {
			s.alive.Done()
			err = errors.Annotatef(err, "listenStream %s", opt.StreamURL)
			errs = append(errs, err)
			continue
		}
	}
	return helpers.FoldErrors(errs)
}

// Close stops accepting, drops all connections and waits for handlers.
func (s *Server) Close() error {
	s.alive.Stop()
	errs := make([]error, 0)
	helpers.WithLock(&s.listens, func() {
		for ll, url := range s.listens.m {
			delete(s.listens.m, ll)
			if err := ll.Close(); err != nil {
				errs = append(errs, errors.Annotatef(err, "close listen=%s", url))
			}
		}
	})
	helpers.WithLock(s.conns.RLocker(), func() {
		for conn := range s.conns.m {
			_ = conn.die(ErrClosing)
		}
	})
	s.alive.Wait()
	return helpers.FoldErrors(errs)
}

// Stat is snapshot of closed and live connections.
func (s *Server) Stat() *SessionStat {
	total := s.stat.Value()
	helpers.WithLock(s.conns.RLocker(), func() {
		for conn := range s.conns.m {
			v := conn.Stat().Value()
			total.Add(&v)
		}
	})
	return &total
}

// Conns returns number of live connections.
func (s *Server) Conns() int {
	s.conns.RLock()
	defer s.conns.RUnlock()
	return len(s.conns.m)
}

func (s *Server) ConnOptions(lo *ListenOptions) ConnOptions {
	return ConnOptions{
		Log:            s.log,
		NetworkTimeout: lo.NetworkTimeout,
		TLS:            lo.TLS,
	}
}

func (s *Server) listenStream(opt ListenOptions) error {
	scheme, hostport, err := parseURI(opt.StreamURL)
	if err != nil {
		return errors.Annotate(err, "parse url")
	}

	var ll net.Listener
	switch scheme {
	case "tls":
		if opt.TLS == nil {
			return errors.NotValidf("listen url=%s without TLS config", opt.StreamURL)
		}
		if ll, err = tls.Listen("tcp", hostport, opt.TLS); err != nil {
			return errors.Annotate(err, "tls.Listen")
		}

	case "tcp", "unix":
		ll, err = net.Listen(scheme, hostport)
		if err != nil {
			return errors.Annotatef(err, "net.Listen network=%s address=%s", scheme, hostport)
		}
	}
	if ll == nil {
		return errors.NotSupportedf("listen url=%s", opt.StreamURL)
	}

	s.listens.m[ll] = opt.StreamURL
	go s.acceptLoop(ll, opt)
	return nil
}

// Listener is still owned by server, not closed by Listen or Close.
func (s *Server) listening(ll net.Listener) bool {
	s.listens.RLock()
	defer s.listens.RUnlock()
	_, ok := s.listens.m[ll]
	return ok
}

func (s *Server) acceptLoop(ll net.Listener, opt ListenOptions) {
	defer s.alive.Done() // one alive subtask for each listener
	backoff := helpers.Backoff{Min: 5 * time.Millisecond, Max: time.Second, K: 2}
	for {
		conn, err := ll.Accept()
		if !s.alive.IsRunning() {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			if !s.listening(ll) {
				return
			}
			err = errors.Annotatef(err, "accept listen=%s", addrString(ll.Addr()))
			if ne, ok := errors.Cause(err).(net.Error); ok && ne.Temporary() { //nolint:staticcheck
				backoff.Failure()
				delay := backoff.DelayBefore()
				s.log.Errorf("%v retry in %v", err, delay)
				time.Sleep(delay)
				continue
			}
			s.log.Error(err)
			helpers.WithLock(&s.listens, func() {
				delete(s.listens.m, ll)
			})
			_ = ll.Close()
			return
		}
		backoff.Reset()

		if !s.alive.Add(1) { // and one alive subtask for each connection
			_ = conn.Close()
			return
		}
		go s.processConn(NewStreamConn(conn, s.ConnOptions(&opt)))
	}
}

func (s *Server) processConn(conn Conn) {
	defer s.alive.Done()

	addr := addrString(conn.RemoteAddr())
	s.log.Infof("connected remote=%s", addr)
	if s.onConnect != nil {
		if err := s.onConnect(conn); err != nil {
			s.log.Infof("onConnect remote=%s err=%v", addr, err)
			_ = conn.die(err)
			s.stat.Add(conn.Stat())
			return
		}
	}
	helpers.WithLock(&s.conns, func() {
		s.conns.m[conn] = struct{}{}
	})
	if !s.alive.IsRunning() { // Close may have missed this conn
		_ = conn.die(ErrClosing)
	}

	// receive loop
	for {
		m, err := conn.Receive(context.Background())
		if !s.alive.IsRunning() {
			_ = conn.die(ErrClosing)
			break
		}
		if err != nil {
			if limelight.IsDecodeError(err) {
				s.log.Errorf("receive %s err=%v", conn.String(), err)
			}
			break
		}
		if err = s.processMessage(conn, m); err != nil {
			break
		}
	}

	// mandatory cleanup on connection closed
	closeErr := conn.die(ErrClosing)
	helpers.WithLock(&s.conns, func() {
		delete(s.conns.m, conn)
		s.stat.Add(conn.Stat())
	})
	s.log.Infof("disconnected %s", conn.String())
	if s.onClose != nil {
		s.onClose(conn, closeErr)
	}
}

func (s *Server) processMessage(conn Conn, m limelight.Message) error {
	if s.onMessage != nil {
		if err := s.onMessage(conn, m); err != nil {
			s.log.Errorf("onMessage %s m=%s err=%v", conn.String(), m.String(), err)
			return conn.die(err)
		}
	}
	if err := conn.Send(context.Background(), limelight.Heartbeat{}); err != nil {
		s.log.Debugf("reply %s err=%v", conn.String(), err)
		return err
	}
	return nil
}
