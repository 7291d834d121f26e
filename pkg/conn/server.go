package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	reuse "github.com/libp2p/go-reuseport"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/pg-sharding/ringkv/pkg/protocol"
)

// Handler answers one request frame with one response frame.
type Handler func(ctx context.Context, frame string) string

// Tracker observes connection churn of a Server.
type Tracker interface {
	ConnOpened()
	ConnClosed()
}

// Listen opens a TCP listener on addr, with SO_REUSEPORT when reusePort is set.
func Listen(addr string, reusePort bool) (net.Listener, error) {
	if reusePort {
		return reuse.Listen("tcp", addr)
	}
	return net.Listen("tcp", addr)
}

// Server runs one goroutine per accepted connection. Frames of a connection
// are handled strictly in order.
type Server struct {
	handler Handler
	tracker Tracker
	log     zerolog.Logger

	closed *atomic.Bool
	wg     sync.WaitGroup
}

func NewServer(h Handler, tracker Tracker, log zerolog.Logger) *Server {
	return &Server{
		handler: h,
		tracker: tracker,
		log:     log,
		closed:  atomic.NewBool(false),
	}
}

// Serve accepts connections from l until ctx is done or stop is closed.
// On the way out, requests in flight are answered, idle connections are
// closed and Serve waits for every connection goroutine.
func (s *Server) Serve(ctx context.Context, l net.Listener, stop <-chan struct{}) error {
	readCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cChan := make(chan net.Conn)
	quit := make(chan struct{})

	accept := func(l net.Listener, cChan chan net.Conn) {
		for {
			c, err := l.Accept()
			if err != nil {
				if !s.closed.Load() {
					s.log.Error().Err(err).Msg("conn: accept failed")
				}
				close(cChan)
				return
			}
			select {
			case cChan <- c:
			case <-quit:
				_ = c.Close()
				return
			}
		}
	}

	go accept(l, cChan)

	defer func() {
		close(quit)
		s.closed.Store(true)
		_ = l.Close()
		cancel()
		s.wg.Wait()
		s.log.Info().Str("address", l.Addr().String()).Msg("conn: server done")
	}()

	for {
		select {
		case raw, ok := <-cChan:
			if !ok {
				return nil
			}
			s.log.Debug().Str("remote addr", raw.RemoteAddr().String()).Msg("conn: new connection")
			s.track(readCtx, New(raw))
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) track(readCtx context.Context, c *LineConn) {
	if s.tracker != nil {
		s.tracker.ConnOpened()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = c.Close()
			if s.tracker != nil {
				s.tracker.ConnClosed()
			}
		}()

		if err := s.serv(readCtx, c); err != nil && !s.closed.Load() {
			s.log.Error().Err(err).Str("remote addr", c.RemoteAddr().String()).Msg("conn: error serving connection")
		}
	}()
}

// serv waits for frames under readCtx only. A frame already read is handled
// and answered even when the server is closing.
func (s *Server) serv(readCtx context.Context, c *LineConn) error {
	for {
		frame, err := c.ReadFrame(readCtx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if !errors.Is(err, ErrFrameTooLong) {
				return err
			}
			s.log.Warn().Err(err).Str("remote addr", c.RemoteAddr().String()).Msg("conn: oversized frame rejected")
			reply := protocol.Failure(fmt.Sprintf("frame exceeds %d bytes", protocol.MaxFrameSize)).String()
			if err := c.WriteFrame(context.Background(), reply); err != nil {
				return err
			}
			continue
		}
		if err := c.WriteFrame(context.Background(), s.handler(context.Background(), frame)); err != nil {
			return err
		}
	}
}
