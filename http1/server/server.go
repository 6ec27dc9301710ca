package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxConns     = 64
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

var ErrServerClosed = errors.New("server closed")

// Handler turns a parsed request into a response.
type Handler interface {
	Serve(req *Request) *Response
}

type HandlerFunc func(req *Request) *Response

func (f HandlerFunc) Serve(req *Request) *Response { return f(req) }

// TextHandler answers every request with 200 and the same text/plain body.
func TextHandler(body string) Handler {
	return HandlerFunc(func(*Request) *Response {
		return TextResponse(200, body)
	})
}

// Server answers one request per connection and then closes it.
type Server struct {
	Addr    string
	Handler Handler
	Logger  *zerolog.Logger
	Parser  Parser

	// MaxConns bounds the number of connections handled at once; the accept
	// loop waits while the pool is full.
	MaxConns     int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	conns    sync.WaitGroup
	closed   atomic.Bool
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called or Accept fails
// permanently.
func (s *Server) Serve(l net.Listener) error {
	if s.Handler == nil {
		s.Handler = TextHandler("Hello from Go\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		cancel()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer l.Close()

	log := s.logger()
	log.Info().Str("addr", l.Addr().String()).Msg("listening")

	pool := semaphore.NewWeighted(s.maxConns())
	var backoff time.Duration
	for {
		if err := pool.Acquire(ctx, 1); err != nil {
			return ErrServerClosed
		}
		conn, err := l.Accept()
		if err != nil {
			pool.Release(1)
			if s.closed.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// EMFILE, ECONNABORTED and friends pass; keep accepting.
			backoff = nextBackoff(backoff)
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept error")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			conn.Close()
			pool.Release(1)
			return ErrServerClosed
		}
		s.conns.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.conns.Done()
			defer pool.Release(1)
			if err := s.handleConnection(conn); err != nil {
				log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("http error")
			}
		}()
	}
}

// Shutdown stops accepting and waits for in-flight connections or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.listener != nil {
		if err = s.listener.Close(); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) logger() *zerolog.Logger {
	if s.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.Logger
}

func (s *Server) maxConns() int64 {
	if s.MaxConns > 0 {
		return s.MaxConns
	}
	return DefaultMaxConns
}

// readTimeout and writeTimeout fall back to the defaults when unset; a
// negative value disables the deadline.
func (s *Server) readTimeout() time.Duration {
	if s.ReadTimeout == 0 {
		return DefaultReadTimeout
	}
	return s.ReadTimeout
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout == 0 {
		return DefaultWriteTimeout
	}
	return s.WriteTimeout
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}
