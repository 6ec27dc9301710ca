package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

func (s *Server) handleConnection(conn net.Conn) error {
	defer conn.Close()
	start := time.Now()

	if d := s.readTimeout(); d > 0 {
		conn.SetReadDeadline(start.Add(d))
	}
	reader := bufio.NewReader(conn)

	req, err := s.Parser.ReadRequest(reader)
	var res *Response
	switch {
	case err == nil:
		res = s.serve(req)
	case errors.Is(err, ErrBadRequest):
		res = TextResponse(400, "Bad request")
	default:
		// Timeouts and broken connections get no response.
		return fmt.Errorf("read request error: %w", err)
	}

	if d := s.writeTimeout(); d > 0 {
		conn.SetWriteDeadline(time.Now().Add(d))
	}
	_, werr := res.WriteTo(conn)
	s.logRequest(conn, req, res, err, time.Since(start))
	if werr != nil {
		return fmt.Errorf("write response error: %w", werr)
	}
	return nil
}

// serve runs the handler, turning a panic or a nil response into a 500.
func (s *Server) serve(req *Request) (res *Response) {
	defer func() {
		if v := recover(); v != nil {
			s.logger().Error().
				Str("verb", req.Verb).
				Str("path", req.Path).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")
			res = TextResponse(500, "Internal server error")
		}
	}()
	if res = s.Handler.Serve(req); res == nil {
		res = TextResponse(500, "Internal server error")
	}
	return res
}

func (s *Server) logRequest(conn net.Conn, req *Request, res *Response, parseErr error, elapsed time.Duration) {
	log := s.logger()
	ev := log.Info()
	if res.Status >= 500 {
		ev = log.Error()
	} else if res.Status >= 400 {
		ev = log.Warn()
	}
	ev = ev.Str("remote", conn.RemoteAddr().String()).
		Int("status", res.Status).
		Int("bytes", len(res.Body)).
		Dur("elapsed", elapsed)
	if parseErr != nil {
		ev.Err(parseErr).Msg("request")
		return
	}

	headers := zerolog.Dict()
	req.Header.Each(func(name, value string) {
		headers.Str(name, value)
	})
	ev = ev.Str("verb", req.Verb).
		Str("path", req.Path).
		Dict("headers", headers).
		Bool("has_body", req.HasBody()).
		Int("body_bytes", len(req.Body))
	if log.GetLevel() <= zerolog.DebugLevel && req.HasBody() {
		ev = ev.Bytes("body", req.Body)
	}
	ev.Msg("request")
}
