package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	DefaultMaxHeaderBytes = 1 << 20
	DefaultMaxBodyBytes   = 32 << 20
)

// ErrBadRequest is returned for anything that cannot be read as a request.
// Callers answer it with a 400.
var ErrBadRequest = errors.New("bad request")

// Request is built once per connection and never modified afterwards.
type Request struct {
	Verb   string
	Path   string
	Header Header
	// Body is nil when the request carried no Content-Length body.
	Body []byte
}

func (r *Request) HasBody() bool { return r.Body != nil }

// Parser reads requests off a byte stream. The zero value uses the default
// limits.
type Parser struct {
	MaxHeaderBytes int64
	MaxBodyBytes   int64
}

// ReadRequest reads one request with the default limits. Unless r is a
// *bufio.Reader, bytes past the body may be buffered and lost to later
// readers of r.
func ReadRequest(r io.Reader) (*Request, error) {
	var p Parser
	return p.ReadRequest(r)
}

// ReadRequest consumes the request line, the header block and, when
// Content-Length is positive, exactly that many body bytes. If r is a
// *bufio.Reader it is used as is, so nothing past the body is consumed
// from it.
func (p *Parser) ReadRequest(r io.Reader) (*Request, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	metadata, err := p.readMetadata(br)
	if err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, fmt.Errorf("%w: missing request line", ErrBadRequest)
	}

	req := new(Request)
	if err := req.parseRequestLine(metadata[0]); err != nil {
		return nil, err
	}
	for _, line := range metadata[1:] {
		name, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("%w: invalid header %q", ErrBadRequest, line)
		}
		req.Header.Set(name, value)
	}

	n := parseContentLength(req.Header.GetFold("Content-Length"))
	if n <= 0 {
		return req, nil
	}
	if n > p.maxBodyBytes() {
		return nil, fmt.Errorf("%w: body of %d bytes exceeds limit", ErrBadRequest, n)
	}
	req.Body = make([]byte, n)
	if _, err := io.ReadFull(br, req.Body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: body shorter than %d bytes", ErrBadRequest, n)
		}
		// Timeouts and resets are left for the caller to drop silently.
		return nil, fmt.Errorf("read body error: %w", err)
	}
	return req, nil
}

// readMetadata collects non-blank lines until a blank line or the end of the
// stream.
func (p *Parser) readMetadata(br *bufio.Reader) ([]string, error) {
	var (
		metadata []string
		total    int64
		line     []byte
	)
	for {
		chunk, more, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(line) > 0 {
					metadata = append(metadata, string(line))
				}
				return metadata, nil
			}
			return nil, fmt.Errorf("read header error: %w", err)
		}
		total += int64(len(chunk))
		if total > p.maxHeaderBytes() {
			return nil, fmt.Errorf("%w: header block exceeds %d bytes", ErrBadRequest, p.maxHeaderBytes())
		}
		line = append(line, chunk...)
		if more {
			continue
		}
		if len(line) == 0 {
			return metadata, nil
		}
		metadata = append(metadata, string(line))
		line = nil
	}
}

// parseRequestLine splits "GET /path HTTP/1.1" on single spaces. The
// protocol token must be present but is not kept.
func (r *Request) parseRequestLine(line string) error {
	fields := strings.Split(line, " ")
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return fmt.Errorf("%w: invalid request line %q", ErrBadRequest, line)
	}
	r.Verb, r.Path = fields[0], fields[1]
	return nil
}

// parseContentLength treats anything that is not a base-10 integer as 0.
func parseContentLength(headerval string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(headerval), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (p *Parser) maxHeaderBytes() int64 {
	if p.MaxHeaderBytes > 0 {
		return p.MaxHeaderBytes
	}
	return DefaultMaxHeaderBytes
}

func (p *Parser) maxBodyBytes() int64 {
	if p.MaxBodyBytes > 0 {
		return p.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}
