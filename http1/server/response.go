package server

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// DateFormat is RFC 1123 with a literal GMT zone.
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var crlf = []byte{'\r', '\n'}

// Response is a status, a header set and a body. Content-Length is not
// stored; it is computed from Body every time the response is rendered.
// Caller headers replace the Content-Type and Connection defaults whatever
// their case.
type Response struct {
	Status int
	Header Header
	Body   []byte
}

// TextResponse builds a text/plain response with a fixed body.
func TextResponse(status int, body string) *Response {
	return &Response{Status: status, Body: []byte(body)}
}

// Render returns the wire bytes of a response dated now.
func Render(status int, header Header, body []byte) []byte {
	r := Response{Status: status, Header: header, Body: body}
	return r.Render(time.Now())
}

// Render produces the status line, the merged headers, a blank line and the
// raw body. The reason phrase is always "OK".
func (r *Response) Render(now time.Time) []byte {
	var buf bytes.Buffer
	buf.Grow(128 + len(r.Body))

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(r.Status))
	buf.WriteString(" OK")
	buf.Write(crlf)

	seen := make(map[string]struct{})
	h := r.mergedHeader(now)
	h.Each(func(name, value string) {
		line := name + ": " + value
		if _, ok := seen[line]; ok {
			return
		}
		seen[line] = struct{}{}
		buf.WriteString(line)
		buf.Write(crlf)
	})
	buf.Write(crlf)
	buf.Write(r.Body)
	return buf.Bytes()
}

func (r *Response) mergedHeader(now time.Time) Header {
	var h Header
	h.Set("Content-Type", "text/plain")
	h.Set("Connection", "close")
	r.Header.Each(func(name, value string) {
		switch {
		case strings.EqualFold(name, "Content-Length"):
			return
		case name != "Content-Type" && strings.EqualFold(name, "Content-Type"):
			h.Del("Content-Type")
		case name != "Connection" && strings.EqualFold(name, "Connection"):
			h.Del("Connection")
		}
		h.Set(name, value)
	})
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	if h.GetFold("Date") == "" {
		h.Set("Date", now.UTC().Format(DateFormat))
	}
	return h
}

// WriteTo writes the rendered response to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Render(time.Now()))
	return int64(n), err
}
