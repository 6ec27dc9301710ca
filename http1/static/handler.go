package static

import (
	"errors"

	"github.com/jbrizuela2/railless-ruby-server/http1/server"
)

// Serve answers a request from the files below the root. Every method is
// treated the same way.
func (r *Resolver) Serve(req *server.Request) *server.Response {
	res, err := r.Resolve(req.Path)
	switch {
	case err == nil:
		var h server.Header
		h.Set("Content-Type", res.MimeType)
		return &server.Response{Status: 200, Header: h, Body: res.Body}
	case errors.Is(err, ErrForbidden):
		return server.TextResponse(403, "Forbidden")
	case errors.Is(err, ErrNotFound):
		return server.TextResponse(404, "Not found")
	default:
		r.logger.Error().Err(err).Str("path", req.Path).Msg("resolve error")
		return server.TextResponse(500, "Internal server error")
	}
}

var _ server.Handler = (*Resolver)(nil)
