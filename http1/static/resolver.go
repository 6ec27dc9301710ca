package static

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const DefaultDocument = "index.html"

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Resource is a file ready to be served.
type Resource struct {
	Path     string
	Body     []byte
	MimeType string
	Binary   bool
}

// Resolver maps request paths to files below a fixed root.
type Resolver struct {
	basePath        string
	defaultDocument string
	mimeTypes       map[string]string
	cache           Cache
	logger          zerolog.Logger
}

type Option func(*Resolver)

func WithDefaultDocument(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.defaultDocument = name
		}
	}
}

// WithCache replaces the existence cache, e.g. to share one between
// resolvers or to inspect it in tests.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithMimeTypes adds or overrides extension to MIME type mappings.
func WithMimeTypes(types map[string]string) Option {
	return func(r *Resolver) {
		for ext, t := range types {
			r.mimeTypes[strings.ToLower(strings.TrimPrefix(ext, "."))] = t
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New returns a Resolver rooted at basePath, which must be an existing
// directory.
func New(basePath string, opts ...Option) (*Resolver, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", basePath, err)
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("static root %q: %w", basePath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static root %q is not a directory", basePath)
	}

	r := &Resolver{
		basePath:        abs,
		defaultDocument: DefaultDocument,
		mimeTypes:       make(map[string]string, len(defaultMimeTypes)),
		logger:          zerolog.Nop(),
	}
	for ext, t := range defaultMimeTypes {
		r.mimeTypes[ext] = t
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		if r.cache, err = NewCache(DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Resolver) BasePath() string { return r.basePath }

// Normalize drops the query string, decodes percent escapes, strips every
// "../" and substitutes the default document for "/".
func (r *Resolver) Normalize(requestPath string) string {
	p, _, _ := strings.Cut(requestPath, "?")
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	for strings.Contains(p, "../") {
		p = strings.ReplaceAll(p, "../", "")
	}
	if p == "/" {
		p = "/" + r.defaultDocument
	}
	return p
}

// Candidate returns the absolute file path for requestPath. It fails with
// ErrForbidden when the path, after following symlinks, leaves the root.
func (r *Resolver) Candidate(requestPath string) (string, error) {
	p := path.Clean("/" + r.Normalize(requestPath))
	candidate := filepath.Join(r.basePath, filepath.FromSlash(p))
	if !r.within(candidate) {
		return "", fmt.Errorf("%w: %s", ErrForbidden, requestPath)
	}
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// Nothing there yet; Exists will report it.
		return candidate, nil
	}
	if !r.within(resolved) {
		r.logger.Warn().Str("path", requestPath).Str("target", resolved).Msg("symlink escapes static root")
		return "", fmt.Errorf("%w: %s", ErrForbidden, requestPath)
	}
	return candidate, nil
}

func (r *Resolver) within(p string) bool {
	rel, err := filepath.Rel(r.basePath, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Exists reports whether candidate names a regular file. Cached hits are
// trusted; misses always go to the filesystem.
func (r *Resolver) Exists(candidate string) bool {
	if r.cache.Contains(candidate) {
		return true
	}
	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	r.cache.Add(candidate)
	r.logger.Debug().Str("file", candidate).Msg("cached existing file")
	return true
}

// Load reads the whole file. A file that vanished after Exists is reported
// as ErrNotFound.
func (r *Resolver) Load(candidate string) ([]byte, error) {
	b, err := os.ReadFile(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return b, nil
}

// Resolve runs the whole lookup for a request path.
func (r *Resolver) Resolve(requestPath string) (*Resource, error) {
	candidate, err := r.Candidate(requestPath)
	if err != nil {
		return nil, err
	}
	if !r.Exists(candidate) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestPath)
	}
	body, err := r.Load(candidate)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Path:     candidate,
		Body:     body,
		MimeType: r.MimeType(candidate),
		Binary:   IsBinary(candidate),
	}, nil
}
