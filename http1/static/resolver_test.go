package static

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestRoot lays out <tmp>/root with a few files and a secret next to it.
func newTestRoot(t *testing.T) (root, secret string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "root")
	writeFile(t, filepath.Join(root, "index.html"), "<h1>home</h1>")
	writeFile(t, filepath.Join(root, "notes.txt"), "plain")
	writeFile(t, filepath.Join(root, "img", "logo.png"), "\x89PNG\r\n\x1a\n")
	writeFile(t, filepath.Join(root, "docs", "index.html"), "docs")
	secret = filepath.Join(dir, "secret.txt")
	writeFile(t, secret, "top secret")
	return root, secret
}

type spyCache struct {
	mu    sync.Mutex
	paths map[string]bool
	adds  int
}

func newSpyCache() *spyCache { return &spyCache{paths: make(map[string]bool)} }

func (c *spyCache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func (c *spyCache) Add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[path] = true
	c.adds++
}

func TestNewRejectsMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing root")
	}
	root, _ := newTestRoot(t)
	if _, err := New(filepath.Join(root, "notes.txt")); err == nil {
		t.Error("expected an error for a file root")
	}
}

func TestNormalize(t *testing.T) {
	root, _ := newTestRoot(t)
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]string{
		"/":                 "/index.html",
		"/?x=1":             "/index.html",
		"/notes.txt?v=2":    "/notes.txt",
		"/../notes.txt":     "/notes.txt",
		"/a/../../b":        "/a/b",
		"/....//x":          "/x",
		"/%2e%2e/notes.txt": "/notes.txt",
		"/img/logo.png":     "/img/logo.png",
	}
	for in, want := range tests {
		if got := r.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveDefaultDocument(t *testing.T) {
	root, _ := newTestRoot(t)
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	a, err := r.Resolve("/")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Resolve("/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if a.Path != b.Path || !bytes.Equal(a.Body, b.Body) || a.MimeType != b.MimeType {
		t.Errorf("/ resolved to %+v, /index.html to %+v", a, b)
	}
	if a.MimeType != "text/html" || string(a.Body) != "<h1>home</h1>" {
		t.Errorf("got %q %q", a.MimeType, a.Body)
	}
}

func TestResolveCustomDefaultDocument(t *testing.T) {
	root, _ := newTestRoot(t)
	r, err := New(root, WithDefaultDocument("notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve("/")
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Body) != "plain" || res.MimeType != "text/plain" {
		t.Errorf("got %q %q", res.MimeType, res.Body)
	}
}

func TestResolveBinary(t *testing.T) {
	root, _ := newTestRoot(t)
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve("/img/logo.png")
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Body) != "\x89PNG\r\n\x1a\n" || res.MimeType != "image/png" || !res.Binary {
		t.Errorf("got %q %q", res.MimeType, res.Body)
	}
}

func TestResolveNotFound(t *testing.T) {
	root, _ := newTestRoot(t)
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/missing.txt", "/docs", "/docs/", "/img/"} {
		if _, err := r.Resolve(p); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q): got %v, want ErrNotFound", p, err)
		}
	}
}

func TestResolveTraversal(t *testing.T) {
	root, secret := newTestRoot(t)
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Base(secret)
	for _, p := range []string{
		"/../" + name,
		"/../../" + name,
		"/....//" + name,
		"/..%2f" + name,
		"/%2e%2e/%2e%2e/" + name,
		"/.." + "/./" + name,
	} {
		res, err := r.Resolve(p)
		if err == nil {
			t.Errorf("Resolve(%q) served %q", p, res.Body)
		}
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	root, secret := newTestRoot(t)
	if err := os.Symlink(secret, filepath.Join(root, "leak.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("/leak.txt"); !errors.Is(err, ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}

func TestExistsCachesHits(t *testing.T) {
	root, _ := newTestRoot(t)
	cache := newSpyCache()
	r, err := New(root, WithCache(cache))
	if err != nil {
		t.Fatal(err)
	}

	candidate, err := r.Candidate("/late.txt")
	if err != nil {
		t.Fatal(err)
	}
	if r.Exists(candidate) {
		t.Fatal("missing file reported as existing")
	}
	if cache.adds != 0 {
		t.Fatal("a miss was cached")
	}

	// Misses are re-checked, so a file created later is found.
	writeFile(t, candidate, "late")
	if !r.Exists(candidate) || !r.Exists(candidate) {
		t.Fatal("new file not found")
	}
	if cache.adds != 1 {
		t.Errorf("got %d cache inserts, want 1", cache.adds)
	}

	// Hits are trusted even after the file is removed; Load then fails.
	if err := os.Remove(candidate); err != nil {
		t.Fatal(err)
	}
	if !r.Exists(candidate) {
		t.Error("cached hit was re-verified")
	}
	if _, err := r.Load(candidate); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after removal: got %v, want ErrNotFound", err)
	}
	if _, err := r.Resolve("/late.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve after removal: got %v, want ErrNotFound", err)
	}
}

func TestExistsConcurrent(t *testing.T) {
	root, _ := newTestRoot(t)
	r, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve("/notes.txt"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}

func TestNewCacheEvicts(t *testing.T) {
	c, err := NewCache(2)
	if err != nil {
		t.Fatal(err)
	}
	c.Add("/a")
	c.Add("/b")
	c.Add("/c")
	if c.Contains("/a") || !c.Contains("/c") {
		t.Error("expected the oldest entry to be evicted")
	}
}
