package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = path
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSPAHandler(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.html":           "<html>dashboard</html>",
		"assets/app-3f2a.js":   "console.log('soundboard')",
		"favicon.svg":          "<svg/>",
		"../outside/token.txt": "secret",
	})
	h := NewSPAHandler(root, "")

	tests := []struct {
		name   string
		path   string
		status int
		body   string
		cache  string
	}{
		{"root serves index", "/", http.StatusOK, "dashboard", "no-cache"},
		{"explicit index is not redirected", "/index.html", http.StatusOK, "dashboard", "no-cache"},
		{"client route falls back to index", "/sounds/new", http.StatusOK, "dashboard", "no-cache"},
		{"hashed asset is immutable", "/assets/app-3f2a.js", http.StatusOK, "soundboard", "public, max-age=31536000, immutable"},
		{"plain file", "/favicon.svg", http.StatusOK, "<svg/>", ""},
		{"api paths are not rewritten", "/api/sounds", http.StatusNotFound, "", ""},
		{"traversal is rejected", "/../outside/token.txt", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(h, tt.path)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
			assert.Equal(t, tt.cache, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestSPAHandler_NoBuild(t *testing.T) {
	rec := get(NewSPAHandler(t.TempDir(), ""), "/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSoundFileHandler(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"airhorn.mp3":     "ID3",
		"bell.FLAC":       "fLaC",
		"notes.txt":       "not audio",
		"nested/drum.ogg": "OggS",
	})
	h := NewSoundFileHandler(dir, "/data")

	rec := get(h, "/data/airhorn.mp3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))

	rec = get(h, "/data/bell.FLAC")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/flac", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, get(h, "/data/nested/drum.ogg").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/data/notes.txt").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/data/missing.mp3").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/data/../airhorn.mp3").Code)
}
