package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatsounds/soundboard-server/internal/model"
)

// audioTypes maps each catalog format to its content type.
// mime.TypeByExtension misses flac on minimal images.
var audioTypes = map[model.AudioFormat]string{
	model.FormatMP3:  "audio/mpeg",
	model.FormatWAV:  "audio/wav",
	model.FormatOGG:  "audio/ogg",
	model.FormatFLAC: "audio/flac",
}

// resolve maps a request path under prefix to a file inside root, or ""
// when the cleaned path escapes root.
func resolve(root, prefix, urlPath string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(urlPath, prefix), "/")
	root = filepath.Clean(root)
	full := filepath.Join(root, filepath.FromSlash(rel))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return ""
	}
	return full
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SPAHandler serves the dashboard build and falls back to index.html so
// client-side routes resolve.
type SPAHandler struct {
	staticDir string
	prefix    string
}

func NewSPAHandler(staticDir, prefix string) *SPAHandler {
	return &SPAHandler{staticDir: staticDir, prefix: prefix}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, h.prefix), "/"), "api/") {
		http.NotFound(w, r)
		return
	}

	filePath := resolve(h.staticDir, h.prefix, r.URL.Path)
	if filePath == "" {
		http.NotFound(w, r)
		return
	}

	if isFile(filePath) && filepath.Base(filePath) != "index.html" {
		// Bundler output under assets/ is content-hashed.
		if strings.Contains(filepath.ToSlash(filePath), "/assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		http.ServeFile(w, r, filePath)
		return
	}

	indexPath := filepath.Join(filepath.Clean(h.staticDir), "index.html")
	f, err := os.Open(indexPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// ServeContent, unlike ServeFile, does not redirect /index.html requests.
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}

func StaticFileServer(staticDir, prefix string) http.Handler {
	return NewSPAHandler(staticDir, prefix)
}

// SoundFileHandler serves the audio files referenced by sound paths. Only
// catalog formats are served and there is no index fallback.
type SoundFileHandler struct {
	dir    string
	prefix string
}

func NewSoundFileHandler(dir, prefix string) *SoundFileHandler {
	return &SoundFileHandler{dir: dir, prefix: prefix}
}

func (h *SoundFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filePath := resolve(h.dir, h.prefix, r.URL.Path)
	format, ok := model.FormatFromPath(filePath)
	if filePath == "" || !ok || !isFile(filePath) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", audioTypes[format])
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}
