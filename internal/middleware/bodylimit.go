package middleware

import (
	"net/http"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
)

// DefaultMaxBodySize covers every dashboard payload; audio files are not
// uploaded through the API.
const DefaultMaxBodySize = 64 << 10

type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

// Handler rejects declared oversize bodies up front and caps the rest while
// they are read, so chunked uploads cannot slip past the length check.
func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.maxSize {
			reject(w, http.StatusRequestEntityTooLarge,
				apperrors.ValidationError("Request body too large").WithDetails(map[string]int64{"maxBytes": m.maxSize}))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
