package middleware

import "net/http"

const (
	// DefaultMaxBodySize caps JSON request bodies at 1MB.
	DefaultMaxBodySize int64 = 1 << 20

	// UploadMaxBodySize caps multipart upload bodies at 10MB.
	UploadMaxBodySize int64 = 10 << 20
)

// RequestSize wraps the body with http.MaxBytesReader; oversized
// bodies fail with 413 when read.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
