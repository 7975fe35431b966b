package security

import (
	"net/http"
)

// MaxBodySizeMiddleware caps request bodies at maxSizeKB kilobytes. Reads
// past the cap fail with *http.MaxBytesError.
func MaxBodySizeMiddleware(maxSizeKB int) func(http.Handler) http.Handler {
	if maxSizeKB <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	maxBytes := int64(maxSizeKB) * 1024

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Connection", "close")
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
