package middleware

import "net/http"

// BodyLimit returns middleware that caps request bodies at n bytes. Reads past
// the limit fail with *http.MaxBytesError. A non-positive n disables the limit.
func BodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
