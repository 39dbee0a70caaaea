package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Gzip compresses responses of at least minSize bytes. Upgrade requests pass
// through untouched so websockets can hijack the connection.
func Gzip(next http.Handler, minSize int) (http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize))
	if err != nil {
		return nil, err
	}
	compressed := wrap(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	}), nil
}
