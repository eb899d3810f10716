package shield

import "net/http"

// HeadToGet serves HEAD through the GET routes, so probes against /healthz
// and /v1/latest get a status instead of 405. net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
