package httpx

import (
	"net/http"

	"github.com/salonpanel/salonpanel/libs/runtime"
)

const RequestIDHeader = runtime.RequestIDHeader

// WithRequestID tags the request with an id, reusing a well-formed inbound X-Request-Id,
// and echoes it on the response. The gateway forwards the header so every service logs
// the same id for one call.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := runtime.RequestID(r.Header.Get(RequestIDHeader))
		r.Header.Set(RequestIDHeader, id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(runtime.WithRequestID(r.Context(), id)))
	})
}
