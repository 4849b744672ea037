package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/runtime"
)

type errorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError maps err to a status via failure.GetCode. Messages of unclassified errors
// are logged, never returned to the client.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := failure.GetCode(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		if logger != nil {
			runtime.Logger(r.Context(), logger).Error("request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"err", err,
			)
		}
		msg = http.StatusText(code)
	}
	WriteJSON(w, code, errorBody{Error: msg})
}
