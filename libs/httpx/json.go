package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes v with the given status. Encoding failures after the
// header is written cannot be reported to the client; callers marshal ahead
// of time when the body must be all-or-nothing.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError emits the standard {"error": "..."} envelope.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
