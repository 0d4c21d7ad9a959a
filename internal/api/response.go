package api

import (
	"encoding/json"
	"net/http"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeProcessError reports a pipeline failure, exposing its kind so a
// caller can decide whether to resend.
func writeProcessError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	if kind := apperr.KindOf(err); kind != apperr.Unknown {
		resp.Kind = kind.String()
	}
	writeJSON(w, statusFor(err), resp)
}
