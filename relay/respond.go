package relay

import (
	"encoding/json"
	"net/http"

	"github.com/fbarrios/folio/chaterr"
)

// errorBody is the JSON shape of every relay error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, errorBody{Error: label, Message: message})
}

// writeFailure writes a classified error with its kind's status and label.
func writeFailure(w http.ResponseWriter, err *chaterr.Error) {
	writeError(w, err.Kind.Status(), chaterr.Label(err.Kind), err.Message)
}
