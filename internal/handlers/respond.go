package handlers

import (
	"encoding/json"
	"net/http"

	"consultas-gateway/internal/gateway"
)

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw sends an already encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string, detalle any) {
	eb := gateway.ErrorBody{Message: message}
	if detalle != nil {
		eb.Detalle, _ = json.Marshal(detalle)
	}
	writeJSON(w, status, eb)
}
