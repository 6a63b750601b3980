package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iho/rideledger/internal/adapter/http/dto"
)

func writeError(w http.ResponseWriter, status int, kind, message, action string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:  message,
		Kind:   kind,
		Action: action,
	})
}
