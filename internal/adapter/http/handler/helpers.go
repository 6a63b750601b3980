package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/iho/rideledger/internal/adapter/http/dto"
	"github.com/iho/rideledger/internal/domain"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError writes err as a classified error body.
func writeError(w http.ResponseWriter, err error) {
	status := mapDomainError(err)
	kind := string(domain.KindOf(err))
	message := domain.UserMessage(err)
	if status == http.StatusUnauthorized {
		kind = "unauthenticated"
		message = "Please sign in again."
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unclassified error")
		detail = ""
	}

	WriteErrorBody(w, status, dto.ErrorResponse{
		Error:   message,
		Message: detail,
		Kind:    kind,
		Action:  domain.SuggestedAction(err),
	})
}

// WriteErrorBody writes a prepared error body. Middleware uses it to keep
// error responses uniform.
func WriteErrorBody(w http.ResponseWriter, status int, body dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// mapDomainError maps domain error kinds to HTTP status codes.
func mapDomainError(err error) int {
	if isAuthError(err) {
		return http.StatusUnauthorized
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrExpiredToken)
}

// decodeJSON reads and validates a request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %s", domain.ErrInvalidInput, err.Error())
	}
	return dto.Validate(dst)
}

// principal returns the authenticated caller.
func principal(r *http.Request) (domain.Principal, error) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return p, nil
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
