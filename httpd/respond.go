package httpd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	adminhub "github.com/MrEthical07/adminhub"
	"github.com/MrEthical07/adminhub/postgres"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

// writeError maps error kinds to HTTP statuses with stable messages.
// Unrecognized errors become an opaque 500; details go to the log, not
// the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, adminhub.ErrValidation),
		errors.Is(err, adminhub.ErrPasswordPolicy),
		errors.Is(err, adminhub.ErrAccountRoleInvalid):
		writeMessage(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, adminhub.ErrAccountExists),
		errors.Is(err, postgres.ErrDuplicate):
		writeMessage(w, http.StatusBadRequest, "already exists")
	case errors.Is(err, adminhub.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, adminhub.ErrAccountDisabled):
		writeMessage(w, http.StatusUnauthorized, "account disabled")
	case errors.Is(err, adminhub.ErrRefreshReuse):
		writeMessage(w, http.StatusUnauthorized, "session revoked, please log in again")
	case errors.Is(err, adminhub.ErrRefreshInvalid):
		writeMessage(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, adminhub.ErrTokenExpired):
		writeMessage(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, adminhub.ErrTokenInvalid),
		errors.Is(err, adminhub.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, adminhub.ErrPermissionDenied):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, adminhub.ErrAccountNotFound),
		errors.Is(err, postgres.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, adminhub.ErrLoginRateLimited),
		errors.Is(err, adminhub.ErrRefreshRateLimited):
		writeMessage(w, http.StatusTooManyRequests, "too many requests")
	default:
		s.logger.Error("request failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
