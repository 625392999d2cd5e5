package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	adminhub "github.com/MrEthical07/adminhub"
)

// AccessTokenCookie is the cookie consulted when no Authorization header
// is present. Browser clients rely on it; API clients send the header.
const AccessTokenCookie = "accessToken"

// AccountFromContext describes the accountfromcontext operation and its observable behavior.
//
// AccountFromContext may return an error when input validation, dependency calls, or security checks fail.
// AccountFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func AccountFromContext(ctx context.Context) (*adminhub.Account, bool) {
	account := adminhub.AccountFromContext(ctx)
	return account, account != nil
}

// Guard describes the guard operation and its observable behavior.
//
// Guard may return an error when input validation, dependency calls, or security checks fail.
// Guard does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Guard(engine *adminhub.Engine, required adminhub.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				reject(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := requestToken(r)
			if !ok {
				reject(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			account, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, adminhub.ErrTokenExpired):
					reject(w, http.StatusUnauthorized, "token expired")
				case errors.Is(err, adminhub.ErrAccountDisabled):
					reject(w, http.StatusUnauthorized, "account disabled")
				case errors.Is(err, adminhub.ErrProviderUnavailable):
					reject(w, http.StatusInternalServerError, "internal error")
				default:
					reject(w, http.StatusUnauthorized, "unauthorized")
				}
				return
			}

			if err := engine.Authorize(account, required); err != nil {
				reject(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := adminhub.WithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin wraps a handler so any valid admin or super-admin passes.
func RequireAdmin(engine *adminhub.Engine) func(http.Handler) http.Handler {
	return Guard(engine, adminhub.RoleAdmin)
}

// RequireSuperAdmin wraps a handler so only super-admins pass.
func RequireSuperAdmin(engine *adminhub.Engine) func(http.Handler) http.Handler {
	return Guard(engine, adminhub.RoleSuperAdmin)
}

func requestToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}

	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
