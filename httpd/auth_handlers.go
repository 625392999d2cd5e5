package httpd

import (
	"net/http"
	"time"

	adminhub "github.com/MrEthical07/adminhub"
	"github.com/MrEthical07/adminhub/middleware"
)

type accountPayload struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toAccountPayload(account adminhub.Account) accountPayload {
	p := accountPayload{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Role:      string(account.Role),
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}
	if !account.LastLoginAt.IsZero() {
		t := account.LastLoginAt
		p.LastLoginAt = &t
	}
	return p
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := s.engine.Register(r.Context(), adminhub.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     adminhub.Role(req.Role),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setRefreshCookie(w, result.RefreshToken)
	writeData(w, http.StatusCreated, map[string]any{
		"account":     toAccountPayload(result.Account),
		"accessToken": result.AccessToken,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setRefreshCookie(w, result.RefreshToken)
	writeData(w, http.StatusOK, map[string]any{
		"account":     toAccountPayload(result.Account),
		"accessToken": result.AccessToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFromRequest(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, refresh, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		// A rejected refresh means the cookie is worthless; drop it so the
		// client falls back to a clean login.
		s.clearRefreshCookie(w)
		s.writeError(w, err)
		return
	}

	s.setRefreshCookie(w, refresh)
	writeData(w, http.StatusOK, map[string]any{
		"accessToken": access,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// The cookie is cleared no matter what the ledger says; logout must
	// leave the browser signed out.
	defer s.clearRefreshCookie(w)

	token, ok := refreshTokenFromRequest(r)
	if !ok {
		writeData(w, http.StatusOK, map[string]any{"loggedOut": true})
		return
	}

	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	defer s.clearRefreshCookie(w)

	revoked, err := s.engine.LogoutAll(r.Context(), account.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"revokedTokens": revoked})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := s.engine.ChangePassword(r.Context(), account.ID, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, err)
		return
	}

	// Every refresh token is revoked by the change; the browser's cookie
	// is dead weight now.
	s.clearRefreshCookie(w)
	writeData(w, http.StatusOK, map[string]any{"changed": true})
}

func (s *Server) handleSetAccountActive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := s.engine.SetAccountActive(r.Context(), id, req.Active); err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}
