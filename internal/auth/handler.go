package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	userentity "github.com/resivalidator/service-core/internal/user/entity"
)

// Handler exposes login, logout and password change.
type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger, validate: validator.New()}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username dan password diperlukan"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username dan password diperlukan"})
		return
	}
	result, err := h.svc.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Username atau password salah"})
		case errors.Is(err, ErrBlocked):
			h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "Akun Anda telah diblokir"})
		default:
			h.logger.Errorw("login failed", "username", req.Username, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal login"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type changePasswordRequest struct {
	Username    string `json:"username" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type changePasswordResponse struct {
	OK   bool                `json:"ok"`
	User *userentity.Profile `json:"user"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username, password lama, dan password baru diperlukan"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username, password lama, dan password baru diperlukan"})
		return
	}
	profile, err := h.svc.ChangePassword(r.Context(), strings.TrimSpace(req.Username), req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Password minimal 6 karakter"})
		case errors.Is(err, ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Password lama salah"})
		default:
			h.logger.Errorw("change password failed", "username", req.Username, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal update password"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, changePasswordResponse{OK: true, User: profile})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := BearerToken(r); token != "" {
		h.svc.Logout(r.Context(), token)
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// BearerToken extracts the token from an Authorization: Bearer header,
// or returns "".
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
