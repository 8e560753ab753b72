package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Handler exposes the admin endpoints for checker account management.
type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(svc *Service, db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	if svc == nil {
		svc = NewService(db)
	}
	return &Handler{svc: svc, logger: logger, validate: validator.New()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.svc.ListCheckers(r.Context())
	if err != nil {
		h.logger.Errorw("list users failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch users"})
		return
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

type createUserRequest struct {
	FullName    string  `json:"full_name" validate:"required"`
	Username    string  `json:"username" validate:"required"`
	PhoneNumber *string `json:"phone_number"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Nama lengkap dan username diperlukan"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Nama lengkap dan username diperlukan"})
		return
	}
	p, err := h.svc.CreateChecker(r.Context(), req.FullName, req.Username, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Username sudah terdaftar"})
			return
		}
		h.logger.Errorw("create user failed", "username", req.Username, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal membuat user"})
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

type blockUserRequest struct {
	IsBlocked *bool `json:"is_blocked"`
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req blockUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsBlocked == nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_blocked harus boolean"})
		return
	}
	p, err := h.svc.SetBlocked(r.Context(), id, *req.IsBlocked)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "User tidak ditemukan"})
			return
		}
		h.logger.Errorw("block user failed", "id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal update user status"})
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteChecker(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "User tidak ditemukan"})
			return
		}
		h.logger.Errorw("delete user failed", "id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal delete user"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id tidak valid"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
