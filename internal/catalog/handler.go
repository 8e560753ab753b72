package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Handler exposes HTTP endpoints for the item catalog.
type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewService(db), logger: logger, validate: validator.New()}
}

// List serves both the public catalog lookup and the admin listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Errorw("list items failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch items"})
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// GetByCode auto-fills the item name on the receipt entry form.
func (h *Handler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("itemCode")
	it, err := h.svc.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item tidak ditemukan"})
			return
		}
		h.logger.Errorw("get item failed", "item_code", code, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch item"})
		return
	}
	h.writeJSON(w, http.StatusOK, it)
}

type createItemRequest struct {
	ItemCode        string  `json:"item_code" validate:"required"`
	ItemName        string  `json:"item_name" validate:"required"`
	CompatiblePhone *string `json:"compatible_phone"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload tidak valid"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_code dan item_name diperlukan"})
		return
	}
	it, err := h.svc.Create(r.Context(), req.ItemCode, req.ItemName, req.CompatiblePhone)
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Item code sudah ada"})
			return
		}
		h.logger.Errorw("create item failed", "item_code", req.ItemCode, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal menambahkan item"})
		return
	}
	h.writeJSON(w, http.StatusCreated, it)
}

type updateItemRequest struct {
	ItemCode        *string `json:"item_code"`
	ItemName        *string `json:"item_name"`
	CompatiblePhone *string `json:"compatible_phone"`
	phoneSet        bool
}

func (req *updateItemRequest) UnmarshalJSON(b []byte) error {
	type alias updateItemRequest
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*req = updateItemRequest(a)
	// distinguish "compatible_phone": null from the key being absent
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err == nil {
		_, req.phoneSet = probe["compatible_phone"]
	}
	return nil
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload tidak valid"})
		return
	}
	if req.ItemCode == nil && req.ItemName == nil && !req.phoneSet {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Tidak ada data yang diubah"})
		return
	}
	var phone *string
	if req.phoneSet {
		if req.CompatiblePhone == nil {
			empty := ""
			phone = &empty
		} else {
			phone = req.CompatiblePhone
		}
	}
	it, err := h.svc.Update(r.Context(), id, req.ItemCode, req.ItemName, phone)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item tidak ditemukan"})
		case errors.Is(err, ErrCodeInUse):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Item code tidak bisa diubah karena sudah dipakai di resi"})
		case errors.Is(err, ErrDuplicateCode):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Item code sudah ada"})
		default:
			h.logger.Errorw("update item failed", "id", id, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal mengubah item"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, it)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item tidak ditemukan"})
		case errors.Is(err, ErrCodeInUse):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Item tidak bisa dihapus karena sudah dipakai di resi"})
		default:
			h.logger.Errorw("delete item failed", "id", id, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal menghapus item"})
		}
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
