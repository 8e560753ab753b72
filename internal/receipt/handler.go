package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/resivalidator/service-core/internal/receipt/entity"
	"github.com/resivalidator/service-core/internal/receipt/repo"
)

// Handler exposes HTTP endpoints for receipts, line verification and
// checker history.
type Handler struct {
	svc      *Service
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

func NewHandler(db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewService(db), logger: logger, validate: validator.New()}
}

// createResiRequest mirrors the entry form payload; detail field names
// follow the form (id = item code, nama = item name).
type createResiRequest struct {
	ResiNumber string             `json:"resiNumber" validate:"required"`
	Details    []createResiDetail `json:"details" validate:"required,min=1"`
}

type createResiDetail struct {
	ID        *string     `json:"id"`
	Nama      *string     `json:"nama"`
	Kuantitas json.Number `json:"kuantitas"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createResiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resiNumber dan details diperlukan"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resiNumber dan details diperlukan"})
		return
	}
	lines := make([]entity.NewLine, len(req.Details))
	for i, d := range req.Details {
		qty := 0
		if n, err := d.Kuantitas.Int64(); err == nil {
			qty = int(n)
		}
		lines[i] = entity.NewLine{ItemCode: d.ID, ItemName: d.Nama, Quantity: qty}
	}
	created, err := h.svc.Create(r.Context(), req.ResiNumber, lines)
	if err != nil {
		if errors.Is(err, ErrDuplicateNumber) {
			h.writeJSON(w, http.StatusConflict, map[string]string{
				"error": fmt.Sprintf("Nomor resi %q sudah ada di database. Gunakan nomor resi yang berbeda.", req.ResiNumber),
			})
			return
		}
		h.logger.Errorw("create resi failed", "resi_number", req.ResiNumber, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal menyimpan resi ke database"})
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Pending(r.Context())
	if err != nil {
		h.logger.Errorw("list pending resi failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch pending resi"})
		return
	}
	h.writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Resi tidak ditemukan"})
			return
		}
		h.logger.Errorw("get resi failed", "id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch resi"})
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.AdminList(r.Context())
	if err != nil {
		h.logger.Errorw("list resi admin failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch resi admin"})
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

type replaceResiRequest struct {
	ResiNumber string            `json:"resiNumber" validate:"required"`
	Items      []replaceResiItem `json:"items" validate:"required,min=1"`
}

type replaceResiItem struct {
	ItemCode     *string     `json:"item_code"`
	QuantityItem json.Number `json:"quantity_item"`
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req replaceResiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resiNumber dan items diperlukan"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resiNumber dan items diperlukan"})
		return
	}
	lines := make([]entity.NewLine, len(req.Items))
	for i, it := range req.Items {
		qty := 0
		if n, err := it.QuantityItem.Int64(); err == nil {
			qty = int(n)
		}
		lines[i] = entity.NewLine{ItemCode: it.ItemCode, Quantity: qty}
	}
	updated, err := h.svc.Replace(r.Context(), id, req.ResiNumber, lines)
	if err != nil {
		var unknown *repo.UnknownItemError
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Resi tidak ditemukan"})
		case errors.Is(err, ErrVerifiedLock):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Resi tidak bisa diubah karena sudah terverifikasi"})
		case errors.Is(err, ErrDuplicateNumber):
			h.writeJSON(w, http.StatusConflict, map[string]string{
				"error": fmt.Sprintf("Nomor resi %q sudah ada di database.", req.ResiNumber),
			})
		case errors.As(err, &unknown):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("Item code tidak ditemukan: %s", unknown.Code),
			})
		default:
			h.logger.Errorw("replace resi failed", "id", id, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal mengubah resi"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Resi tidak ditemukan"})
		case errors.Is(err, ErrVerifiedLock):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "Resi tidak bisa dihapus karena sudah terverifikasi"})
		default:
			h.logger.Errorw("delete resi failed", "id", id, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal menghapus resi"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type verifyRequest struct {
	ScannedCode string  `json:"scanned_code" validate:"required"`
	Checker     *string `json:"checker"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scanned_code diperlukan"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scanned_code diperlukan"})
		return
	}
	result, err := h.svc.Verify(r.Context(), id, req.ScannedCode, req.Checker)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "resi_item tidak ditemukan"})
			return
		}
		h.logger.Errorw("verify resi item failed", "id", id, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal verifikasi item"})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get("x-checker-username")
	if username == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "x-checker-username header diperlukan"})
		return
	}
	groups, err := h.svc.History(r.Context(), username)
	if err != nil {
		h.logger.Errorw("fetch checker history failed", "checker", username, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch verification history"})
		return
	}
	h.writeJSON(w, http.StatusOK, groups)
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
