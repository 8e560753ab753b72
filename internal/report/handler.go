package report

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Handler exposes the dashboard stats and the admin daily report.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewService(db), logger: logger}
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Today(r.Context())
	if err != nil {
		h.logger.Errorw("daily stats failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch daily stats"})
		return
	}
	h.writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	days := ClampDays(r.URL.Query().Get("days"))
	rows, err := h.svc.Daily(r.Context(), days)
	if err != nil {
		h.logger.Errorw("daily report failed", "days", days, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gagal fetch daily report"})
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
