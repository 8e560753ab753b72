package receipt

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/resivalidator/service-core/internal/receipt/entity"
	"github.com/resivalidator/service-core/internal/receipt/repo"
	"github.com/resivalidator/service-core/pkg/database"
)

// sentinel errors for common failure modes
var (
	ErrNotFound        = errors.New("resi not found")
	ErrLineNotFound    = errors.New("resi item not found")
	ErrDuplicateNumber = errors.New("resi number already exists")
	ErrVerifiedLock    = errors.New("resi already has verified lines")
)

// Store is the data-access surface the service needs; *repo.ResiRepo
// satisfies it.
type Store interface {
	Create(ctx context.Context, number string, lines []entity.NewLine) (*entity.Resi, []*entity.ResiItem, error)
	Get(ctx context.Context, id int64) (*entity.Resi, error)
	Lines(ctx context.Context, resiID int64) ([]*entity.ResiItemDetail, error)
	PendingRows(ctx context.Context) ([]repo.PendingRow, error)
	AdminHeaders(ctx context.Context) ([]repo.AdminHeaderRow, error)
	AllLines(ctx context.Context) ([]*entity.ResiItemDetail, error)
	ReplaceGuarded(ctx context.Context, id int64, number string, lines []entity.NewLine) (*entity.Resi, []*entity.ResiItem, error)
	DeleteGuarded(ctx context.Context, id int64) error
	GetLine(ctx context.Context, id int64) (*entity.ResiItem, error)
	RecordMismatch(ctx context.Context, id int64, scanned string) (*entity.ResiItem, error)
	RecordMatch(ctx context.Context, id int64, scanned string, checker *string) (*entity.ResiItem, bool, error)
	HistoryRows(ctx context.Context, username string) ([]repo.HistoryRow, error)
}

// Service orchestrates receipt lifecycle and line verification.
type Service struct {
	store Store
}

func NewService(db *sqlx.DB) *Service { return &Service{store: repo.NewResiRepo(db)} }

func NewServiceWithStore(store Store) *Service { return &Service{store: store} }

// NormalizeLines copies the inputs, defaulting quantity to 1 when
// omitted or below 1.
func NormalizeLines(lines []entity.NewLine) []entity.NewLine {
	out := make([]entity.NewLine, len(lines))
	for i, l := range lines {
		out[i] = l
		if out[i].Quantity < 1 {
			out[i].Quantity = 1
		}
	}
	return out
}

// Created is the payload of a successful create or replace.
type Created struct {
	Resi  *entity.Resi       `json:"resi"`
	Items []*entity.ResiItem `json:"items"`
}

func (s *Service) Create(ctx context.Context, number string, lines []entity.NewLine) (*Created, error) {
	header, items, err := s.store.Create(ctx, number, NormalizeLines(lines))
	if err != nil {
		if database.IsUniqueViolation(err, "resi_resi_number_key") {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return &Created{Resi: header, Items: items}, nil
}

// Detail is a header with its lines.
type Detail struct {
	Resi  *entity.Resi             `json:"resi"`
	Items []*entity.ResiItemDetail `json:"items"`
}

func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	header, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := s.store.Lines(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Resi: header, Items: items}, nil
}

// PendingItem is one unverified line in the pending listing.
type PendingItem struct {
	ResiItemID   int64   `json:"resi_item_id"`
	ItemCode     *string `json:"item_code"`
	ItemName     *string `json:"item_name"`
	QuantityItem int     `json:"quantity_item"`
	ScannedCount int     `json:"scanned_count"`
	Verified     bool    `json:"verified"`
}

// PendingResi is a receipt that still has unverified lines.
type PendingResi struct {
	ResiID     int64         `json:"resi_id"`
	ResiNumber string        `json:"resi_number"`
	TotalItems int           `json:"total_items"`
	CreatedAt  time.Time     `json:"created_at"`
	Items      []PendingItem `json:"items"`
}

func (s *Service) Pending(ctx context.Context) ([]*PendingResi, error) {
	rows, err := s.store.PendingRows(ctx)
	if err != nil {
		return nil, err
	}
	return GroupPending(rows), nil
}

// GroupPending folds flat header+line rows into one entry per receipt,
// preserving the row order.
func GroupPending(rows []repo.PendingRow) []*PendingResi {
	byID := map[int64]*PendingResi{}
	out := []*PendingResi{}
	for _, row := range rows {
		g, ok := byID[row.ResiID]
		if !ok {
			g = &PendingResi{
				ResiID:     row.ResiID,
				ResiNumber: row.ResiNumber,
				TotalItems: row.TotalItems,
				CreatedAt:  row.CreatedAt,
			}
			byID[row.ResiID] = g
			out = append(out, g)
		}
		g.Items = append(g.Items, PendingItem{
			ResiItemID:   row.ResiItemID,
			ItemCode:     row.ItemCode,
			ItemName:     row.ItemName,
			QuantityItem: row.QuantityItem,
			ScannedCount: row.ScannedCount,
			Verified:     row.Verified,
		})
	}
	return out
}

// AdminResi is a header with counts and its full line set for the
// admin listing.
type AdminResi struct {
	entity.Resi
	ItemCount     int                      `json:"item_count"`
	VerifiedCount int                      `json:"verified_count"`
	Items         []*entity.ResiItemDetail `json:"items"`
}

func (s *Service) AdminList(ctx context.Context) ([]*AdminResi, error) {
	headers, err := s.store.AdminHeaders(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.AllLines(ctx)
	if err != nil {
		return nil, err
	}
	byResi := map[int64][]*entity.ResiItemDetail{}
	for _, l := range lines {
		byResi[l.ResiID] = append(byResi[l.ResiID], l)
	}
	out := make([]*AdminResi, 0, len(headers))
	for _, h := range headers {
		items := byResi[h.ID]
		if items == nil {
			items = []*entity.ResiItemDetail{}
		}
		out = append(out, &AdminResi{
			Resi:          h.Resi,
			ItemCount:     h.ItemCount,
			VerifiedCount: h.VerifiedCount,
			Items:         items,
		})
	}
	return out, nil
}

// Replace rewrites a pre-verification receipt wholesale.
func (s *Service) Replace(ctx context.Context, id int64, number string, lines []entity.NewLine) (*Created, error) {
	header, items, err := s.store.ReplaceGuarded(ctx, id, number, NormalizeLines(lines))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		case errors.Is(err, repo.ErrVerified):
			return nil, ErrVerifiedLock
		case database.IsUniqueViolation(err, "resi_resi_number_key"):
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return &Created{Resi: header, Items: items}, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.DeleteGuarded(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, repo.ErrVerified):
		return ErrVerifiedLock
	}
	return err
}

// VerifyResult is the per-scan response payload.
type VerifyResult struct {
	ResiItemID   int64   `json:"resi_item_id"`
	Expected     *string `json:"expected"`
	ScannedCode  string  `json:"scanned_code"`
	Verified     bool    `json:"verified"`
	ScannedCount int     `json:"scanned_count"`
	QuantityItem int     `json:"quantity_item"`
}

// Verify compares the scanned code against the line's expected code,
// case-insensitively. A match advances the server-side scan counter
// atomically and flips the line to verified when the counter reaches
// the required quantity; a mismatch only records the attempt. Already
// complete lines are reported verified without modification, so the
// flag is monotonic.
func (s *Service) Verify(ctx context.Context, lineID int64, scanned string, checker *string) (*VerifyResult, error) {
	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}

	match := line.ItemCode != nil && strings.EqualFold(*line.ItemCode, scanned)
	if !match {
		updated, err := s.store.RecordMismatch(ctx, lineID, scanned)
		if err != nil {
			return nil, err
		}
		return verifyResult(updated, scanned), nil
	}

	updated, applied, err := s.store.RecordMatch(ctx, lineID, scanned, checker)
	if err != nil {
		return nil, err
	}
	if !applied {
		// counter already at quantity; report current state untouched
		current, err := s.store.GetLine(ctx, lineID)
		if err != nil {
			return nil, err
		}
		return verifyResult(current, scanned), nil
	}
	return verifyResult(updated, scanned), nil
}

func verifyResult(line *entity.ResiItem, scanned string) *VerifyResult {
	return &VerifyResult{
		ResiItemID:   line.ID,
		Expected:     line.ItemCode,
		ScannedCode:  scanned,
		Verified:     line.Verified,
		ScannedCount: line.ScannedCount,
		QuantityItem: line.QuantityItem,
	}
}

// HistoryItem is one verified line in the checker history view.
type HistoryItem struct {
	ResiItemID   int64      `json:"resi_item_id"`
	ItemCode     *string    `json:"item_code"`
	ItemName     *string    `json:"item_name"`
	QuantityItem int        `json:"quantity_item"`
	VerifiedAt   *time.Time `json:"verified_at"`
}

// HistoryGroup is one receipt's worth of a checker's verifications.
type HistoryGroup struct {
	ResiID     int64         `json:"resi_id"`
	ResiNumber string        `json:"resi_number"`
	VerifiedAt *time.Time    `json:"verified_at"`
	Items      []HistoryItem `json:"items"`
}

func (s *Service) History(ctx context.Context, username string) ([]*HistoryGroup, error) {
	rows, err := s.store.HistoryRows(ctx, username)
	if err != nil {
		return nil, err
	}
	return GroupHistory(rows), nil
}

// GroupHistory folds flat history rows into one group per receipt,
// preserving the row order (newest verification first).
func GroupHistory(rows []repo.HistoryRow) []*HistoryGroup {
	byID := map[int64]*HistoryGroup{}
	out := []*HistoryGroup{}
	for _, row := range rows {
		g, ok := byID[row.ResiID]
		if !ok {
			g = &HistoryGroup{
				ResiID:     row.ResiID,
				ResiNumber: row.ResiNumber,
				VerifiedAt: row.VerifiedAt,
			}
			byID[row.ResiID] = g
			out = append(out, g)
		}
		g.Items = append(g.Items, HistoryItem{
			ResiItemID:   row.ResiItemID,
			ItemCode:     row.ItemCode,
			ItemName:     row.ItemName,
			QuantityItem: row.QuantityItem,
			VerifiedAt:   row.VerifiedAt,
		})
	}
	return out
}
