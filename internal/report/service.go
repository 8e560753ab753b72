package report

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/resivalidator/service-core/internal/report/repo"
)

const (
	defaultDays = 30
	maxDays     = 365
)

// Store is the data-access surface the service needs; *repo.ReportRepo
// satisfies it.
type Store interface {
	Today(ctx context.Context) (*repo.DayRow, error)
	Daily(ctx context.Context, days int) ([]repo.DayRow, error)
}

// Service computes the dashboard and reporting aggregates.
type Service struct {
	store Store
}

func NewService(db *sqlx.DB) *Service { return &Service{store: repo.NewReportRepo(db)} }

func NewServiceWithStore(store Store) *Service { return &Service{store: store} }

// DaySummary is one day's aggregate with the derived percentage.
type DaySummary struct {
	Day             time.Time `json:"day"`
	TotalResi       int       `json:"total_resi"`
	VerifiedResi    int       `json:"verified_resi"`
	PendingResi     int       `json:"pending_resi"`
	VerifiedPercent int       `json:"verified_percent"`
}

func (s *Service) Today(ctx context.Context) (*DaySummary, error) {
	row, err := s.store.Today(ctx)
	if err != nil {
		return nil, err
	}
	sum := Summarize(*row)
	return &sum, nil
}

func (s *Service) Daily(ctx context.Context, days int) ([]DaySummary, error) {
	rows, err := s.store.Daily(ctx, days)
	if err != nil {
		return nil, err
	}
	out := make([]DaySummary, len(rows))
	for i, row := range rows {
		out[i] = Summarize(row)
	}
	return out, nil
}

// Summarize derives the verified percentage: round(100*verified/total),
// 0 when the day has no receipts.
func Summarize(row repo.DayRow) DaySummary {
	percent := 0
	if row.TotalResi > 0 {
		percent = int(math.Round(100 * float64(row.VerifiedResi) / float64(row.TotalResi)))
	}
	return DaySummary{
		Day:             row.Day,
		TotalResi:       row.TotalResi,
		VerifiedResi:    row.VerifiedResi,
		PendingResi:     row.PendingResi,
		VerifiedPercent: percent,
	}
}

// ClampDays parses the days query parameter: default 30 when absent or
// non-positive, capped at 365.
func ClampDays(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultDays
	}
	if n > maxDays {
		return maxDays
	}
	return n
}
