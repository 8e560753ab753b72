package receipt

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/resivalidator/service-core/internal/receipt/entity"
	"github.com/resivalidator/service-core/internal/receipt/repo"
)

func strPtr(s string) *string { return &s }

// fakeStore emulates the conditional-increment semantics of the real
// repo in memory. Only the methods the tests exercise are implemented.
type fakeStore struct {
	lines map[int64]*entity.ResiItem
}

func (f *fakeStore) GetLine(_ context.Context, id int64) (*entity.ResiItem, error) {
	l, ok := f.lines[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) RecordMismatch(_ context.Context, id int64, scanned string) (*entity.ResiItem, error) {
	l, ok := f.lines[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	now := time.Now()
	l.LastScan = &now
	l.LastScannedCode = &scanned
	cp := *l
	return &cp, nil
}

func (f *fakeStore) RecordMatch(_ context.Context, id int64, scanned string, checker *string) (*entity.ResiItem, bool, error) {
	l, ok := f.lines[id]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	if l.ScannedCount >= l.QuantityItem {
		return nil, false, nil
	}
	now := time.Now()
	l.ScannedCount++
	l.LastScan = &now
	l.LastScannedCode = &scanned
	if l.ScannedCount >= l.QuantityItem {
		l.Verified = true
		l.VerifiedAt = &now
		l.VerifiedBy = checker
	}
	cp := *l
	return &cp, true, nil
}

func (f *fakeStore) Create(context.Context, string, []entity.NewLine) (*entity.Resi, []*entity.ResiItem, error) {
	panic("not used")
}
func (f *fakeStore) Get(context.Context, int64) (*entity.Resi, error) { panic("not used") }
func (f *fakeStore) Lines(context.Context, int64) ([]*entity.ResiItemDetail, error) {
	panic("not used")
}
func (f *fakeStore) PendingRows(context.Context) ([]repo.PendingRow, error)       { panic("not used") }
func (f *fakeStore) AdminHeaders(context.Context) ([]repo.AdminHeaderRow, error)  { panic("not used") }
func (f *fakeStore) AllLines(context.Context) ([]*entity.ResiItemDetail, error)   { panic("not used") }
func (f *fakeStore) DeleteGuarded(context.Context, int64) error                   { panic("not used") }
func (f *fakeStore) HistoryRows(context.Context, string) ([]repo.HistoryRow, error) {
	panic("not used")
}
func (f *fakeStore) ReplaceGuarded(context.Context, int64, string, []entity.NewLine) (*entity.Resi, []*entity.ResiItem, error) {
	panic("not used")
}

func newLine(id int64, code string, qty int) *entity.ResiItem {
	return &entity.ResiItem{ID: id, ResiID: 1, ItemCode: strPtr(code), ItemName: strPtr("Casing " + code), QuantityItem: qty}
}

func TestNormalizeLines(t *testing.T) {
	in := []entity.NewLine{
		{ItemCode: strPtr("LCD-A1"), Quantity: 3},
		{ItemCode: strPtr("LCD-A2"), Quantity: 0},
		{ItemCode: strPtr("LCD-A3"), Quantity: -2},
	}
	out := NormalizeLines(in)
	expected := []int{3, 1, 1}
	for i, q := range expected {
		if out[i].Quantity != q {
			t.Fatalf("line %d quantity = %d, expected %d", i, out[i].Quantity, q)
		}
	}
	if in[1].Quantity != 0 {
		t.Fatal("NormalizeLines must not mutate its input")
	}
}

func TestVerifyMatchAdvancesCounter(t *testing.T) {
	store := &fakeStore{lines: map[int64]*entity.ResiItem{10: newLine(10, "LCD-A1", 2)}}
	svc := NewServiceWithStore(store)
	checker := strPtr("budi")

	res, err := svc.Verify(context.Background(), 10, "LCD-A1", checker)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if res.Verified || res.ScannedCount != 1 {
		t.Fatalf("after first scan: verified=%v count=%d", res.Verified, res.ScannedCount)
	}

	res, err = svc.Verify(context.Background(), 10, "LCD-A1", checker)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if !res.Verified || res.ScannedCount != 2 {
		t.Fatalf("after second scan: verified=%v count=%d", res.Verified, res.ScannedCount)
	}
	if store.lines[10].VerifiedBy == nil || *store.lines[10].VerifiedBy != "budi" {
		t.Fatal("checker not stamped on completion")
	}
}

func TestVerifyMatchIsCaseInsensitive(t *testing.T) {
	store := &fakeStore{lines: map[int64]*entity.ResiItem{10: newLine(10, "LCD-A1", 1)}}
	svc := NewServiceWithStore(store)

	res, err := svc.Verify(context.Background(), 10, "lcd-a1", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Verified {
		t.Fatal("case-insensitive match should verify the line")
	}
}

func TestVerifyMismatchRecordsAttemptOnly(t *testing.T) {
	store := &fakeStore{lines: map[int64]*entity.ResiItem{10: newLine(10, "LCD-A1", 1)}}
	svc := NewServiceWithStore(store)

	res, err := svc.Verify(context.Background(), 10, "LCD-B9", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Verified || res.ScannedCount != 0 {
		t.Fatalf("mismatch must not advance: verified=%v count=%d", res.Verified, res.ScannedCount)
	}
	if store.lines[10].LastScannedCode == nil || *store.lines[10].LastScannedCode != "LCD-B9" {
		t.Fatal("mismatch attempt not recorded")
	}
}

func TestVerifyCompleteLineIsUnchanged(t *testing.T) {
	line := newLine(10, "LCD-A1", 1)
	line.ScannedCount = 1
	line.Verified = true
	store := &fakeStore{lines: map[int64]*entity.ResiItem{10: line}}
	svc := NewServiceWithStore(store)

	res, err := svc.Verify(context.Background(), 10, "LCD-A1", nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Verified || res.ScannedCount != 1 {
		t.Fatalf("complete line must stay at count 1: verified=%v count=%d", res.Verified, res.ScannedCount)
	}
	if store.lines[10].ScannedCount != 1 {
		t.Fatalf("counter exceeded quantity: %d", store.lines[10].ScannedCount)
	}
}

func TestVerifyUnknownLine(t *testing.T) {
	svc := NewServiceWithStore(&fakeStore{lines: map[int64]*entity.ResiItem{}})
	_, err := svc.Verify(context.Background(), 99, "LCD-A1", nil)
	if !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestGroupPending(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rows := []repo.PendingRow{
		{ResiID: 2, ResiNumber: "JNE-002", TotalItems: 2, CreatedAt: created, ResiItemID: 21, ItemCode: strPtr("LCD-A1"), QuantityItem: 1},
		{ResiID: 2, ResiNumber: "JNE-002", TotalItems: 2, CreatedAt: created, ResiItemID: 22, ItemCode: strPtr("LCD-A2"), QuantityItem: 3},
		{ResiID: 1, ResiNumber: "JNE-001", TotalItems: 1, CreatedAt: created, ResiItemID: 11, ItemCode: strPtr("LCD-A3"), QuantityItem: 2},
	}
	out := GroupPending(rows)
	if len(out) != 2 {
		t.Fatalf("groups = %d, expected 2", len(out))
	}
	if out[0].ResiID != 2 || out[1].ResiID != 1 {
		t.Fatalf("row order not preserved: %d, %d", out[0].ResiID, out[1].ResiID)
	}
	if len(out[0].Items) != 2 || len(out[1].Items) != 1 {
		t.Fatalf("line grouping wrong: %d, %d", len(out[0].Items), len(out[1].Items))
	}
	if out[0].Items[1].ResiItemID != 22 {
		t.Fatalf("line order not preserved: %d", out[0].Items[1].ResiItemID)
	}
}

func TestGroupPendingEmpty(t *testing.T) {
	out := GroupPending(nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", out)
	}
}

func TestGroupHistory(t *testing.T) {
	newer := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	older := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := []repo.HistoryRow{
		{ResiItemID: 31, ResiID: 3, ResiNumber: "JNE-003", ItemCode: strPtr("LCD-A1"), QuantityItem: 1, VerifiedAt: &newer},
		{ResiItemID: 32, ResiID: 3, ResiNumber: "JNE-003", ItemCode: strPtr("LCD-A2"), QuantityItem: 1, VerifiedAt: &older},
		{ResiItemID: 11, ResiID: 1, ResiNumber: "JNE-001", ItemCode: strPtr("LCD-A3"), QuantityItem: 2, VerifiedAt: &older},
	}
	out := GroupHistory(rows)
	if len(out) != 2 {
		t.Fatalf("groups = %d, expected 2", len(out))
	}
	if out[0].ResiID != 3 || len(out[0].Items) != 2 {
		t.Fatalf("first group wrong: id=%d items=%d", out[0].ResiID, len(out[0].Items))
	}
	if out[0].VerifiedAt == nil || !out[0].VerifiedAt.Equal(newer) {
		t.Fatal("group timestamp should come from its first row")
	}
}
