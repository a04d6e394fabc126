package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/testutil"
)

func newScan(docID int64, risk scans.RiskLevel, at time.Time, items ...scans.SensitiveItem) *scans.Scan {
	return &scans.Scan{
		DocumentID:     docID,
		RiskLevel:      risk,
		ProcessingTime: 0.5,
		ScanDate:       at,
		Items:          items,
	}
}

func TestScanRepositoryCreateWithItems(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	docID := testutil.CreateTestDocument(t, db, 1, "report", "txt", false)
	repo := NewScanRepository(db)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newScan(docID, scans.RiskMedium, at,
		scans.SensitiveItem{Type: scans.TypeEmail, Confidence: 0.95, Location: json.RawMessage(`{"start":1,"end":5}`), Count: 1},
		scans.SensitiveItem{Type: "custom_marker", Confidence: 0.4, Count: 2},
	)
	if err := repo.CreateWithItems(ctx, s); err != nil {
		t.Fatalf("CreateWithItems failed: %v", err)
	}
	if s.ID == 0 || s.Items[0].ID == 0 || s.Items[1].ScanID != s.ID {
		t.Errorf("Expected ids to be filled, got scan %d items %+v", s.ID, s.Items)
	}

	if n := testutil.CountRows(t, db, "documents", "id = ? AND processed = 1", docID); n != 1 {
		t.Error("Expected document to be marked processed")
	}

	got, err := repo.GetOwned(ctx, 1, s.ID)
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}
	if got.RiskLevel != scans.RiskMedium || got.ProcessingTime != 0.5 || !got.ScanDate.Equal(at) {
		t.Errorf("Unexpected scan: %+v", got)
	}
	if len(got.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(got.Items))
	}
	if string(got.Items[0].Location) != `{"start":1,"end":5}` {
		t.Errorf("Expected location to round-trip, got %s", got.Items[0].Location)
	}
	if got.Items[1].Location != nil {
		t.Errorf("Expected NULL location, got %s", got.Items[1].Location)
	}
	if got.Items[1].Type != "custom_marker" || got.Items[1].Count != 2 {
		t.Errorf("Unexpected second item: %+v", got.Items[1])
	}
}

func TestScanRepositoryCreateWithoutItems(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	docID := testutil.CreateTestDocument(t, db, 1, "report", "txt", true)
	repo := NewScanRepository(db)

	s := newScan(docID, scans.RiskLow, time.Now().UTC())
	if err := repo.CreateWithItems(context.Background(), s); err != nil {
		t.Fatalf("CreateWithItems failed: %v", err)
	}
	got, err := repo.GetOwned(context.Background(), 1, s.ID)
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}
	if got.Items == nil || len(got.Items) != 0 {
		t.Errorf("Expected empty items slice, got %#v", got.Items)
	}
	if n := testutil.CountRows(t, db, "documents", "id = ? AND processed = 1", docID); n != 1 {
		t.Error("Expected already-processed document to stay processed")
	}
}

func TestScanRepositoryCreateRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	docID := testutil.CreateTestDocument(t, db, 1, "report", "txt", false)
	repo := NewScanRepository(db)

	// make the item insert fail after the scan row was written
	if _, err := db.Exec("DROP TABLE sensitive_items"); err != nil {
		t.Fatal(err)
	}
	s := newScan(docID, scans.RiskMedium, time.Now().UTC(),
		scans.SensitiveItem{Type: scans.TypeSSN, Confidence: 0.9, Count: 1},
	)
	if err := repo.CreateWithItems(context.Background(), s); err == nil {
		t.Fatal("Expected CreateWithItems to fail")
	}
	if n := testutil.CountRows(t, db, "document_scans", ""); n != 0 {
		t.Errorf("Expected no scan rows after rollback, got %d", n)
	}
	if n := testutil.CountRows(t, db, "documents", "id = ? AND processed = 0", docID); n != 1 {
		t.Error("Expected document to remain unprocessed after rollback")
	}
}

func TestScanRepositoryMissingDocument(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewScanRepository(db)

	err := repo.CreateWithItems(context.Background(), newScan(42, scans.RiskLow, time.Now().UTC()))
	if err == nil {
		t.Fatal("Expected foreign key failure")
	}
	if n := testutil.CountRows(t, db, "document_scans", ""); n != 0 {
		t.Errorf("Expected no scan rows, got %d", n)
	}
}

func TestScanRepositoryOwnershipAndListing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	testutil.CreateTestUser(t, db, 2, "bob")
	aliceDoc := testutil.CreateTestDocument(t, db, 1, "a", "txt", false)
	aliceDoc2 := testutil.CreateTestDocument(t, db, 1, "a2", "txt", false)
	bobDoc := testutil.CreateTestDocument(t, db, 2, "b", "txt", false)
	repo := NewScanRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	created := []*scans.Scan{
		newScan(aliceDoc, scans.RiskLow, base),
		newScan(aliceDoc, scans.RiskHigh, base.Add(time.Hour),
			scans.SensitiveItem{Type: scans.TypeEmail, Confidence: 0.9, Count: 1}),
		newScan(aliceDoc2, scans.RiskHigh, base.Add(2*time.Hour)),
		newScan(bobDoc, scans.RiskHigh, base.Add(3*time.Hour)),
	}
	for _, s := range created {
		if err := repo.CreateWithItems(ctx, s); err != nil {
			t.Fatalf("CreateWithItems failed: %v", err)
		}
	}

	if _, err := repo.GetOwned(ctx, 1, created[3].ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for bob's scan, got %v", err)
	}

	list, err := repo.ListByDocument(ctx, aliceDoc)
	if err != nil {
		t.Fatalf("ListByDocument failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != created[1].ID || len(list[0].Items) != 1 {
		t.Errorf("Expected newest scan with its item first, got %+v", list)
	}

	page, err := repo.Paginate(ctx, 1, scans.Filter{RiskLevel: scans.RiskHigh})
	if err != nil {
		t.Fatalf("Paginate failed: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("Expected 2 high scans for alice, got %d (%d rows)", page.Total, len(page.Data))
	}
	if page.Data[0].ID != created[2].ID {
		t.Errorf("Expected newest first, got scan %d", page.Data[0].ID)
	}

	asc, err := repo.Paginate(ctx, 1, scans.Filter{Ordering: "scan_date"})
	if err != nil {
		t.Fatalf("Paginate failed: %v", err)
	}
	if asc.Total != 3 || asc.Data[0].ID != created[0].ID {
		t.Errorf("Expected oldest first across alice's documents, got %+v", asc.Data)
	}
}
