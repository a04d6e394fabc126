package documents

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanwahyu/docguard/internal/application/stats"
	domain "github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/domain/users"
	"github.com/bryanwahyu/docguard/internal/infra/db/mysql"
	"github.com/bryanwahyu/docguard/internal/testutil"
)

func setup(t *testing.T) (*Service, *sql.DB, *testutil.Clock) {
	t.Helper()
	return setupOn(t, testutil.SetupTestDB(t))
}

func setupOn(t *testing.T, db *sql.DB) (*Service, *sql.DB, *testutil.Clock) {
	t.Helper()
	testutil.CreateTestUser(t, db, 1, "alice")
	testutil.CreateTestUser(t, db, 2, "bob")
	clock := testutil.NewClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	return &Service{
		Repo:  mysql.NewDocumentRepository(db),
		Scans: mysql.NewScanRepository(db),
		Stats: &stats.Service{Repo: mysql.NewUserRepository(db)},
		Clock: clock,
	}, db, clock
}

func counters(t *testing.T, db *sql.DB, id int64) users.Counters {
	t.Helper()
	u, err := mysql.NewUserRepository(db).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}
	return u.Counters
}

func TestCreate(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "  Q1 payroll ", FileType: "CSV", FileKey: "uploads/1/payroll.csv"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if doc.ID == 0 || doc.Title != "Q1 payroll" || doc.FileType != "csv" || doc.Processed {
		t.Errorf("Unexpected document: %+v", doc)
	}
	if c := counters(t, db, 1); c.DocumentsSaved != 1 {
		t.Errorf("Expected 1 saved document, got %d", c.DocumentsSaved)
	}

	_, err = svc.Create(ctx, 1, CreateCommand{Title: "", FileType: strings.Repeat("x", 300)})
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if len(ve.Fields["title"]) == 0 || len(ve.Fields["file_type"]) == 0 {
		t.Errorf("Expected title and file_type errors, got %v", ve.Fields)
	}
	if c := counters(t, db, 1); c.DocumentsSaved != 1 {
		t.Errorf("Expected rejected create to leave counter at 1, got %d", c.DocumentsSaved)
	}
}

func TestUpdateProcessedTransitions(t *testing.T) {
	svc, db, clock := setup(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "contract", FileType: "pdf"})
	if err != nil {
		t.Fatal(err)
	}

	processed := true
	clock.Advance(time.Minute)
	got, err := svc.Update(ctx, 1, doc.ID, domain.Patch{Processed: &processed})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !got.Processed || !got.UpdatedAt.After(doc.CreatedAt) {
		t.Errorf("Unexpected document after update: %+v", got)
	}
	if c := counters(t, db, 1); c.DocumentsProcessed != 1 {
		t.Errorf("Expected 1 processed document, got %d", c.DocumentsProcessed)
	}

	// true -> true and true -> false do not count
	if _, err := svc.Update(ctx, 1, doc.ID, domain.Patch{Processed: &processed}); err != nil {
		t.Fatal(err)
	}
	unprocessed := false
	if _, err := svc.Update(ctx, 1, doc.ID, domain.Patch{Processed: &unprocessed}); err != nil {
		t.Fatal(err)
	}
	if c := counters(t, db, 1); c.DocumentsProcessed != 1 {
		t.Errorf("Expected processed counter to stay at 1, got %d", c.DocumentsProcessed)
	}

	title := "signed contract"
	got, err = svc.Update(ctx, 1, doc.ID, domain.Patch{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != title || got.Processed {
		t.Errorf("Unexpected document: %+v", got)
	}
}

// barrierRepo holds every GetOwned caller until all of them have read the
// document, so concurrent updates all start from the same snapshot.
type barrierRepo struct {
	domain.Repository
	ready *sync.WaitGroup
}

func (b barrierRepo) GetOwned(ctx context.Context, userID, id int64) (*domain.Document, error) {
	d, err := b.Repository.GetOwned(ctx, userID, id)
	b.ready.Done()
	b.ready.Wait()
	return d, err
}

func TestConcurrentProcessedTransitionCountsOnce(t *testing.T) {
	svc, db, _ := setupOn(t, testutil.SetupConcurrentTestDB(t))
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "invoice", FileType: "pdf"})
	if err != nil {
		t.Fatal(err)
	}

	const callers = 5
	var ready, done sync.WaitGroup
	ready.Add(callers)
	svc.Repo = barrierRepo{Repository: svc.Repo, ready: &ready}

	processed := true
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			got, err := svc.Update(ctx, 1, doc.ID, domain.Patch{Processed: &processed})
			if err != nil {
				t.Errorf("Update failed: %v", err)
				return
			}
			if !got.Processed {
				t.Errorf("Expected processed document, got %+v", got)
			}
		}()
	}
	done.Wait()

	if c := counters(t, db, 1); c.DocumentsProcessed != 1 {
		t.Errorf("Expected one false->true transition to count once, got %d", c.DocumentsProcessed)
	}
}

func TestUpdateNormalizesFields(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "ledger", FileType: "txt"})
	if err != nil {
		t.Fatal(err)
	}

	title, fileType := "  yearly ledger ", " CSV "
	got, err := svc.Update(ctx, 1, doc.ID, domain.Patch{Title: &title, FileType: &fileType})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Title != "yearly ledger" || got.FileType != "csv" {
		t.Errorf("Expected normalized fields, got %q / %q", got.Title, got.FileType)
	}

	list, err := svc.List(ctx, 1, domain.Filter{FileType: "csv"})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Data[0].ID != doc.ID {
		t.Errorf("Expected patched document under file_type=csv, got %+v", list)
	}

	// nothing to change: no write, no counter
	got, err = svc.Update(ctx, 1, doc.ID, domain.Patch{})
	if err != nil {
		t.Fatalf("empty Update failed: %v", err)
	}
	if got.Title != "yearly ledger" || got.Processed {
		t.Errorf("Unexpected document after empty patch: %+v", got)
	}
	if c := counters(t, db, 1); c.DocumentsProcessed != 0 || c.DocumentsSaved != 1 {
		t.Errorf("Unexpected counters: %+v", c)
	}
}

func TestFieldLengthLimits(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "notes", FileType: "txt"})
	if err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("x", domain.MaxFileTypeLen+1)
	exact := strings.Repeat("é", domain.MaxFileTypeLen)
	blank := "   "
	tests := []struct {
		name  string
		patch domain.Patch
		field string
	}{
		{"file type over column width", domain.Patch{FileType: &long}, "file_type"},
		{"blank title", domain.Patch{Title: &blank}, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, 1, doc.ID, tt.patch)
			var ve *errs.ValidationError
			if !errors.As(err, &ve) || len(ve.Fields[tt.field]) == 0 {
				t.Errorf("Expected %s validation error, got %v", tt.field, err)
			}
		})
	}

	// the limit counts characters, not bytes
	if _, err := svc.Update(ctx, 1, doc.ID, domain.Patch{FileType: &exact}); err != nil {
		t.Errorf("Expected %d multi-byte characters to fit, got %v", domain.MaxFileTypeLen, err)
	}
	if _, err := svc.Create(ctx, 1, CreateCommand{Title: "t", FileType: long}); err == nil {
		t.Error("Expected Create to reject an over-long file type")
	}
}

func TestOwnershipScoping(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "secret", FileType: "txt"})
	if err != nil {
		t.Fatal(err)
	}

	title := "mine now"
	if _, err := svc.Update(ctx, 2, doc.ID, domain.Patch{Title: &title}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on update, got %v", err)
	}
	if _, err := svc.Get(ctx, 2, doc.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on get, got %v", err)
	}
	if _, err := svc.DocumentScans(ctx, 2, doc.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on scans, got %v", err)
	}
	if _, err := svc.Share(ctx, 2, doc.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on share, got %v", err)
	}
	if c := counters(t, db, 2); c != (users.Counters{}) {
		t.Errorf("Expected bob's counters untouched, got %+v", c)
	}
}

func TestGetWithScans(t *testing.T) {
	svc, _, clock := setup(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "ledger", FileType: "xlsx"})
	if err != nil {
		t.Fatal(err)
	}

	for _, risk := range []scans.RiskLevel{scans.RiskLow, scans.RiskHigh} {
		clock.Advance(time.Hour)
		s := &scans.Scan{DocumentID: doc.ID, RiskLevel: risk, ScanDate: clock.Now(), Items: []scans.SensitiveItem{
			{Type: scans.TypeCreditCard, Confidence: 0.99, Count: 1},
		}}
		if err := svc.Scans.CreateWithItems(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	d, err := svc.Get(ctx, 1, doc.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !d.Processed {
		t.Error("Expected document to be processed after a scan")
	}
	if len(d.Scans) != 2 || d.Scans[0].RiskLevel != scans.RiskHigh {
		t.Fatalf("Expected newest scan first, got %+v", d.Scans)
	}
	if len(d.Scans[0].Items) != 1 {
		t.Errorf("Expected nested items, got %+v", d.Scans[0].Items)
	}

	page, err := svc.ListScans(ctx, 1, scans.Filter{RiskLevel: scans.RiskLow})
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if page.Total != 1 || page.Data[0].RiskLevel != scans.RiskLow {
		t.Errorf("Unexpected scan page: %+v", page)
	}

	got, err := svc.GetScan(ctx, 1, page.Data[0].ID)
	if err != nil || got.ID != page.Data[0].ID {
		t.Errorf("GetScan returned %+v / %v", got, err)
	}
	if _, err := svc.GetScan(ctx, 2, page.Data[0].ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign scan, got %v", err)
	}
}

func TestListValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	var ve *errs.ValidationError
	if _, err := svc.List(ctx, 1, domain.Filter{Ordering: "-file_key"}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for ordering, got %v", err)
	}
	if _, err := svc.ListScans(ctx, 1, scans.Filter{RiskLevel: "critical"}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for risk level, got %v", err)
	}
	if _, err := svc.ListScans(ctx, 1, scans.Filter{Ordering: "risk_level"}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for scan ordering, got %v", err)
	}

	page, err := svc.List(ctx, 1, domain.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 0 || page.Data == nil {
		t.Errorf("Expected empty non-nil page, got %+v", page)
	}
}

func TestShare(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateCommand{Title: "memo", FileType: "docx"})
	if err != nil {
		t.Fatal(err)
	}

	for want := int64(1); want <= 2; want++ {
		n, err := svc.Share(ctx, 1, doc.ID)
		if err != nil {
			t.Fatalf("Share failed: %v", err)
		}
		if n != want {
			t.Errorf("Expected %d shares, got %d", want, n)
		}
	}
	if c := counters(t, db, 1); c.DocumentsShared != 2 {
		t.Errorf("Expected 2 shares, got %d", c.DocumentsShared)
	}
}
