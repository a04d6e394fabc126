package pattern

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/testutil"
)

type memSource map[string][]byte

func (m memSource) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(250 * time.Millisecond)
	return now
}

const sample = "Contact alice@example.com or 555-123-4567. SSN 123-45-6789. Card 4111 1111 1111 1111. password=hunter22"

func TestScan(t *testing.T) {
	items := Scan(sample)

	want := []struct {
		typ        scans.ItemType
		start, end int
	}{
		{scans.TypeEmail, 8, 25},
		{scans.TypePhone, 29, 41},
		{scans.TypeSSN, 47, 58},
		{scans.TypeCreditCard, 65, 84},
		{scans.TypePassword, 86, 103},
	}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d: %+v", len(want), len(items), items)
	}
	for i, w := range want {
		it := items[i]
		if it.Type != string(w.typ) {
			t.Errorf("item %d: expected type %s, got %s", i, w.typ, it.Type)
		}
		wantLoc := fmt.Sprintf(`{"end":%d,"start":%d}`, w.end, w.start)
		if string(it.Location) != wantLoc {
			t.Errorf("item %d: expected location %s, got %s", i, wantLoc, it.Location)
		}
		if it.Count != 1 {
			t.Errorf("item %d: expected count 1, got %d", i, it.Count)
		}
	}
}

func TestScanRejectsNonLuhnNumbers(t *testing.T) {
	items := Scan("order 1234 5678 9012 3456 shipped")
	for _, it := range items {
		if it.Type == string(scans.TypeCreditCard) {
			t.Errorf("Expected no credit card item, got %+v", it)
		}
	}
}

func TestScanCleanText(t *testing.T) {
	if items := Scan("Quarterly report. Revenue grew in every region."); len(items) != 0 {
		t.Errorf("Expected no items, got %+v", items)
	}
}

func TestDetect(t *testing.T) {
	e := &Engine{
		Source: memSource{"u1/report.txt": []byte(sample)},
		Clock:  &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	res, err := e.Detect(context.Background(), &documents.Document{ID: 1, FileKey: "u1/report.txt", FileType: "txt"})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.RiskLevel != scans.RiskHigh {
		t.Errorf("Expected high risk, got %s", res.RiskLevel)
	}
	if res.ProcessingTime != 0.25 {
		t.Errorf("Expected processing time 0.25, got %v", res.ProcessingTime)
	}
	if len(res.Items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(res.Items))
	}
}

func TestDetectPDF(t *testing.T) {
	e := &Engine{
		Source: memSource{"u1/contacts.pdf": testutil.MinimalPDF("Customer list", "Contact jane@example.com")},
		Clock:  &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	res, err := e.Detect(context.Background(), &documents.Document{ID: 1, FileKey: "u1/contacts.pdf", FileType: "pdf"})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Type != string(scans.TypeEmail) {
		t.Errorf("Expected one email item, got %+v", res.Items)
	}
}

func TestDetectEngineErrors(t *testing.T) {
	e := &Engine{
		Source: memSource{"bin": {0xff, 0xfe, 0x00, 0x01}, "empty.pdf": testutil.MinimalPDF()},
		Clock:  &stepClock{},
	}
	tests := []struct {
		name string
		doc  documents.Document
	}{
		{"no file key", documents.Document{ID: 1}},
		{"missing object", documents.Document{ID: 2, FileKey: "gone"}},
		{"binary", documents.Document{ID: 3, FileKey: "bin", FileType: "docx"}},
		{"corrupt pdf", documents.Document{ID: 4, FileKey: "bin", FileType: "pdf"}},
		{"pdf without text", documents.Document{ID: 5, FileKey: "empty.pdf", FileType: "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Detect(context.Background(), &tt.doc)
			var ee *detection.EngineError
			if !errors.As(err, &ee) {
				t.Errorf("Expected EngineError, got %v", err)
			}
		})
	}
}

func TestLuhnValid(t *testing.T) {
	if !luhnValid("4111-1111-1111-1111") {
		t.Error("Expected test Visa number to pass")
	}
	if luhnValid("4111-1111-1111-1112") {
		t.Error("Expected altered number to fail")
	}
}
