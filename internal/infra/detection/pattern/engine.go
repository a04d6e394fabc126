// Package pattern is a regex-based detection engine that needs no external
// model. It reads the document from object storage and reports every match.
package pattern

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/bryanwahyu/docguard/internal/application"
	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/infra/detection/extract"
)

// MaxItems caps the findings reported for one document.
const MaxItems = 200

// Version is registered with the model record; bump it when detectors change.
const Version = "2025.06"

type detector struct {
	typ        scans.ItemType
	re         *regexp.Regexp
	confidence float64
	// accept filters raw matches; nil accepts all.
	accept func(match string) bool
}

var detectors = []detector{
	{scans.TypeEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), 0.95, nil},
	{scans.TypeSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.9, nil},
	{scans.TypeCreditCard, regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`), 0.9, luhnValid},
	{scans.TypePhone, regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?\(?\d{3}\)?[ .\-]\d{3}[ .\-]\d{4}\b`), 0.7, nil},
	// Provider keys
	{scans.TypeAPIKey, regexp.MustCompile(`AKIA[0-9A-Z]{16}`), 0.95, nil},
	{scans.TypeAPIKey, regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), 0.95, nil},
	{scans.TypeAPIKey, regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), 0.95, nil},
	{scans.TypeAPIKey, regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), 0.9, nil},
	{scans.TypeAPIKey, regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`), 0.95, nil},
	{scans.TypeAPIKey, regexp.MustCompile(`(?i)(?:api[_-]?key|client[_-]?secret|token)\s*[:=]\s*["']?[^\s"']{12,}`), 0.8, nil},
	{scans.TypePassword, regexp.MustCompile(`(?i)(?:password|passwd|pwd|db_pass)\s*[:=]\s*["']?[^\s"']{4,}`), 0.8, nil},
	{scans.TypeDateOfBirth, regexp.MustCompile(`(?i)(?:dob|date of birth|birth ?date)\s*[:=]?\s*\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`), 0.75, nil},
}

// Engine implements detection.Engine with regular expressions.
type Engine struct {
	Source detection.Source
	Clock  application.Clock
}

func New(src detection.Source) *Engine {
	return &Engine{Source: src, Clock: application.SystemClock{}}
}

// Detect fetches doc's object and scans it.
func (e *Engine) Detect(ctx context.Context, doc *documents.Document) (detection.Result, error) {
	start := e.Clock.Now()
	if doc.FileKey == "" {
		return detection.Result{}, &detection.EngineError{Message: "Document has no stored file to analyze"}
	}
	if e.Source == nil {
		return detection.Result{}, detection.ErrEngineUnavailable
	}
	data, err := e.Source.Get(ctx, doc.FileKey)
	if errors.Is(err, errs.ErrNotFound) {
		return detection.Result{}, &detection.EngineError{Message: "Document file not found in storage"}
	}
	if err != nil {
		return detection.Result{}, fmt.Errorf("fetch document %d: %w", doc.ID, err)
	}
	text, err := extract.Text(ctx, doc.FileType, data)
	if errors.Is(err, extract.ErrUnsupported) {
		return detection.Result{}, &detection.EngineError{
			Message: fmt.Sprintf("Unsupported file format %q: only text and PDF documents can be scanned", doc.FileType),
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return detection.Result{}, err
		}
		return detection.Result{}, &detection.EngineError{Message: "Could not extract text from document: " + err.Error()}
	}

	items := Scan(text)
	return detection.Result{
		RiskLevel:      scans.ClassifyRisk(len(items)),
		ProcessingTime: application.Seconds(e.Clock, start),
		Items:          items,
	}, nil
}

type span struct{ start, end int }

// Scan returns one item per match, ordered by position. A byte range is
// claimed by the first detector that matches it.
func Scan(text string) []detection.Item {
	var claimed []span
	overlaps := func(s span) bool {
		for _, c := range claimed {
			if s.start < c.end && c.start < s.end {
				return true
			}
		}
		return false
	}

	type hit struct {
		span
		item detection.Item
	}
	var hits []hit
	for _, d := range detectors {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			s := span{loc[0], loc[1]}
			if overlaps(s) {
				continue
			}
			if d.accept != nil && !d.accept(text[s.start:s.end]) {
				continue
			}
			claimed = append(claimed, s)
			raw, _ := json.Marshal(map[string]int{"start": s.start, "end": s.end})
			hits = append(hits, hit{s, detection.Item{
				Type:       string(d.typ),
				Confidence: d.confidence,
				Location:   raw,
				Count:      1,
			}})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	if len(hits) > MaxItems {
		hits = hits[:MaxItems]
	}
	items := make([]detection.Item, 0, len(hits))
	for _, h := range hits {
		items = append(items, h.item)
	}
	return items
}

// luhnValid checks a card-like match with the Luhn checksum.
func luhnValid(match string) bool {
	sum, n := 0, 0
	double := false
	for i := len(match) - 1; i >= 0; i-- {
		c := match[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		n++
	}
	return n >= 13 && n <= 19 && sum%10 == 0
}
