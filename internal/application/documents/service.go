package documents

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/docguard/internal/application"
	domain "github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/logging"
)

// StatsCounter is the slice of the stats service that document
// operations touch.
type StatsCounter interface {
	IncrementDocumentsSaved(ctx context.Context, userID int64) (int64, error)
	IncrementDocumentsProcessed(ctx context.Context, userID int64) (int64, error)
	IncrementDocumentsShared(ctx context.Context, userID int64) (int64, error)
}

// Service implements the ownership-scoped document and scan use-cases.
type Service struct {
	Repo  domain.Repository
	Scans scans.Repository
	Stats StatsCounter
	Clock application.Clock
}

// CreateCommand untuk simpan dokumen baru
type CreateCommand struct {
	Title    string `json:"title"`
	FileType string `json:"file_type"`
	FileKey  string `json:"file_key"`
}

// Detail is a document with its scans, newest first.
type Detail struct {
	*domain.Document
	Scans []*scans.Scan `json:"scans"`
}

// Create stores a new document for userID and counts it as saved.
func (s *Service) Create(ctx context.Context, userID int64, cmd CreateCommand) (*domain.Document, error) {
	title := domain.NormalizeTitle(cmd.Title)
	fileType := domain.NormalizeFileType(cmd.FileType)

	v := &errs.ValidationError{}
	checkText(v, "title", title, domain.MaxTitleLen)
	checkText(v, "file_type", fileType, domain.MaxFileTypeLen)
	if utf8.RuneCountInString(cmd.FileKey) > domain.MaxFileKeyLen {
		v.Add("file_key", fmt.Sprintf("Ensure this field has no more than %d characters.", domain.MaxFileKeyLen))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	doc := &domain.Document{
		UserID:    userID,
		Title:     title,
		FileType:  fileType,
		FileKey:   cmd.FileKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("document saved", "user_id", userID, "document_id", doc.ID)

	if _, err := s.Stats.IncrementDocumentsSaved(ctx, userID); err != nil {
		return doc, err
	}
	return doc, nil
}

// Update applies p to an owned document. Only the call that actually flips
// processed from false to true counts the document as processed; the
// reverse is only logged.
func (s *Service) Update(ctx context.Context, userID, id int64, p domain.Patch) (*domain.Document, error) {
	p = p.Normalize()

	v := &errs.ValidationError{}
	if p.Title != nil {
		checkText(v, "title", *p.Title, domain.MaxTitleLen)
	}
	if p.FileType != nil {
		checkText(v, "file_type", *p.FileType, domain.MaxFileTypeLen)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	doc, err := s.Repo.GetOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).With("user_id", userID, "document_id", id)
	if p.Empty() {
		log.Debug("empty document patch")
		return doc, nil
	}

	now := s.Clock.Now().UTC()
	p.Apply(doc)
	if p.Title != nil || p.FileType != nil {
		doc.UpdatedAt = now
		if err := s.Repo.Update(ctx, doc); err != nil {
			return nil, err
		}
	}
	if p.Processed == nil {
		return doc, nil
	}

	changed, err := s.Repo.SetProcessed(ctx, userID, id, *p.Processed, now)
	if err != nil {
		return nil, err
	}
	switch {
	case changed && doc.Processed:
		doc.UpdatedAt = now
		log.Info("document marked as processed")
		if _, err := s.Stats.IncrementDocumentsProcessed(ctx, userID); err != nil {
			return doc, err
		}
	case changed:
		doc.UpdatedAt = now
		log.Warn("document marked as unprocessed")
	default:
		log.Debug("document processed status unchanged", "processed", doc.Processed)
	}
	return doc, nil
}

// Get returns an owned document with its scans.
func (s *Service) Get(ctx context.Context, userID, id int64) (Detail, error) {
	doc, err := s.Repo.GetOwned(ctx, userID, id)
	if err != nil {
		return Detail{}, err
	}
	list, err := s.Scans.ListByDocument(ctx, doc.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Document: doc, Scans: list}, nil
}

// List pages through the user's documents.
func (s *Service) List(ctx context.Context, userID int64, f domain.Filter) (domain.PaginatedResult, error) {
	if f.Ordering == "" {
		f.Ordering = domain.DefaultOrdering
	}
	if !validOrdering(f.Ordering, domain.OrderingFields) {
		return domain.PaginatedResult{}, errs.NewValidationError("ordering", "Invalid ordering field: "+f.Ordering)
	}
	return s.Repo.Paginate(ctx, userID, f)
}

// DocumentScans lists the scans of one owned document.
func (s *Service) DocumentScans(ctx context.Context, userID, documentID int64) ([]*scans.Scan, error) {
	doc, err := s.Repo.GetOwned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return s.Scans.ListByDocument(ctx, doc.ID)
}

// ListScans pages through scans of all the user's documents.
func (s *Service) ListScans(ctx context.Context, userID int64, f scans.Filter) (scans.PaginatedResult, error) {
	if f.RiskLevel != "" && !f.RiskLevel.Valid() {
		return scans.PaginatedResult{}, errs.NewValidationError("risk_level", "Select a valid choice. "+string(f.RiskLevel)+" is not one of the available choices.")
	}
	if f.Ordering == "" {
		f.Ordering = scans.DefaultOrdering
	}
	if !validOrdering(f.Ordering, scans.OrderingFields) {
		return scans.PaginatedResult{}, errs.NewValidationError("ordering", "Invalid ordering field: "+f.Ordering)
	}
	return s.Scans.Paginate(ctx, userID, f)
}

// GetScan returns one scan of an owned document.
func (s *Service) GetScan(ctx context.Context, userID, id int64) (*scans.Scan, error) {
	return s.Scans.GetOwned(ctx, userID, id)
}

// Share records that an owned document was shared.
func (s *Service) Share(ctx context.Context, userID, id int64) (int64, error) {
	if _, err := s.Repo.GetOwned(ctx, userID, id); err != nil {
		return 0, err
	}
	return s.Stats.IncrementDocumentsShared(ctx, userID)
}

func checkText(v *errs.ValidationError, field, val string, max int) {
	if val == "" {
		v.Add(field, "This field may not be blank.")
		return
	}
	if utf8.RuneCountInString(val) > max {
		v.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
}

func validOrdering(o string, fields []string) bool {
	return slices.Contains(fields, strings.TrimPrefix(o, "-"))
}
