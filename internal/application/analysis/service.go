package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/docguard/internal/application"
	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/logging"
)

const (
	StatusCompleted = "completed"
	StatusRecorded  = "recorded"
)

// StatsRecorder books the outcome of a scan on the user's counters.
type StatsRecorder interface {
	RecordAnalysis(ctx context.Context, userID int64, k int) (int64, error)
}

// Service ingests analysis results: validate, persist scan and items,
// mark the document processed, then update the user's counters.
type Service struct {
	Documents documents.Repository
	Scans     scans.Repository
	Stats     StatsRecorder
	// Engine runs Protocol A analyses; nil disables them.
	Engine detection.Engine
	// Artifacts archives raw payloads; nil skips archiving.
	Artifacts scans.ArtifactStore
	// Jobs records every engine run; nil skips job tracking.
	Jobs detection.JobRepository
	// ModelID is the registered model of Engine, 0 when unknown.
	ModelID int64
	Clock   application.Clock
}

// Result is the summary returned to the caller after ingestion.
type Result struct {
	DocumentID          int64                 `json:"document_id"`
	ScanID              int64                 `json:"scan_id"`
	ScanDate            time.Time             `json:"scan_date"`
	RiskLevel           scans.RiskLevel       `json:"risk_level"`
	ProcessingTime      float64               `json:"processing_time"`
	SensitiveItemsCount int                   `json:"sensitive_items_count"`
	SensitiveItems      []scans.SensitiveItem `json:"sensitive_items"`
	DetectionTypes      []string              `json:"detection_types,omitempty"`
	ArtifactURL         string                `json:"artifact_url,omitempty"`
	Source              string                `json:"source,omitempty"`
	Status              string                `json:"status"`
}

// Analyze runs the detection engine over an owned document and ingests its
// verdict as a DirectResult. With Jobs set, the run is recorded as a
// detection job that ends completed or failed with the caller's error.
func (s *Service) Analyze(ctx context.Context, userID, documentID int64) (Result, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return Result{}, err
	}
	if s.Engine == nil {
		return Result{}, detection.ErrEngineUnavailable
	}

	job, err := s.startJob(ctx, doc.ID)
	if err != nil {
		return Result{}, &errs.PersistenceError{Op: "job", Err: err}
	}
	res, err := s.Engine.Detect(ctx, doc)
	if err != nil {
		logging.FromContext(ctx).Warn("detection failed", "user_id", userID, "document_id", documentID, "err", err)
		s.finishJob(ctx, job, 0, err)
		return Result{}, err
	}
	out, err := s.Ingest(ctx, userID, FromDetection(documentID, res))
	s.finishJob(ctx, job, out.ScanID, err)
	return out, err
}

func (s *Service) startJob(ctx context.Context, documentID int64) (*detection.Job, error) {
	if s.Jobs == nil {
		return nil, nil
	}
	job := &detection.Job{
		DocumentID: documentID,
		Status:     detection.JobRunning,
		StartedAt:  s.Clock.Now().UTC(),
	}
	if s.ModelID != 0 {
		id := s.ModelID
		job.ModelID = &id
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// finishJob closes job. A run that produced a scan is completed even when
// the counters failed afterwards; the error is kept on the job either way.
func (s *Service) finishJob(ctx context.Context, job *detection.Job, scanID int64, runErr error) {
	if job == nil {
		return
	}
	now := s.Clock.Now().UTC()
	job.CompletedAt = &now
	job.Status = detection.JobCompleted
	if scanID != 0 {
		job.ScanID = &scanID
	} else if runErr != nil {
		job.Status = detection.JobFailed
	}
	if runErr != nil {
		job.ErrorMessage = jobMessage(runErr)
	}
	if err := s.Jobs.Finish(ctx, job); err != nil {
		logging.FromContext(ctx).Error("finish detection job failed", "job_id", job.ID, "status", job.Status, "err", err)
	}
}

func jobMessage(err error) string {
	var ee *detection.EngineError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}

// Ingest validates p, then persists it. Validation and ownership failures
// return *errs.ValidationError with nothing written. A storage failure
// returns *errs.PersistenceError and leaves no partial scan. A counter
// failure after the scan committed returns *errs.StatsUpdateError whose
// ScanID names the kept scan.
func (s *Service) Ingest(ctx context.Context, userID int64, p Payload) (Result, error) {
	log := logging.FromContext(ctx).With("user_id", userID, "document_id", p.docID())

	if err := p.validate().OrNil(); err != nil {
		return Result{}, err
	}
	if _, err := s.ownedDocument(ctx, userID, p.docID()); err != nil {
		return Result{}, err
	}

	scan := &scans.Scan{DocumentID: p.docID(), ScanDate: s.Clock.Now().UTC()}
	res := Result{DocumentID: p.docID()}
	switch v := p.(type) {
	case *DirectResult:
		scan.RiskLevel = v.RiskLevel
		scan.ProcessingTime = v.ProcessingTime
		scan.Items = directItems(v.Items)
		res.Status = StatusCompleted
	case *MLPayload:
		scan.RiskLevel = scans.ClassifyRisk(v.SensitiveItemsCount)
		scan.ProcessingTime = v.ProcessingTime
		scan.Items = mlItems(v.Items)
		res.Status = StatusRecorded
		res.Source = SourceMLModel
		res.DetectionTypes = v.DetectionTypes
	default:
		return Result{}, fmt.Errorf("unsupported payload %T", p)
	}

	if s.Artifacts != nil {
		url, err := s.archive(ctx, userID, p)
		if err != nil {
			log.Error("archive payload failed", "err", err)
			return Result{}, &errs.PersistenceError{Op: "artifact", Err: err}
		}
		scan.ArtifactURL = url
	}

	if err := s.Scans.CreateWithItems(ctx, scan); err != nil {
		log.Error("persist scan failed", "err", err)
		return Result{}, &errs.PersistenceError{Op: "scan", Err: err}
	}

	// k is what the counters are charged with.
	k := len(scan.Items)
	res.SensitiveItemsCount = k
	if ml, ok := p.(*MLPayload); ok {
		res.SensitiveItemsCount = ml.SensitiveItemsCount
		if !ml.ItemsProvided {
			k = ml.SensitiveItemsCount
		}
	}
	res.ScanID = scan.ID
	res.ScanDate = scan.ScanDate
	res.RiskLevel = scan.RiskLevel
	res.ProcessingTime = scan.ProcessingTime
	res.SensitiveItems = scan.Items
	res.ArtifactURL = scan.ArtifactURL

	log.Info("scan recorded", "scan_id", scan.ID, "risk_level", scan.RiskLevel, "items", len(scan.Items), "status", res.Status)

	if _, err := s.Stats.RecordAnalysis(ctx, userID, k); err != nil {
		var su *errs.StatsUpdateError
		if errors.As(err, &su) {
			su.ScanID = scan.ID
			return res, su
		}
		return res, &errs.StatsUpdateError{UserID: userID, Counter: "analysis", ScanID: scan.ID, Err: err}
	}
	return res, nil
}

func (s *Service) ownedDocument(ctx context.Context, userID, documentID int64) (*documents.Document, error) {
	doc, err := s.Documents.Get(ctx, documentID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.NewValidationError("document_id", "Document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", documentID, err)
	}
	if doc.UserID != userID {
		return nil, errs.NewValidationError("document_id", "You don't have permission to analyze this document")
	}
	return doc, nil
}

func (s *Service) archive(ctx context.Context, userID int64, p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("analyses/%d/%d/%s.json", userID, p.docID(), uuid.NewString())
	return s.Artifacts.Put(ctx, key, body, "application/json")
}
