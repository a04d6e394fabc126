package httpserver

import (
	"net/http"

	"github.com/bryanwahyu/docguard/internal/application/analysis"
	appdocs "github.com/bryanwahyu/docguard/internal/application/documents"
	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/documents"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/scans"
	"github.com/bryanwahyu/docguard/internal/middleware"
)

// POST /v1/analyze
// Body with "source" is an ML payload; otherwise {"document_id": n} runs the
// configured detection engine.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	uid := middleware.GetUserFromContext(req.Context())

	var body analysis.Request
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}

	var (
		res analysis.Result
		err error
	)
	if body.IsML() {
		p, perr := body.MLPayload()
		if perr != nil {
			return perr
		}
		res, err = r.analysis.Ingest(req.Context(), uid, p)
	} else {
		id, perr := body.TargetDocument()
		if perr != nil {
			return perr
		}
		res, err = r.analysis.Analyze(req.Context(), uid, id)
	}
	if res.ScanID != 0 {
		middleware.RecordAnalysis(len(res.SensitiveItems))
	} else if err != nil {
		middleware.IncrementAnalysesFailed()
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, res)
}

// GET /v1/documents?file_type=&processed=&search=&ordering=&page=&page_size=
func (r *Router) handleListDocuments(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	v := &errs.ValidationError{}
	f := documents.Filter{
		FileType:  q.Get("file_type"),
		Processed: middleware.ParseBool(q, "processed", v),
		Search:    middleware.SanitizeString(q.Get("search")),
		Ordering:  q.Get("ordering"),
	}
	f.Page, f.PageSize = middleware.ParsePage(q, v)
	if err := v.OrNil(); err != nil {
		return err
	}

	list, err := r.docs.List(req.Context(), middleware.GetUserFromContext(req.Context()), f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/documents
func (r *Router) handleCreateDocument(w http.ResponseWriter, req *http.Request) error {
	var cmd appdocs.CreateCommand
	if err := decodeJSON(w, req, &cmd); err != nil {
		return err
	}
	doc, err := r.docs.Create(req.Context(), middleware.GetUserFromContext(req.Context()), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, doc)
}

// GET /v1/documents/{id}
func (r *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	detail, err := r.docs.Get(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, detail)
}

// PATCH /v1/documents/{id}
func (r *Router) handleUpdateDocument(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	var patch documents.Patch
	if err := decodeJSON(w, req, &patch); err != nil {
		return err
	}
	doc, err := r.docs.Update(req.Context(), middleware.GetUserFromContext(req.Context()), id, patch)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, doc)
}

// GET /v1/documents/{id}/scans
func (r *Router) handleDocumentScans(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	list, err := r.docs.DocumentScans(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/documents/{id}/share
func (r *Router) handleShareDocument(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	total, err := r.docs.Share(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"document_id":            id,
		"total_documents_shared": total,
	})
}

// GET /v1/scans?risk_level=&ordering=&page=&page_size=
func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	v := &errs.ValidationError{}
	f := scans.Filter{
		RiskLevel: scans.RiskLevel(q.Get("risk_level")),
		Ordering:  q.Get("ordering"),
	}
	f.Page, f.PageSize = middleware.ParsePage(q, v)
	if err := v.OrNil(); err != nil {
		return err
	}

	list, err := r.docs.ListScans(req.Context(), middleware.GetUserFromContext(req.Context()), f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/scans/{id}
func (r *Router) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	scan, err := r.docs.GetScan(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, scan)
}

// GET /v1/detection/models?model_type=&ordering=
func (r *Router) handleListModels(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	list, err := r.detection.ListModels(req.Context(), detection.ModelFilter{
		ModelType: detection.ModelType(q.Get("model_type")),
		Ordering:  q.Get("ordering"),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GET /v1/detection/models/{id}
func (r *Router) handleGetModel(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	m, err := r.detection.GetModel(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, m)
}

// GET /v1/detection/jobs?status=&document=&ordering=&page=&page_size=
func (r *Router) handleListJobs(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	v := &errs.ValidationError{}
	f := detection.JobFilter{
		Status:   detection.JobStatus(q.Get("status")),
		Ordering: q.Get("ordering"),
	}
	if raw := q.Get("document"); raw != "" {
		id, ok := middleware.ParseID(raw)
		if !ok {
			v.Add("document", "A valid positive integer is required.")
		}
		f.DocumentID = id
	}
	f.Page, f.PageSize = middleware.ParsePage(q, v)
	if err := v.OrNil(); err != nil {
		return err
	}

	page, err := r.detection.ListJobs(req.Context(), middleware.GetUserFromContext(req.Context()), f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, page)
}

// GET /v1/detection/jobs/{id}
func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	job, err := r.detection.GetJob(req.Context(), middleware.GetUserFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, job)
}

// GET /v1/users/me/stats
func (r *Router) handleMyStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.stats.Snapshot(req.Context(), middleware.GetUserFromContext(req.Context()))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// POST /v1/admin/users/{id}/stats/reset
func (r *Router) handleResetStats(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	if err := r.stats.Reset(req.Context(), id); err != nil {
		return err
	}
	st, err := r.stats.Snapshot(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}
