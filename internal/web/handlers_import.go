package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/johnahull/AthleteMetrics-sub002/internal/core"
	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
)

const (
	// maxFormMemory is how much of a multipart form is held in memory before
	// spilling to temporary files.
	maxFormMemory = 8 << 20

	// multipartOverhead allows for form fields and part headers on top of
	// the file itself.
	multipartOverhead = 1 << 20
)

// importResponse is the JSON body of an import. The outcome fields are
// inlined next to the summary counts.
type importResponse struct {
	*importer.Outcome
	Summary importer.Summary `json:"summary"`
}

func newImportResponse(out *importer.Outcome) importResponse {
	return importResponse{Outcome: out, Summary: out.Summary()}
}

// handleImport processes a spreadsheet upload for one import kind.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	kind := chi.URLParam(r, "kind")

	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondBadRequest(w, r, "form", err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	raw, err := formOptions(r)
	if err != nil {
		s.respondBadRequest(w, r, "options", err)
		return
	}

	out, err := s.service.ImportFile(r.Context(), kind, file, header.Filename, header.Size, raw, actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImportResponse(out))
}

// ocrRequest is the body of an OCR import.
type ocrRequest struct {
	Options importer.RawOptions `json:"options"`
	Records []sheet.OCRRecord   `json:"records"`
}

// handleImportOCR imports records extracted by the OCR step.
func (s *Server) handleImportOCR(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	kind := chi.URLParam(r, "kind")

	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize())
	var req ocrRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondBadRequest(w, r, "body", err)
		return
	}

	out, err := s.service.ImportOCR(r.Context(), kind, req.Records, req.Options, actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImportResponse(out))
}

// formOptions reads import options from a multipart form. A JSON "options"
// field is read first; individual fields override it.
func formOptions(r *http.Request) (importer.RawOptions, error) {
	var raw importer.RawOptions
	if js := r.FormValue("options"); js != "" {
		if err := json.Unmarshal([]byte(js), &raw); err != nil {
			return importer.RawOptions{}, err
		}
	}
	if v := r.FormValue("mode"); v != "" {
		raw.Mode = v
	}
	if v := r.FormValue("teamHandling"); v != "" {
		raw.TeamHandling = v
	}
	if v := r.FormValue("reviewPolicy"); v != "" {
		raw.ReviewPolicy = v
	}
	if v := r.FormValue("organizationId"); v != "" {
		raw.OrganizationID = v
	}
	if v := r.FormValue("updateExisting"); v != "" {
		raw.UpdateExisting, _ = importer.ParseBool(v)
	}
	return raw, nil
}

// handleImportStatus reports the import limiter state and the caller's
// running imports.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.service.ImportStatus(actor))
}

type metricInfo struct {
	Name        string  `json:"name"`
	Label       string  `json:"label"`
	Units       string  `json:"units"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	AllowsFlyIn bool    `json:"allowsFlyIn,omitempty"`
}

// handleMetricCatalog lists the metrics a measurement import accepts.
func (s *Server) handleMetricCatalog(w http.ResponseWriter, r *http.Request) {
	out := make([]metricInfo, 0, len(importer.Metrics))
	for _, m := range importer.Metrics {
		out = append(out, metricInfo{
			Name:        m.Name,
			Label:       m.Label,
			Units:       m.Units,
			Min:         m.Min,
			Max:         m.Max,
			AllowsFlyIn: m.AllowsFlyIn,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": out})
}
