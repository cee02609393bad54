package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/esg-extractor/internal/decisions"
	"github.com/jonathan/esg-extractor/internal/export"
	"github.com/jonathan/esg-extractor/internal/pipeline"
	"github.com/jonathan/esg-extractor/internal/portfolio"
	"github.com/jonathan/esg-extractor/internal/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProcessResponse is returned by the processing routes.
type ProcessResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ProcessedAt string `json:"processed_at"`
	CSVPath     string `json:"csv_path,omitempty"`
	XLSXPath    string `json:"xlsx_path,omitempty"`
	RunID       string `json:"run_id,omitempty"`

	// Single document
	Status  string           `json:"status,omitempty"`
	Record  *types.ESGRecord `json:"record,omitempty"`
	Missing []string         `json:"missing,omitempty"`

	// Batch
	Results []DocumentSummary `json:"results,omitempty"`
}

// DocumentSummary is one document's line in a batch response.
type DocumentSummary struct {
	Filename string   `json:"filename"`
	Status   string   `json:"status"`
	Missing  []string `json:"missing,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// upload is a batch of PDFs written to a private temp directory.
type upload struct {
	dir   string
	paths []string
	names []string
}

func (u *upload) remove() {
	if u != nil && u.dir != "" {
		os.RemoveAll(u.dir) //nolint:errcheck
	}
}

// receiveUploads reads the multipart field, rejects anything that is not a .pdf and
// saves each file as {tmp}/{index}/{original name} so the filename keeps its meaning.
func (s *Server) receiveUploads(w http.ResponseWriter, r *http.Request, field string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, &ErrValidation{Field: field, Message: "invalid multipart form: " + err.Error()}
	}

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, &ErrValidation{Field: field, Message: "at least one PDF file is required"}
	}
	for _, fh := range files {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			return nil, &ErrValidation{Field: field, Message: fmt.Sprintf("only PDF files are allowed, got %q", fh.Filename)}
		}
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	dir, err := os.MkdirTemp(s.cfg.UploadDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	u := &upload{dir: dir}
	for i, fh := range files {
		name := filepath.Base(filepath.Clean("/" + fh.Filename))
		dest := filepath.Join(dir, strconv.Itoa(i), name)
		if err := saveFile(fh, dest); err != nil {
			u.remove()
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		u.paths = append(u.paths, dest)
		u.names = append(u.names, name)
	}
	return u, nil
}

func saveFile(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// requirePipeline fails the request when processing is not configured.
func (s *Server) requirePipeline(w http.ResponseWriter) bool {
	if s.pipeline == nil {
		s.errorFrom(w, &ErrNotConfigured{})
		return false
	}
	return true
}

// handleProcessPDF extracts one uploaded report and refreshes the aggregate export.
func (s *Server) handleProcessPDF(w http.ResponseWriter, r *http.Request) {
	if !s.requirePipeline(w) {
		return
	}
	u, err := s.receiveUploads(w, r, "file")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	defer u.remove()

	res := s.pipeline.ProcessDocument(r.Context(), u.paths[0])
	if res.Err != nil {
		s.errorResponse(w, HTTPStatus(res.Err), fmt.Sprintf("Error processing %s: %s", u.names[0], res.Error))
		return
	}

	agg, err := s.pipeline.Export()
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, ProcessResponse{
		Success:     true,
		Message:     fmt.Sprintf("Successfully processed %s", u.names[0]),
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		CSVPath:     agg.CSVPath,
		XLSXPath:    agg.XLSXPath,
		Status:      res.Status,
		Record:      res.Record,
		Missing:     res.Missing,
	})
}

// handleProcessBatch extracts every uploaded report and rebuilds the aggregate export.
func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requirePipeline(w) {
		return
	}
	u, err := s.receiveUploads(w, r, "files")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	defer u.remove()

	batch, err := s.pipeline.RunBatch(r.Context(), u.paths)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, batchResponse(batch, u))
}

// handleProcessBatchStream runs a batch and reports progress as Server-Sent Events.
func (s *Server) handleProcessBatchStream(w http.ResponseWriter, r *http.Request) {
	if !s.requirePipeline(w) {
		return
	}
	u, err := s.receiveUploads(w, r, "files")
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	defer u.remove()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	p := s.pipeline.WithProgress(func(ev pipeline.ProgressEvent) {
		if ev.Step != pipeline.StepBatchDone {
			sse.WriteProgress(ev) //nolint:errcheck
		}
	})

	batch, err := p.RunBatch(r.Context(), u.paths)
	defer func() {
		if err := sse.Err(); err != nil {
			s.logger.Warn("sse.write_failed", "err", err)
		}
	}()
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	sse.WriteResult(batchResponse(batch, u)) //nolint:errcheck
	sse.WriteComplete(batch)
}

func batchResponse(batch *pipeline.BatchResult, u *upload) ProcessResponse {
	complete, insufficient, failed := batch.Counts()
	resp := ProcessResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d PDF files: %d complete, %d insufficient, %d failed",
			len(batch.Results), complete, insufficient, failed),
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		CSVPath:     batch.CSVPath,
		XLSXPath:    batch.XLSXPath,
		RunID:       batch.RunID.String(),
	}
	for i, res := range batch.Results {
		resp.Results = append(resp.Results, DocumentSummary{
			Filename: u.names[i],
			Status:   res.Status,
			Missing:  res.Missing,
			Error:    res.Error,
		})
	}
	return resp
}

func (s *Server) dataCSVPath() string {
	return filepath.Join(s.cfg.DataDir, export.CSVFilename)
}

// loadRows reads the aggregated export. A missing file is no rows.
func (s *Server) loadRows() ([]types.ExportRow, error) {
	rows, err := export.ReadCSVFile(s.dataCSVPath())
	if err != nil {
		return nil, fmt.Errorf("error loading data: %w", err)
	}
	return rows, nil
}

// handleDownloadCSV serves a CSV from the data directory.
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name != filepath.Base(name) || !strings.EqualFold(filepath.Ext(name), ".csv") {
		s.errorFrom(w, &ErrValidation{Field: "filename", Message: "must be a CSV file name"})
		return
	}
	path := filepath.Join(s.cfg.DataDir, name)
	if _, err := os.Stat(path); err != nil {
		s.errorFrom(w, &ErrNotFound{Kind: "CSV file", Name: name})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, path)
}

// handleDownloadXLSX renders the aggregated export as a workbook.
func (s *Server) handleDownloadXLSX(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.loadRows()
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if len(rows) == 0 {
		s.errorFrom(w, &ErrNotFound{Kind: "data", Name: export.CSVFilename})
		return
	}

	data, err := export.WriteXLSX(rows)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.XLSXFilename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("http.write_failed", "err", err)
	}
}

// handleData returns every exported row.
func (s *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.loadRows()
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rows,
		"count":   len(rows),
	})
}

// handleCompanies returns one summary per company with its risk level and decision.
func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	rows, err := s.loadRows()
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	decided, err := s.decisions.AllDecisions(r.Context())
	if err != nil {
		s.errorFrom(w, fmt.Errorf("error loading decisions: %w", err))
		return
	}

	companies := portfolio.Summarize(rows, decided)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"companies": companies,
		"count":     len(companies),
	})
}

// handleCompany returns every row of one company.
func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rows, err := s.loadRows()
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	data := portfolio.Company(rows, name)
	if len(data) == 0 {
		s.errorFrom(w, &ErrNotFound{Kind: "company", Name: name})
		return
	}
	decision, err := s.decisions.GetDecision(r.Context(), name)
	if err != nil {
		s.errorFrom(w, fmt.Errorf("error loading decision: %w", err))
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":    true,
		"company":    name,
		"risk_level": portfolio.CalculateRisk(data),
		"decision":   decision,
		"data":       data,
	})
}

// handleSaveDecision sets or clears a company decision. Parameters come from the query
// string or, for application/json requests, the body.
func (s *Server) handleSaveDecision(w http.ResponseWriter, r *http.Request) {
	req := types.DecisionRequest{
		Company:  r.URL.Query().Get("company"),
		Decision: r.URL.Query().Get("decision"),
	}
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.errorFrom(w, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
			return
		}
	}
	req.Company = strings.TrimSpace(req.Company)
	req.Decision = strings.ToLower(strings.TrimSpace(req.Decision))

	if err := req.Validate(); err != nil {
		s.errorFrom(w, validationError(err))
		return
	}
	decision, err := decisions.Parse(req.Decision)
	if err != nil {
		s.errorFrom(w, &ErrValidation{Field: "decision", Message: err.Error()})
		return
	}
	if err := decisions.Apply(r.Context(), s.decisions, req.Company, decision); err != nil {
		s.errorFrom(w, fmt.Errorf("error saving decision: %w", err))
		return
	}

	s.logger.Info("decision.saved", "company", req.Company, "decision", decision)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"company":  req.Company,
		"decision": decision,
	})
}

// handleListDecisions returns every stored decision.
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	decided, err := s.decisions.AllDecisions(r.Context())
	if err != nil {
		s.errorFrom(w, fmt.Errorf("error loading decisions: %w", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"decisions": decided,
	})
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed %q check", fe.Tag())
		if fe.Tag() == "oneof" {
			msg = "must be 'cooperate', 'suspend', or empty"
		}
		return &ErrValidation{Field: strings.ToLower(fe.Field()), Message: msg}
	}
	return &ErrValidation{Field: "request", Message: err.Error()}
}
